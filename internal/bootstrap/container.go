package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metabolic-model-be/internal/config"
	"metabolic-model-be/internal/controller"
	"metabolic-model-be/internal/handler"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/serverutils"
	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/internal/repository/implementation"
	"metabolic-model-be/internal/repository/memory"
	"metabolic-model-be/internal/service"
	"metabolic-model-be/internal/websocket"
	"metabolic-model-be/pkg/adapter"
	"metabolic-model-be/pkg/database"
	"metabolic-model-be/pkg/events"
	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/ice"
	"metabolic-model-be/pkg/idmapper"
	pktNats "metabolic-model-be/pkg/nats"
	"metabolic-model-be/pkg/resolver"
	"metabolic-model-be/pkg/response"
	"metabolic-model-be/pkg/solver"
	"metabolic-model-be/pkg/warehouse"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const deltaTopic = "deltas.persist"

type Container struct {
	// Controllers
	ModelController      controller.IModelController
	SimulationController controller.ISimulationController
	HealthController     controller.IHealthController
	SimulationHandler    *handler.SimulationHandler

	// Background services, run by main
	DeltaService  service.IDeltaService
	WebSocketHub  *websocket.Hub
	Registry      *warehouse.Registry
	Authenticator *serverutils.Authenticator
	Subscriber    *pktNats.Subscriber

	Logger logger.ILogger

	closers []func()
}

// Close releases the stores and connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func NewContainer(ctx context.Context, cfg *config.Config, log logger.ILogger) (*Container, error) {
	c := &Container{Logger: log}

	// 1. Calibration
	calibration, err := config.LoadCalibration(cfg.Simulation.CalibrationPath)
	if err != nil {
		return nil, err
	}
	salts := adapter.DefaultSalts()
	if cfg.Simulation.SaltsPath != "" {
		if salts, err = adapter.LoadSalts(cfg.Simulation.SaltsPath); err != nil {
			return nil, fmt.Errorf("loading salts: %w", err)
		}
	}

	// 2. Model warehouse
	source, err := c.warehouseSource(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	registry := warehouse.NewRegistry(source, log)
	c.Registry = registry

	// 3. Operation log store and its event bus
	deltaRepo, err := c.deltaRepository(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	deltaService := service.NewDeltaService(deltaRepo, service.NewPublisherService(pubSub, deltaTopic), pubSub, deltaTopic, log)
	c.DeltaService = deltaService

	// 4. Domain events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, log)
		if err != nil {
			log.Warn("BOOTSTRAP", "Failed to connect NATS publisher, events are disabled", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, log)
		if err != nil {
			log.Warn("BOOTSTRAP", "Failed to connect NATS subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.Subscriber = natsSub
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// 5. Domain components
	resolverOpts := []resolver.Option{resolver.WithLogger(log)}
	if cfg.Services.IDMapperAPI != "" {
		resolverOpts = append(resolverOpts, resolver.WithMapper(idmapper.NewClient(cfg.Services.IDMapperAPI, cfg.Services.HTTPTimeout, log), "bigg"))
	}
	res := resolver.New(resolverOpts...)

	lp := solver.NewSimplex()
	engine := flux.NewEngine(lp, flux.WithLogger(log), flux.WithPFBAFactor(calibration.PFBAFactor))

	adapterOpts := []adapter.Option{
		adapter.WithSalts(salts),
		adapter.WithCalibration(calibration.Adapter()),
		adapter.WithLogger(log),
	}
	if cfg.Services.IceAPI != "" {
		iceClient := ice.NewClient(ice.Config{
			BaseURL:  cfg.Services.IceAPI,
			Username: cfg.Services.IceUsername,
			Password: cfg.Services.IcePassword,
			Timeout:  cfg.Services.HTTPTimeout,
		}, log)
		adapterOpts = append(adapterOpts, adapter.WithPartLookup(iceClient))
	}
	applier := adapter.New(res, lp, adapterOpts...)
	assembler := response.NewAssembler(engine, res, calibration.PhasePlanePoints, log)

	// 6. Services
	modificationService := service.NewModificationService(registry, applier, publisher, log)
	simulationService := service.NewSimulationService(registry, engine, cfg.Simulation.Concurrency, publisher, log)
	modelService := service.NewModelService(registry, modificationService, simulationService, deltaService, assembler, log)

	// 7. Transport
	auth, err := serverutils.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTPublicKey)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Authenticator = auth

	c.WebSocketHub = websocket.NewHub(log)
	c.ModelController = controller.NewModelController(modelService, modificationService)
	c.SimulationController = controller.NewSimulationController(simulationService)
	c.HealthController = controller.NewHealthController(registry)
	c.SimulationHandler = handler.NewSimulationHandler(modelService, c.WebSocketHub, auth, log)

	return c, nil
}

func (c *Container) warehouseSource(cfg *config.Config) (warehouse.Source, error) {
	switch cfg.Warehouse.Driver {
	case "http":
		if cfg.Services.ModelStorageAPI == "" {
			return nil, errors.New("MODEL_STORAGE_API is required for the http warehouse driver")
		}
		return warehouse.NewHTTPSource(cfg.Services.ModelStorageAPI, cfg.Services.HTTPTimeout, c.Logger), nil
	case "postgres":
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultPoolConfig(), !cfg.IsProduction())
		if err != nil {
			return nil, fmt.Errorf("connecting model database: %w", err)
		}
		c.closers = append(c.closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		return implementation.NewWarehouseSource(implementation.NewMetabolicModelRepository(db)), nil
	case "file":
		return warehouse.NewFileSource(cfg.Warehouse.ModelsDir), nil
	default:
		return nil, fmt.Errorf("unknown warehouse driver %q", cfg.Warehouse.Driver)
	}
}

func (c *Container) deltaRepository(ctx context.Context, cfg *config.Config) (contract.IDeltaRepository, error) {
	switch cfg.Deltas.Store {
	case "redis":
		client, err := implementation.NewRedisClient(ctx, cfg.App.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting delta store: %w", err)
		}
		repo := implementation.NewRedisDeltaRepository(client)
		c.closers = append(c.closers, func() { _ = repo.Close() })
		return repo, nil
	case "badger":
		db, err := implementation.OpenBadger(cfg.Deltas.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("opening delta store: %w", err)
		}
		repo := implementation.NewBadgerDeltaRepository(db)
		c.closers = append(c.closers, func() { _ = repo.Close() })
		return repo, nil
	case "memory":
		return memory.NewDeltaRepository(24 * time.Hour), nil
	default:
		return nil, fmt.Errorf("unknown delta store %q", cfg.Deltas.Store)
	}
}
