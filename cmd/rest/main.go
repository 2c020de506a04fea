package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metabolic-model-be/internal/bootstrap"
	"metabolic-model-be/internal/config"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/server"
	"metabolic-model-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Tracing, sysLogger)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg, sysLogger)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Start Background Services
	go container.WebSocketHub.Run(ctx)
	if err := container.DeltaService.Consume(ctx); err != nil {
		log.Fatalf("Failed to start delta consumer: %v", err)
	}
	if container.Subscriber != nil {
		if err := container.Subscriber.Subscribe(ctx, "models.>", "", container.WebSocketHub.Notify); err != nil {
			sysLogger.Warn("MAIN", "Model events will not reach WebSocket sessions", map[string]interface{}{"error": err.Error()})
		}
	}
	go func() {
		if len(cfg.Warehouse.Preload) == 0 {
			container.Registry.MarkReady()
			return
		}
		if err := container.Registry.Preload(ctx, cfg.Warehouse.Preload); err != nil {
			sysLogger.Error("MAIN", "Some models failed to preload", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		sysLogger.Error("MAIN", "Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
