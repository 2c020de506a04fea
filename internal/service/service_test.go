package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/repository/memory"
	"metabolic-model-be/pkg/adapter"
	"metabolic-model-be/pkg/deltas"
	"metabolic-model-be/pkg/events"
	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/metabolic/metabolictest"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/resolver"
	"metabolic-model-be/pkg/response"
	"metabolic-model-be/pkg/solver"
	"metabolic-model-be/pkg/warehouse"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const restrictedID = "restricted"

type staticSource struct{}

func (staticSource) Fetch(ctx context.Context, modelID string, caller warehouse.Caller) (*warehouse.Record, error) {
	rec := &warehouse.Record{
		ID:              warehouse.ID(modelID),
		Name:            "core",
		OrganismID:      "562",
		BiomassReaction: metabolictest.BiomassID,
		Serialized:      metabolictest.CoreJSON(),
	}
	switch modelID {
	case metabolictest.ModelID:
		return rec, nil
	case restrictedID:
		project := int64(7)
		rec.ProjectID = &project
		return rec, nil
	default:
		return nil, warehouse.ErrModelNotFound
	}
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	registry     *warehouse.Registry
	deltas       IDeltaService
	modification IModificationService
	simulation   ISimulationService
	models       IModelService
	events       *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	registry := warehouse.NewRegistry(staticSource{}, nil)
	engine := flux.NewEngine(solver.NewSimplex())
	res := resolver.New()
	publisher := &recordingPublisher{}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	repo := memory.NewDeltaRepository(0)
	deltaService := NewDeltaService(repo, NewPublisherService(pubSub, "deltas"), pubSub, "deltas", log)
	require.NoError(t, deltaService.Consume(context.Background()))

	modification := NewModificationService(registry, adapter.New(res, engine.Solver()), publisher, log)
	simulation := NewSimulationService(registry, engine, 2, publisher, log)
	assembler := response.NewAssembler(engine, res, 0, nil)

	return &fixture{
		registry:     registry,
		deltas:       deltaService,
		modification: modification,
		simulation:   simulation,
		models:       NewModelService(registry, modification, simulation, deltaService, assembler, log),
		events:       publisher,
	}
}

func TestModify(t *testing.T) {
	f := newFixture(t)

	res, err := f.modification.Modify(context.Background(), metabolictest.ModelID, warehouse.Caller{}, &dto.ModifyRequest{
		Genotype: []string{"-pta"},
	})
	require.NoError(t, err)
	require.Len(t, res.Operations, 1)
	assert.Equal(t, "knockout gene b2297", res.Operations[0].String())
	assert.NotNil(t, res.Warnings)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.ModelModified, f.events.events[0].EventType())

	entry, err := f.registry.Get(context.Background(), metabolictest.ModelID, warehouse.Caller{})
	require.NoError(t, err)
	ptar, _ := entry.Model.Reaction("PTAr")
	assert.Equal(t, -1000.0, ptar.LowerBound(), "the wild type is untouched")
}

func TestModifyErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("applier errors", func(t *testing.T) {
		_, err := f.modification.Modify(context.Background(), metabolictest.ModelID, warehouse.Caller{}, &dto.ModifyRequest{
			Measurements: []dto.Measurement{{Type: "reaction", ID: "NOPE", Measurements: []float64{1}}},
		})
		var failed *ModificationFailedError
		require.True(t, errors.As(err, &failed))
		assert.Equal(t, []string{"Cannot find reaction 'NOPE' in the model"}, failed.Errors)
	})

	t.Run("genotype syntax", func(t *testing.T) {
		_, err := f.modification.Modify(context.Background(), metabolictest.ModelID, warehouse.Caller{}, &dto.ModifyRequest{
			Genotype: []string{"aceA"},
		})
		var failed *ModificationFailedError
		require.True(t, errors.As(err, &failed))
		require.Len(t, failed.Errors, 1)
		assert.Contains(t, failed.Errors[0], "Invalid genotype")
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := f.modification.Modify(context.Background(), "missing", warehouse.Caller{}, &dto.ModifyRequest{})
		assert.ErrorIs(t, err, warehouse.ErrModelNotFound)
	})

	t.Run("restricted model", func(t *testing.T) {
		_, err := f.modification.Modify(context.Background(), restrictedID, warehouse.Caller{}, &dto.ModifyRequest{})
		assert.ErrorIs(t, err, warehouse.ErrUnauthorized)
	})
}

func TestSimulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		req    *dto.SimulateRequest
		growth float64
		delta  float64
	}{
		{
			name:   "stored model",
			req:    &dto.SimulateRequest{ModelID: metabolictest.ModelID},
			growth: 20.0 / 3,
			delta:  1e-6,
		},
		{
			name: "operations",
			req: &dto.SimulateRequest{
				ModelID:    metabolictest.ModelID,
				Operations: []operations.Operation{operations.KnockoutReaction("PTAr")},
			},
			growth: 20.0 / 3,
			delta:  1e-6,
		},
		{
			name:   "ad-hoc model",
			req:    &dto.SimulateRequest{Model: metabolictest.CoreJSON(), BiomassReaction: metabolictest.BiomassID, Method: "pfba"},
			growth: 20.0 / 3,
			delta:  1e-6,
		},
		{
			name:   "moma",
			req:    &dto.SimulateRequest{ModelID: metabolictest.ModelID, Method: "moma"},
			growth: 20.0 / 3,
			delta:  1e-2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.simulation.Simulate(ctx, warehouse.Caller{}, tt.req)
			require.NoError(t, err)
			assert.Equal(t, string(solver.Optimal), res.Status)
			assert.InDelta(t, tt.growth, res.GrowthRate, tt.delta)
		})
	}

	t.Run("operations are reverted", func(t *testing.T) {
		res, err := f.simulation.Simulate(ctx, warehouse.Caller{}, &dto.SimulateRequest{ModelID: metabolictest.ModelID})
		require.NoError(t, err)
		fluxes := res.FluxDistribution.(map[string]float64)
		assert.InDelta(t, 10.0/3, fluxes["PFK"], 1e-6)
	})
}

func TestSimulateInfeasibleReportsMeasuredReactions(t *testing.T) {
	f := newFixture(t)
	fix := func(id string, value float64) operations.Operation {
		return operations.Operation{Kind: operations.Modify, Target: operations.Reaction, ID: id,
			Data: &operations.ReactionData{ID: id, LowerBound: value, UpperBound: value}}
	}

	res, err := f.simulation.Simulate(context.Background(), warehouse.Caller{}, &dto.SimulateRequest{
		ModelID: metabolictest.ModelID,
		Operations: []operations.Operation{
			fix("PFK", 4.8),
			fix(metabolictest.BiomassID, 100),
			{Kind: operations.Modify, Target: operations.Reaction, ID: "EX_glc__D_e",
				Data: &operations.ReactionData{ID: "EX_glc__D_e", LowerBound: -10, UpperBound: 1000}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, string(solver.Infeasible), res.Status)
	assert.Equal(t, map[string]float64{"PFK": 4.8, metabolictest.BiomassID: 100}, res.FluxDistribution)
}

func TestSimulateBadRequests(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		req     *dto.SimulateRequest
		message string
	}{
		{"nothing", &dto.SimulateRequest{}, "Missing field 'model' or 'model_id'"},
		{"no biomass", &dto.SimulateRequest{Model: json.RawMessage(`{}`)}, "Missing field 'biomass_reaction'"},
		{"broken model", &dto.SimulateRequest{Model: json.RawMessage(`{"reactions": 3}`), BiomassReaction: "X"}, "The provided model is not deserializable"},
		{"unknown biomass", &dto.SimulateRequest{Model: metabolictest.CoreJSON(), BiomassReaction: "X"}, "There is no biomass reaction with id 'X' in the model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.simulation.Simulate(context.Background(), warehouse.Caller{}, tt.req)
			var fiberErr *fiber.Error
			require.True(t, errors.As(err, &fiberErr))
			assert.Equal(t, http.StatusBadRequest, fiberErr.Code)
			assert.Equal(t, tt.message, fiberErr.Message)
		})
	}

	t.Run("unsupported method", func(t *testing.T) {
		_, err := f.simulation.Simulate(context.Background(), warehouse.Caller{}, &dto.SimulateRequest{ModelID: metabolictest.ModelID, Method: "dfba"})
		assert.ErrorIs(t, err, flux.ErrUnsupportedMethod)
	})

	t.Run("restricted model with the wrong project", func(t *testing.T) {
		caller := warehouse.Caller{Token: "t", Projects: []int64{1}}
		_, err := f.simulation.Simulate(context.Background(), caller, &dto.SimulateRequest{ModelID: restrictedID})
		assert.ErrorIs(t, err, warehouse.ErrForbidden)
	})
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	info, err := f.models.Info(context.Background(), metabolictest.ModelID, warehouse.Caller{})
	require.NoError(t, err)

	assert.Equal(t, "562", info.Organism)
	assert.Equal(t, metabolictest.BiomassID, info.BiomassReaction)
	assert.Contains(t, info.Medium, dto.MediumEntry{ID: "EX_glc__D_e", Name: "D-Glucose exchange", Bound: 10})
}

func TestGetModified(t *testing.T) {
	f := newFixture(t)
	raw, err := f.models.GetModified(context.Background(), metabolictest.ModelID, warehouse.Caller{},
		[]operations.Operation{operations.RemoveReaction("ACKr")})
	require.NoError(t, err)

	m, err := metabolic.Unmarshal(raw)
	require.NoError(t, err)
	ackr, ok := m.Reaction("ACKr")
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 0}, [2]float64{ackr.LowerBound(), ackr.UpperBound()})

	wt, err := f.models.Get(context.Background(), metabolictest.ModelID, warehouse.Caller{})
	require.NoError(t, err)
	assert.NotEqual(t, string(raw), string(wt))
}

func TestRespondStoresAndReplaysOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := &dto.ModelMessage{
		ModifyRequest: dto.ModifyRequest{Genotype: []string{"-pta"}},
		ToReturn:      []string{response.RemovedReactions, response.GrowthRate},
		RequestID:     "req-1",
	}

	out, err := f.models.Respond(ctx, metabolictest.ModelID, warehouse.Caller{}, msg, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"PTAr"}, out[response.RemovedReactions])
	assert.InDelta(t, 20.0/3, out[response.GrowthRate], 1e-6)
	assert.Equal(t, "req-1", out[response.RequestID])

	key, err := deltas.Key(metabolictest.ModelID, msg.Conditions())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := f.deltas.Lookup(ctx, key)
		return ok
	}, time.Second, 10*time.Millisecond)

	modified := len(f.events.events)
	out, err = f.models.Respond(ctx, metabolictest.ModelID, warehouse.Caller{}, msg, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"PTAr"}, out[response.RemovedReactions])
	for _, e := range f.events.events[modified:] {
		assert.NotEqual(t, events.ModelModified, e.EventType(), "a replayed log skips the appliers")
	}
}

func TestRespondRejectsUnknownKeys(t *testing.T) {
	f := newFixture(t)
	_, err := f.models.Respond(context.Background(), metabolictest.ModelID, warehouse.Caller{},
		&dto.ModelMessage{ToReturn: []string{"maps"}}, false)
	assert.ErrorIs(t, err, response.ErrUnknownKey)
}

func TestSessionScopesEachMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.models.OpenSession(ctx, metabolictest.ModelID, warehouse.Caller{})
	require.NoError(t, err)
	defer session.Close()

	out, err := session.Handle(ctx, &dto.ModelMessage{
		ModifyRequest: dto.ModifyRequest{
			Measurements: []dto.Measurement{{Type: "reaction", ID: "PFK", Measurements: []float64{2}}},
		},
		ToReturn: []string{response.Fluxes},
	})
	require.NoError(t, err)
	assert.InDelta(t, 2, out[response.Fluxes].(map[string]float64)["PFK"], 1e-6)

	out, err = session.Handle(ctx, &dto.ModelMessage{ToReturn: []string{response.Fluxes}})
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3, out[response.Fluxes].(map[string]float64)["PFK"], 1e-6)
}
