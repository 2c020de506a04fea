package dto

import (
	"encoding/json"

	"metabolic-model-be/pkg/adapter"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/warehouse"
)

type MediumCompound struct {
	ID        string `json:"id" validate:"required"`
	Namespace string `json:"namespace" validate:"required"`
	Name      string `json:"name"`
}

type Measurement struct {
	Type         string    `json:"type" validate:"required,oneof=compound reaction protein"`
	ID           string    `json:"id" validate:"required"`
	Namespace    string    `json:"namespace"`
	Name         string    `json:"name"`
	Measurements []float64 `json:"measurements"`
	Unit         string    `json:"unit" validate:"omitempty,oneof=mmol mg"`
}

type GrowthRate struct {
	Measurements []float64 `json:"measurements"`
	Uncertainty  float64   `json:"uncertainty" validate:"min=0"`
}

// UnmarshalJSON also accepts a single observation as "measurement".
func (g *GrowthRate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Measurement  *float64  `json:"measurement"`
		Measurements []float64 `json:"measurements"`
		Uncertainty  float64   `json:"uncertainty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Measurements, g.Uncertainty = raw.Measurements, raw.Uncertainty
	if len(g.Measurements) == 0 && raw.Measurement != nil {
		g.Measurements = []float64{*raw.Measurement}
	}
	return nil
}

// ModifyRequest is the perturbation part of a request; it is also what the
// delta key is computed from.
type ModifyRequest struct {
	Medium       []MediumCompound `json:"medium" validate:"dive"`
	Genotype     []string         `json:"genotype"`
	GrowthRate   *GrowthRate      `json:"growth_rate"`
	Measurements []Measurement    `json:"measurements" validate:"dive"`
}

func (r *ModifyRequest) Empty() bool {
	return len(r.Medium) == 0 && len(r.Genotype) == 0 && r.GrowthRate == nil && len(r.Measurements) == 0
}

// Conditions returns the non-empty parts of the request, so that leaving a
// field out and sending it empty yield the same delta key.
func (r *ModifyRequest) Conditions() map[string]interface{} {
	out := map[string]interface{}{}
	if len(r.Medium) > 0 {
		out["medium"] = r.Medium
	}
	if len(r.Genotype) > 0 {
		out["genotype"] = r.Genotype
	}
	if r.GrowthRate != nil {
		out["growth_rate"] = r.GrowthRate
	}
	if len(r.Measurements) > 0 {
		out["measurements"] = r.Measurements
	}
	return out
}

func (r *ModifyRequest) Compounds() []adapter.Compound {
	out := make([]adapter.Compound, len(r.Medium))
	for i, c := range r.Medium {
		out[i] = adapter.Compound{ID: c.ID, Namespace: c.Namespace, Name: c.Name}
	}
	return out
}

func (r *ModifyRequest) AdapterGrowthRate() *adapter.GrowthRate {
	if r.GrowthRate == nil {
		return nil
	}
	return &adapter.GrowthRate{Measurements: r.GrowthRate.Measurements, Uncertainty: r.GrowthRate.Uncertainty}
}

func (r *ModifyRequest) AdapterMeasurements() []adapter.Measurement {
	out := make([]adapter.Measurement, len(r.Measurements))
	for i, m := range r.Measurements {
		out[i] = adapter.Measurement{
			Type:         m.Type,
			ID:           m.ID,
			Namespace:    m.Namespace,
			Name:         m.Name,
			Measurements: m.Measurements,
			Unit:         m.Unit,
		}
	}
	return out
}

type ModifyResponse struct {
	Operations []operations.Operation `json:"operations"`
	Warnings   []string               `json:"warnings"`
}

type ModifyErrorResponse struct {
	Errors []string `json:"errors"`
}

type SimulateRequest struct {
	ModelID            warehouse.ID           `json:"model_id"`
	Model              json.RawMessage        `json:"model"`
	BiomassReaction    string                 `json:"biomass_reaction"`
	Method             string                 `json:"method" validate:"omitempty,oneof=fba pfba fva pfba-fva moma lmoma"`
	ObjectiveID        string                 `json:"objective_id"`
	ObjectiveDirection string                 `json:"objective_direction" validate:"omitempty,oneof=max min"`
	Operations         []operations.Operation `json:"operations"`
}

type SimulateResponse struct {
	FluxDistribution interface{} `json:"flux_distribution"`
	GrowthRate       float64     `json:"growth_rate"`
	Status           string      `json:"status"`
}

type MediumEntry struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Bound float64 `json:"bound"`
}

type ModelInfoResponse struct {
	Medium          []MediumEntry `json:"medium"`
	Organism        string        `json:"organism"`
	BiomassReaction string        `json:"biomass_reaction"`
}

// ModelMessage is one simulation request of the model endpoint and of a
// WebSocket session.
type ModelMessage struct {
	ModifyRequest
	Method             string   `json:"method" validate:"omitempty,oneof=fba pfba fva pfba-fva moma lmoma"`
	Objective          string   `json:"objective"`
	ObjectiveID        string   `json:"objective_id"`
	ObjectiveDirection string   `json:"objective_direction" validate:"omitempty,oneof=max min"`
	ToReturn           []string `json:"to-return"`
	Objectives         []string `json:"objectives"`
	RequestID          string   `json:"request-id"`
}

// ObjectiveReaction is the objective override; "objective" is accepted as
// an alias of "objective_id".
func (m *ModelMessage) ObjectiveReaction() string {
	if m.ObjectiveID != "" {
		return m.ObjectiveID
	}
	return m.Objective
}

type ModelRequest struct {
	Message *ModelMessage `json:"message" validate:"required"`
}

// PersistDeltaMessage is published for the delta consumer to store.
type PersistDeltaMessage struct {
	Key        string                 `json:"key"`
	ModelID    string                 `json:"model_id"`
	Operations []operations.Operation `json:"operations"`
}
