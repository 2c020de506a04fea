// Package response builds the payload returned for a modified and simulated
// model.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/logging"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"

	"github.com/wI2L/jsondiff"
)

// Payload keys.
const (
	Fluxes                   = "fluxes"
	GrowthRate               = "growth-rate"
	TMY                      = "tmy"
	Model                    = "model"
	RemovedReactions         = "removed-reactions"
	AddedReactions           = "added-reactions"
	MeasuredReactions        = "measured-reactions"
	MissingMeasuredReactions = "missing-measured-reactions"

	RequestID = "request-id"
	ModelID   = "model-id"
	Status    = "status"
)

// Keys is every selectable key, the default selection.
var Keys = []string{
	Fluxes, TMY, Model, GrowthRate,
	RemovedReactions, MeasuredReactions, AddedReactions, MissingMeasuredReactions,
}

var ErrUnknownKey = errors.New("unknown response key")

// Input carries everything a response may report. Model must still hold the
// applied operations when Assemble runs.
type Input struct {
	Model           *metabolic.Model
	WildType        *metabolic.Model
	Diff            bool
	Simulation      *flux.Result
	Operations      []operations.Operation
	Measured        []string
	MissingMeasured []string
	Objectives      []string
	ToReturn        []string
	RequestID       string
	ModelID         string
}

type Assembler struct {
	engine *flux.Engine
	finder flux.ExchangeFinder
	points int
	logger logging.Logger
}

func NewAssembler(engine *flux.Engine, finder flux.ExchangeFinder, points int, logger logging.Logger) *Assembler {
	if points < 2 {
		points = flux.DefaultPhasePlanePoints
	}
	return &Assembler{engine: engine, finder: finder, points: points, logger: logging.OrNop(logger)}
}

// ValidateKeys rejects unknown to-return keys.
func ValidateKeys(keys []string) error {
	for _, k := range keys {
		if !contains(Keys, k) {
			return fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
	}
	return nil
}

// Assemble returns the selected keys. An empty selection returns all of
// them.
func (a *Assembler) Assemble(ctx context.Context, in Input) (map[string]interface{}, error) {
	selected := in.ToReturn
	if len(selected) == 0 {
		selected = Keys
	}
	if err := ValidateKeys(selected); err != nil {
		return nil, err
	}

	out := map[string]interface{}{}
	if in.Simulation != nil {
		out[Status] = in.Simulation.Status
		if contains(selected, Fluxes) {
			out[Fluxes] = in.Simulation.FluxDistribution()
		}
		if contains(selected, GrowthRate) {
			out[GrowthRate] = in.Simulation.GrowthRate
		}
	}

	if contains(selected, TMY) {
		tmy := map[string]interface{}{}
		for _, objective := range in.Objectives {
			curve, err := a.engine.TheoreticalYield(ctx, in.Model, a.finder, objective, a.points)
			if err != nil {
				return nil, fmt.Errorf("theoretical yield of %s: %w", objective, err)
			}
			tmy[objective] = curve
		}
		out[TMY] = tmy
	}

	if contains(selected, Model) {
		model, err := a.model(in)
		if err != nil {
			return nil, err
		}
		out[Model] = model
	}

	summary := operations.Summarize(in.Model, in.Operations)
	if contains(selected, RemovedReactions) {
		out[RemovedReactions] = summary.Removed
	}
	if contains(selected, AddedReactions) {
		out[AddedReactions] = summary.Added
	}
	if contains(selected, MeasuredReactions) {
		out[MeasuredReactions] = unique(in.Measured)
	}
	if contains(selected, MissingMeasuredReactions) {
		out[MissingMeasuredReactions] = unique(in.MissingMeasured)
	}

	if in.RequestID != "" {
		out[RequestID] = in.RequestID
	}
	if in.ModelID != "" {
		out[ModelID] = in.ModelID
	}
	return out, nil
}

// model is the full document, or a JSON patch from the wild type when a
// diff was asked for.
func (a *Assembler) model(in Input) (interface{}, error) {
	doc := in.Model.ToDocument()
	if !in.Diff || in.WildType == nil {
		return doc, nil
	}
	source, err := json.Marshal(in.WildType.ToDocument())
	if err != nil {
		return nil, fmt.Errorf("marshal wild type: %w", err)
	}
	target, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	patch, err := jsondiff.CompareJSON(source, target)
	if err != nil {
		return nil, fmt.Errorf("diff model: %w", err)
	}
	a.logger.Debug("RESPONSE", "Computed model patch", map[string]interface{}{"operations": len(patch)})
	if patch == nil {
		patch = jsondiff.Patch{}
	}
	return patch, nil
}

func unique(ids []string) []string {
	set := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !set[id] {
			set[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
