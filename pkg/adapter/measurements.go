package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/reconcile"
	"metabolic-model-be/pkg/resolver"
	"metabolic-model-be/pkg/solver"
)

// Measurement kinds.
const (
	TypeCompound = "compound"
	TypeReaction = "reaction"
	TypeProtein  = "protein"
)

// Units of compound measurements.
const (
	UnitMmol = "mmol"
	UnitMg   = "mg"
)

// Measurement is an observed uptake/secretion rate, reaction flux or protein
// abundance.
type Measurement struct {
	Type         string    `json:"type"`
	ID           string    `json:"id"`
	Namespace    string    `json:"namespace,omitempty"`
	Name         string    `json:"name,omitempty"`
	Measurements []float64 `json:"measurements"`
	Unit         string    `json:"unit,omitempty"`
}

type GrowthRate struct {
	Measurements []float64 `json:"measurements"`
	Uncertainty  float64   `json:"uncertainty"`
}

// resolved is a measurement bound to the reaction it constrains.
type resolved struct {
	reaction   *metabolic.Reaction
	metabolite *metabolic.Metabolite
	measured   []string
}

// ValidateMeasurements rejects measurement kinds and units that the
// applier does not understand.
func ValidateMeasurements(measurements []Measurement) error {
	for _, ms := range measurements {
		switch ms.Type {
		case TypeCompound, TypeReaction, TypeProtein:
		default:
			return fmt.Errorf("%w: type '%s'", ErrUnsupportedMeasurement, ms.Type)
		}
		switch strings.ToLower(ms.Unit) {
		case "", UnitMmol:
		case UnitMg:
			if ms.Type != TypeCompound {
				return fmt.Errorf("%w: unit '%s' on %s measurement '%s'", ErrUnsupportedMeasurement, ms.Unit, ms.Type, ms.ID)
			}
		default:
			return fmt.Errorf("%w: unit '%s'", ErrUnsupportedMeasurement, ms.Unit)
		}
	}
	return nil
}

// ApplyMeasurements constrains the model with the growth rate and the
// measurements. When a growth rate is given the reaction fluxes are first
// replaced by the closest feasible values; measurements that cannot be
// reconciled fail the result and leave the model untouched. Only unsupported
// measurement kinds and solver faults are returned as errors.
func (a *Adapter) ApplyMeasurements(ctx context.Context, m *metabolic.Model, biomassID string, growth *GrowthRate, measurements []Measurement) (Result, error) {
	var res Result
	if err := ValidateMeasurements(measurements); err != nil {
		return res, err
	}

	measurements = a.normalizeUnits(ctx, m, measurements, &res)

	if growth != nil {
		reconciledGrowth, reconciled, ok, err := a.reconcile(ctx, m, biomassID, growth, measurements, &res)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, nil
		}
		growth, measurements = reconciledGrowth, reconciled
	}

	if growth != nil {
		if lower, upper, ok := reconcile.BoundsFor(growth.Measurements); ok {
			a.constrain(m, biomassID, lower, upper, &res)
		} else {
			res.warn("Growth rate has no valid measurement. Ignored.")
		}
	}

	external, extErr := m.ExternalCompartment()
	for _, ms := range measurements {
		lower, upper, ok := reconcile.BoundsFor(ms.Measurements)
		if !ok {
			res.warn("Measurement '%s' has no valid value. Ignored.", ms.ID)
			continue
		}
		if ms.Type == TypeCompound && extErr != nil {
			res.fail("Cannot find an external compartment in model %s: %s", m.ID, extErr)
			res.MissingMeasured = append(res.MissingMeasured, ms.ID)
			continue
		}

		target, err := a.resolve(ctx, m, ms, external)
		if err != nil {
			res.fail("%s", err)
			res.MissingMeasured = append(res.MissingMeasured, ms.ID)
			continue
		}

		switch ms.Type {
		case TypeCompound:
			// Values are secretion-positive; flip them for exchanges written "<-- x".
			secretion := lower
			if target.reaction.Coefficient(target.metabolite.ID) > 0 {
				lower, upper = -upper, -lower
			}
			res.Operations = append(res.Operations, a.allowTransport(m, target.metabolite, secretion)...)
		case TypeProtein:
			lower = 0
		}
		if a.constrain(m, target.reaction.ID, lower, upper, &res) {
			res.Measured = append(res.Measured, target.measured...)
		} else {
			res.MissingMeasured = append(res.MissingMeasured, target.reaction.ID)
		}
	}
	return res, nil
}

// MeasuredReactions returns the reactions the measurements resolve to and
// the measurement ids that resolve to nothing, without touching the model.
func (a *Adapter) MeasuredReactions(ctx context.Context, m *metabolic.Model, biomassID string, growth *GrowthRate, measurements []Measurement) (measured, missing []string) {
	if growth != nil {
		if _, ok := m.Reaction(biomassID); ok {
			measured = append(measured, biomassID)
		}
	}
	external, _ := m.ExternalCompartment()
	for _, ms := range measurements {
		if len(reconcile.Valid(ms.Measurements)) == 0 {
			continue
		}
		target, err := a.resolve(ctx, m, ms, external)
		if err != nil {
			missing = append(missing, ms.ID)
			continue
		}
		measured = append(measured, target.measured...)
	}
	return measured, missing
}

func (a *Adapter) resolve(ctx context.Context, m *metabolic.Model, ms Measurement, external string) (*resolved, error) {
	switch ms.Type {
	case TypeCompound:
		met, err := a.resolver.FindMetabolite(ctx, m, ms.ID, ms.Namespace, external)
		if err != nil {
			return nil, err
		}
		exchanges := resolver.Exchanges(m, met)
		if len(exchanges) != 1 {
			return nil, fmt.Errorf("Measured metabolite '%s' has %d exchange reactions in the model; expected 1", met.ID, len(exchanges))
		}
		out := &resolved{reaction: exchanges[0], metabolite: met, measured: []string{exchanges[0].ID}}
		if transport := singleTransport(m, exchanges[0], met); transport != "" {
			out.measured = append(out.measured, transport)
		}
		return out, nil
	case TypeReaction:
		r, ok := m.Reaction(ms.ID)
		if !ok {
			return nil, fmt.Errorf("Cannot find reaction '%s' in the model", ms.ID)
		}
		return &resolved{reaction: r, measured: []string{r.ID}}, nil
	case TypeProtein:
		r, err := a.resolver.FindReaction(ctx, m, ms.ID, ms.Namespace)
		if err != nil {
			return nil, err
		}
		return &resolved{reaction: r, measured: []string{r.ID}}, nil
	default:
		return nil, fmt.Errorf("%w: type '%s'", ErrUnsupportedMeasurement, ms.Type)
	}
}

// singleTransport returns the transport reaction when it is the only other
// reaction of the exchanged metabolite and moves it to one other metabolite.
func singleTransport(m *metabolic.Model, exchange *metabolic.Reaction, met *metabolic.Metabolite) string {
	var connected []*metabolic.Reaction
	for _, r := range m.MetaboliteReactions(met.ID) {
		if r.ID != exchange.ID {
			connected = append(connected, r)
		}
	}
	if len(connected) != 1 {
		return ""
	}
	next := connected[0]
	var others []string
	for _, id := range next.MetaboliteIDs() {
		if id != met.ID {
			others = append(others, id)
		}
	}
	if len(others) != 1 || next.Coefficient(met.ID)*next.Coefficient(others[0]) >= 0 {
		return ""
	}
	return next.ID
}

func (a *Adapter) constrain(m *metabolic.Model, id string, lower, upper float64, res *Result) bool {
	if err := m.SetBounds(id, lower, upper); err != nil {
		res.fail("Cannot constrain reaction '%s' to [%g, %g]: %s", id, lower, upper, err)
		return false
	}
	r, _ := m.Reaction(id)
	res.Operations = append(res.Operations, operations.ModifyReaction(r))
	return true
}

// normalizeUnits converts compound measurements given in mg to mmol using
// the formula weight of the resolved metabolite.
func (a *Adapter) normalizeUnits(ctx context.Context, m *metabolic.Model, measurements []Measurement, res *Result) []Measurement {
	out := make([]Measurement, 0, len(measurements))
	for _, ms := range measurements {
		if !strings.EqualFold(ms.Unit, UnitMg) {
			out = append(out, ms)
			continue
		}
		weight, ok := a.formulaWeight(ctx, m, ms)
		if !ok {
			msg := res.warn("Cannot convert measurement of '%s' from mg to mmol, the formula weight is unknown. Ignored.", ms.ID)
			a.logger.Warn("ADAPTER", msg, nil)
			continue
		}
		converted := ms
		converted.Unit = UnitMmol
		converted.Measurements = make([]float64, len(ms.Measurements))
		for i, v := range ms.Measurements {
			converted.Measurements[i] = v / weight
		}
		out = append(out, converted)
	}
	return out
}

func (a *Adapter) formulaWeight(ctx context.Context, m *metabolic.Model, ms Measurement) (float64, bool) {
	external, err := m.ExternalCompartment()
	if err != nil {
		return 0, false
	}
	met, err := a.resolver.FindMetabolite(ctx, m, ms.ID, ms.Namespace, external)
	if err != nil {
		return 0, false
	}
	weight, ok := met.FormulaWeight()
	return weight, ok && weight > 0
}

// reconcile replaces the growth rate and reaction fluxes with the closest
// feasible values. It reports false when no flux distribution matches the
// measurements; the failure is recorded on res.
func (a *Adapter) reconcile(ctx context.Context, m *metabolic.Model, biomassID string, growth *GrowthRate, measurements []Measurement, res *Result) (*GrowthRate, []Measurement, bool, error) {
	var fluxes []reconcile.Flux
	var positions []int
	for i, ms := range measurements {
		if ms.Type == TypeReaction {
			fluxes = append(fluxes, reconcile.Flux{ReactionID: ms.ID, Measurements: ms.Measurements})
			positions = append(positions, i)
		}
	}

	out, err := reconcile.MinimizeDistance(ctx, m, a.solver, biomassID,
		&reconcile.Growth{Measurements: growth.Measurements, Uncertainty: growth.Uncertainty},
		fluxes, reconcile.Options{BigM: a.calibration.BigM, Quadratic: a.calibration.Quadratic})
	switch {
	case errors.Is(err, solver.ErrInfeasible), errors.Is(err, solver.ErrUnbounded):
		msg := res.fail("Measurements could not be reconciled with the model: %s", err)
		a.logger.Warn("ADAPTER", msg, map[string]interface{}{"model_id": m.ID})
		return nil, nil, false, nil
	case errors.Is(err, metabolic.ErrReactionNotFound):
		res.fail("%s", err)
		return nil, measurements, true, nil
	case err != nil:
		return nil, nil, false, err
	}
	res.Warnings = append(res.Warnings, out.Warnings...)

	reconciled := append([]Measurement(nil), measurements...)
	for j, i := range positions {
		reconciled[i].Measurements = out.Fluxes[j].Measurements
	}
	return &GrowthRate{Measurements: out.Growth.Measurements}, reconciled, true, nil
}
