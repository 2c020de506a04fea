package adapter

import (
	"context"
	"sort"
	"strings"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/resolver"
)

// ApplyMedium opens uptake for the given compounds and closes it for every
// other exchange. Salts are split into their ions and metals and the trace
// metals of the calibration are always added.
func (a *Adapter) ApplyMedium(ctx context.Context, m *metabolic.Model, medium []Compound) Result {
	var res Result

	compounds := a.expandSalts(medium, &res)

	external, err := m.ExternalCompartment()
	if err != nil {
		msg := res.fail("Cannot find an external compartment in model %s: %s", m.ID, err)
		a.logger.Error("ADAPTER", msg, nil)
		return res
	}

	current := m.Medium()
	mapping := map[string]float64{}
	for _, c := range compounds {
		met, err := a.resolver.FindMetabolite(ctx, m, c.ID, c.Namespace, external)
		if err != nil {
			msg := res.warn("Cannot add medium compound '%s' - metabolite not found in extracellular compartment '%s'", c.ID, external)
			a.logger.Warn("ADAPTER", msg, nil)
			continue
		}
		exchanges := resolver.Exchanges(m, met)
		if len(exchanges) != 1 {
			res.fail("Medium compound metabolite '%s' has %d exchange reactions in the model; expected 1", met.ID, len(exchanges))
			continue
		}
		exchange := exchanges[0]

		if bound, ok := current[exchange.ID]; ok {
			mapping[exchange.ID] = bound
			continue
		}
		elements, ok := met.Elements()
		switch {
		case !ok:
			msg := res.warn("No formula for metabolite '%s', cannot check if it is a carbon source", met.ID)
			a.logger.Warn("ADAPTER", msg, nil)
			mapping[exchange.ID] = a.calibration.CarbonUptakeCap
		case elements["C"] > 0:
			mapping[exchange.ID] = a.calibration.CarbonUptakeCap
		default:
			mapping[exchange.ID] = a.calibration.DefaultUptakeCap
		}
	}

	if err := m.SetMedium(mapping); err != nil {
		res.fail("Cannot apply medium to model %s: %s", m.ID, err)
		return res
	}
	for _, r := range m.Exchanges() {
		res.Operations = append(res.Operations, operations.ModifyReaction(r))
	}

	a.logger.Info("ADAPTER", "Applied medium", map[string]interface{}{
		"model_id":  m.ID,
		"compounds": len(compounds),
		"exchanges": len(mapping),
	})
	return res
}

// expandSalts returns the deduplicated medium with salts replaced by their
// components, in a stable order.
func (a *Adapter) expandSalts(medium []Compound, res *Result) []Compound {
	set := map[Compound]bool{}
	add := func(c Compound) {
		c.Name = ""
		if strings.EqualFold(c.Namespace, "chebi") {
			c.ID = resolver.CanonicalChEBI(c.ID)
			c.Namespace = "chebi"
		}
		set[c] = true
	}

	for _, c := range medium {
		key := c.ID
		if strings.EqualFold(c.Namespace, "chebi") {
			key = resolver.CanonicalChEBI(c.ID)
		}
		salt, ok := a.salts[key]
		if !ok {
			add(c)
			continue
		}
		a.logger.Info("ADAPTER", "Replacing salt with its ions and metals", map[string]interface{}{
			"salt":   key,
			"ions":   salt.Ions,
			"metals": salt.Metals,
		})
		for _, id := range append(append([]string(nil), salt.Ions...), salt.Metals...) {
			add(Compound{ID: id, Namespace: "chebi"})
		}
		if len(salt.IonsMissingSmiles) > 0 {
			msg := res.warn("Unable to add ions, smiles id could not be mapped: %v", salt.IonsMissingSmiles)
			a.logger.Warn("ADAPTER", msg, nil)
		}
		if len(salt.MetalsMissingInchi) > 0 {
			msg := res.warn("Unable to add metals; inchi string could not be mapped: %v", salt.MetalsMissingInchi)
			a.logger.Warn("ADAPTER", msg, nil)
		}
	}
	for _, c := range a.calibration.TraceMetals {
		add(c)
	}

	out := make([]Compound, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].ID < out[j].ID
	})
	return out
}
