package adapter

import (
	"sort"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// allowTransport makes sure the extracellular metabolite can reach (or be
// reached from) its cytosolic form in the measured direction, adding a
// reversible adapter reaction when no path exists. direction > 0 means
// secretion.
func (a *Adapter) allowTransport(m *metabolic.Model, external *metabolic.Metabolite, direction float64) []operations.Operation {
	base, _, ok := metabolic.ParseCompartment(external.ID)
	if !ok {
		return nil
	}
	cytosol, ok := m.Metabolite(base + "_c")
	if !ok || hasTransport(m, base, cytosol.ID, external.ID, direction) {
		return nil
	}

	from, to := external.ID, cytosol.ID
	if direction > 0 {
		from, to = cytosol.ID, external.ID
	}
	id := "adapter_" + base
	if _, exists := m.Reaction(id); exists {
		return nil
	}
	a.logger.Info("ADAPTER", "Transport reaction not found, creating one", map[string]interface{}{
		"metabolite": base,
		"from":       from,
		"to":         to,
	})
	r := metabolic.NewReaction(id, base+" adapter transport", map[string]float64{from: -1, to: 1},
		metabolic.DefaultLowerBound, metabolic.DefaultUpperBound)
	if err := m.AddReaction(r); err != nil {
		a.logger.Warn("ADAPTER", "Cannot add transport reaction", map[string]interface{}{"reaction_id": id, "error": err.Error()})
		return nil
	}
	return []operations.Operation{operations.AddReaction(r)}
}

// hasTransport builds the directed graph of reactions that move base between
// compartments and checks for a path from cytosol to extracellular space
// (direction > 0) or back.
func hasTransport(m *metabolic.Model, base, cytosol, external string, direction float64) bool {
	var forms []string
	for c := range m.Compartments() {
		if _, ok := m.Metabolite(base + "_" + c); ok {
			forms = append(forms, base+"_"+c)
		}
	}
	sort.Strings(forms)
	for _, id := range []string{cytosol, external} {
		if indexOf(forms, id) < 0 {
			forms = append(forms, id)
		}
	}

	g := simple.NewDirectedGraph()
	for i := range forms {
		g.AddNode(simple.Node(i))
	}
	edge := func(from, to int) {
		if from != to {
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	for i := 0; i < len(forms); i++ {
		for j := i + 1; j < len(forms); j++ {
			for _, r := range m.MetaboliteReactions(forms[i]) {
				ci, cj := r.Coefficient(forms[i]), r.Coefficient(forms[j])
				if ci*cj >= 0 {
					continue
				}
				// from -> to follows the forward direction of r.
				from, to := i, j
				if cj < 0 {
					from, to = j, i
				}
				lower, upper := r.Bounds()
				if upper > 0 {
					edge(from, to)
				}
				if lower < 0 {
					edge(to, from)
				}
			}
		}
	}

	c, e := simple.Node(indexOf(forms, cytosol)), simple.Node(indexOf(forms, external))
	if direction > 0 {
		return topo.PathExistsIn(g, c, e)
	}
	return topo.PathExistsIn(g, e, c)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
