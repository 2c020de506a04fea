package operations

import (
	"fmt"
	"sort"

	"metabolic-model-be/pkg/metabolic"
)

// Apply replays ops against the model in order. Removing or knocking out a
// reaction zeroes its bounds so that later operations can still address it.
func Apply(m *metabolic.Model, ops []Operation) error {
	for i, op := range ops {
		if err := apply(m, op); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op, err)
		}
	}
	return nil
}

func apply(m *metabolic.Model, op Operation) error {
	switch {
	case op.Kind == Add && op.Target == Reaction:
		return addReaction(m, op)
	case op.Kind == Modify && op.Target == Reaction:
		if op.Data == nil {
			return fmt.Errorf("modify without bounds: %w", ErrUnsupportedOperation)
		}
		return m.SetBounds(op.ID, op.Data.LowerBound, op.Data.UpperBound)
	case (op.Kind == Remove || op.Kind == Knockout) && op.Target == Reaction:
		return m.KnockOutReaction(op.ID)
	case op.Kind == Knockout && op.Target == Gene:
		g, ok := FindGene(m, op.ID)
		if !ok {
			return fmt.Errorf("%s: %w", op.ID, metabolic.ErrGeneNotFound)
		}
		return m.KnockOutGene(g.ID)
	default:
		return fmt.Errorf("cannot %s a %s: %w", op.Kind, op.Target, ErrUnsupportedOperation)
	}
}

func addReaction(m *metabolic.Model, op Operation) error {
	data := op.Data
	if data == nil {
		return fmt.Errorf("add without reaction data: %w", ErrUnsupportedOperation)
	}
	id := data.ID
	if id == "" {
		id = op.ID
	}

	var missing []*metabolic.Metabolite
	for _, metID := range sortedIDs(data.Metabolites) {
		if _, ok := m.Metabolite(metID); ok {
			continue
		}
		compartment := "c"
		if _, c, ok := metabolic.ParseCompartment(metID); ok {
			compartment = c
		}
		missing = append(missing, &metabolic.Metabolite{ID: metID, Compartment: compartment})
	}
	if err := m.AddMetabolites(missing...); err != nil {
		return err
	}

	if existing, ok := m.Reaction(id); ok {
		// Replaying add after remove: restore the reaction in place.
		if err := m.RemoveReaction(existing.ID); err != nil {
			return err
		}
	}
	r := metabolic.NewReaction(id, data.Name, data.Metabolites, data.LowerBound, data.UpperBound)
	r.GeneReactionRule = data.GeneReactionRule
	return m.AddReaction(r)
}

func sortedIDs(in map[string]float64) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Summary struct {
	Added   []string
	Removed []string
}

// Summarize lists the reactions an applied log added (helper reactions
// excluded) and removed. Reactions disabled by a gene knockout count as
// removed when the model now blocks them.
func Summarize(m *metabolic.Model, ops []Operation) Summary {
	added := map[string]bool{}
	removed := map[string]bool{}
	for _, op := range ops {
		switch {
		case op.Kind == Add && op.Target == Reaction:
			if !IsDummy(op.ID) {
				added[op.ID] = true
			}
		case (op.Kind == Remove || op.Kind == Knockout) && op.Target == Reaction:
			removed[op.ID] = true
		case op.Kind == Knockout && op.Target == Gene:
			g, ok := FindGene(m, op.ID)
			if !ok {
				continue
			}
			for _, r := range m.GeneReactions(g.ID) {
				if r.LowerBound() == 0 && r.UpperBound() == 0 {
					removed[r.ID] = true
				}
			}
		}
	}
	return Summary{Added: keys(added), Removed: keys(removed)}
}

// Measured lists, in order, the reactions that modify operations pin inside
// the default flux range. Measurements and growth rates produce such
// operations, medium exchanges do not.
func Measured(ops []Operation) []string {
	seen := map[string]bool{}
	var out []string
	for _, op := range ops {
		if op.Kind != Modify || op.Target != Reaction || op.Data == nil || seen[op.ID] {
			continue
		}
		lower, upper := op.Data.LowerBound, op.Data.UpperBound
		if lower > metabolic.DefaultLowerBound && upper < metabolic.DefaultUpperBound {
			seen[op.ID] = true
			out = append(out, op.ID)
		}
	}
	return out
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
