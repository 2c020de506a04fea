package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"metabolic-model-be/pkg/genotype"
	"metabolic-model-be/pkg/ice"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"

	"golang.org/x/sync/errgroup"
)

type partReactions struct {
	feature   string
	reactions map[string]string
	err       error
}

// ApplyGenotype knocks out removed genes and inserts the reactions of added
// parts, together with the transport and exchange reactions their new
// metabolites need to leave the cell.
func (a *Adapter) ApplyGenotype(ctx context.Context, m *metabolic.Model, g *genotype.Genotype) Result {
	var res Result
	if g == nil || g.Empty() {
		return res
	}

	for _, feature := range g.Removed() {
		gene, ok := operations.FindGene(m, feature)
		if !ok {
			msg := res.warn("Cannot knockout gene '%s', not found in the model", feature)
			a.logger.Warn("ADAPTER", msg, nil)
			continue
		}
		if err := m.KnockOutGene(gene.ID); err != nil {
			res.fail("Cannot knockout gene '%s': %s", gene.ID, err)
			continue
		}
		res.Operations = append(res.Operations, operations.KnockoutGene(gene.ID))
	}

	var added []string
	for _, feature := range g.Added() {
		if _, ok := operations.FindGene(m, feature); ok {
			a.logger.Info("ADAPTER", "Not adding gene, it already exists in the model", map[string]interface{}{"feature": feature})
			continue
		}
		added = append(added, feature)
	}

	for _, part := range a.lookupParts(ctx, added) {
		if part.err != nil {
			if errors.Is(part.err, ice.ErrPartNotFound) {
				msg := res.warn("Cannot add gene '%s', no gene-protein-reaction rules were found on ICE.", part.feature)
				a.logger.Warn("ADAPTER", msg, nil)
			} else {
				msg := res.fail("Cannot add gene '%s': %s", part.feature, part.err)
				a.logger.Error("ADAPTER", msg, nil)
			}
			continue
		}
		ids := make([]string, 0, len(part.reactions))
		for id := range part.reactions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			a.insertReaction(m, part.feature, id, part.reactions[id], &res)
		}
	}
	return res
}

// lookupParts queries the part registry for every feature concurrently. A
// failed lookup only affects its own feature.
func (a *Adapter) lookupParts(ctx context.Context, features []string) []partReactions {
	out := make([]partReactions, len(features))
	if len(features) == 0 {
		return out
	}
	if a.parts == nil {
		for i, f := range features {
			out[i] = partReactions{feature: f, err: errors.New("no part registry configured")}
		}
		return out
	}

	var eg errgroup.Group
	eg.SetLimit(a.calibration.LookupConcurrency)
	for i, f := range features {
		i, f := i, f
		eg.Go(func() error {
			reactions, err := a.parts.ReactionEquations(ctx, f)
			out[i] = partReactions{feature: f, reactions: reactions, err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func (a *Adapter) insertReaction(m *metabolic.Model, feature, id, equation string, res *Result) {
	a.logger.Info("ADAPTER", "Adding reaction catalyzed by genetic part", map[string]interface{}{
		"reaction_id": id,
		"feature":     feature,
	})

	eq, err := metabolic.ParseEquation(equation)
	if err != nil {
		res.fail("Cannot parse equation '%s' of reaction %s: %s", equation, id, err)
		return
	}

	var created []*metabolic.Metabolite
	for _, metID := range sortedMetabolites(eq.Metabolites) {
		if _, ok := m.Metabolite(metID); ok {
			continue
		}
		_, compartment, ok := metabolic.ParseCompartment(metID)
		if !ok {
			msg := res.fail("We cannot parse a compartment from heterologous metabolite '%s'.", metID)
			a.logger.Error("ADAPTER", msg, nil)
			continue
		}
		if !m.HasCompartment(compartment) {
			msg := res.fail("Compartment %s does not exist in the model, but that's what we understand metabolite %s to exist in.", compartment, metID)
			a.logger.Error("ADAPTER", msg, nil)
			continue
		}
		created = append(created, &metabolic.Metabolite{ID: metID, Name: metID, Compartment: compartment})
	}
	if len(created) != countMissing(m, eq.Metabolites) {
		return
	}

	if _, exists := m.Reaction(id); exists {
		msg := res.warn("Reaction %s already exists in the model, removing and replacing it.", id)
		a.logger.Warn("ADAPTER", msg, nil)
		if err := m.RemoveReaction(id); err != nil {
			res.fail("Cannot remove reaction %s: %s", id, err)
			return
		}
		res.Operations = append(res.Operations, operations.RemoveReaction(id))
	}

	if err := m.AddMetabolites(created...); err != nil {
		res.fail("Cannot add metabolites of reaction %s: %s", id, err)
		return
	}
	r := metabolic.NewReaction(id, id, eq.Metabolites, eq.Lower, eq.Upper)
	r.GeneReactionRule = feature
	if err := m.AddReaction(r); err != nil {
		res.fail("Cannot add reaction %s: %s", id, err)
		return
	}
	res.Operations = append(res.Operations, operations.AddReaction(r))

	external, err := m.ExternalCompartment()
	if err != nil {
		external = "e"
	}
	for _, met := range created {
		if met.Compartment == external {
			a.logger.Info("ADAPTER", "Metabolite is already extracellular; not creating transport/exchange reactions for it", map[string]interface{}{"metabolite": met.ID})
			continue
		}
		if err := a.exportMetabolite(m, met, external, res); err != nil {
			res.fail("Cannot create export reactions for heterologous metabolite '%s': %s", met.ID, err)
		}
	}
}

// exportMetabolite creates met's extracellular twin, a transport reaction
// between the two and an exchange for the twin.
func (a *Adapter) exportMetabolite(m *metabolic.Model, met *metabolic.Metabolite, external string, res *Result) error {
	base, _, _ := metabolic.ParseCompartment(met.ID)
	extID := base + "_" + external
	if _, ok := m.Metabolite(extID); !ok {
		twin := &metabolic.Metabolite{ID: extID, Name: met.Name, Formula: met.Formula, Compartment: external}
		if err := m.AddMetabolites(twin); err != nil {
			return err
		}
	}

	transportID := strings.ToUpper(base) + "t"
	if _, ok := m.Reaction(transportID); !ok {
		transport := metabolic.NewReaction(transportID, met.Name+" transport",
			map[string]float64{met.ID: -1, extID: 1}, metabolic.DefaultLowerBound, metabolic.DefaultUpperBound)
		if err := m.AddReaction(transport); err != nil {
			return err
		}
		res.Operations = append(res.Operations, operations.AddReaction(transport))
	}

	if _, ok := m.Reaction("EX_" + extID); ok {
		return nil
	}
	exchange, err := m.AddBoundary(extID)
	if err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	res.Operations = append(res.Operations, operations.AddReaction(exchange))
	return nil
}

func sortedMetabolites(in map[string]float64) []string {
	out := make([]string, 0, len(in))
	for id := range in {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func countMissing(m *metabolic.Model, metabolites map[string]float64) int {
	n := 0
	for id := range metabolites {
		if _, ok := m.Metabolite(id); !ok {
			n++
		}
	}
	return n
}
