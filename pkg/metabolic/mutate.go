package metabolic

import (
	"fmt"
)

// AddCompartment registers a compartment. Existing ids are left untouched.
func (m *Model) AddCompartment(id, name string) {
	if _, ok := m.compartments[id]; ok {
		return
	}
	m.compartments[id] = name
	m.recordStructure(func() { delete(m.compartments, id) })
}

// AddMetabolites adds metabolites, registering unseen compartments.
func (m *Model) AddMetabolites(mets ...*Metabolite) error {
	seen := map[string]bool{}
	for _, met := range mets {
		if _, ok := m.metaboliteIdx[met.ID]; ok || seen[met.ID] {
			return fmt.Errorf("metabolite %s: %w", met.ID, ErrDuplicateID)
		}
		seen[met.ID] = true
	}
	for _, met := range mets {
		if met.Compartment != "" {
			m.AddCompartment(met.Compartment, met.Compartment)
		}
		m.metabolites = append(m.metabolites, met)
		m.metaboliteIdx[met.ID] = met
		added := met
		m.recordStructure(func() {
			m.metabolites = removeMetabolite(m.metabolites, added)
			delete(m.metaboliteIdx, added.ID)
		})
	}
	return nil
}

// AddReaction adds a reaction whose metabolites must already exist. Genes
// named in the rule that are not in the model are created.
func (m *Model) AddReaction(r *Reaction) error {
	if _, ok := m.reactionIdx[r.ID]; ok {
		return fmt.Errorf("reaction %s: %w", r.ID, ErrDuplicateID)
	}
	if !validBounds(r.lowerBound, r.upperBound) {
		return fmt.Errorf("reaction %s: %w", r.ID, ErrInvalidBounds)
	}
	for _, id := range r.MetaboliteIDs() {
		if _, ok := m.metaboliteIdx[id]; !ok {
			return fmt.Errorf("reaction %s, metabolite %s: %w", r.ID, id, ErrUnknownMetabolite)
		}
	}
	if r.metabolites == nil {
		r.metabolites = map[string]float64{}
	}
	if err := m.ensureGenes(r.GeneReactionRule); err != nil {
		return fmt.Errorf("reaction %s: %w", r.ID, err)
	}
	m.reactions = append(m.reactions, r)
	m.reactionIdx[r.ID] = r
	m.recordStructure(func() {
		m.reactions = removeReaction(m.reactions, r)
		delete(m.reactionIdx, r.ID)
	})
	return nil
}

// RemoveReaction deletes the reaction from the model and the objective.
func (m *Model) RemoveReaction(id string) error {
	r, ok := m.reactionIdx[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrReactionNotFound)
	}
	pos := 0
	for i, candidate := range m.reactions {
		if candidate == r {
			pos = i
			break
		}
	}
	coefficient, inObjective := m.objective[id]
	m.reactions = append(m.reactions[:pos:pos], m.reactions[pos+1:]...)
	delete(m.reactionIdx, id)
	delete(m.objective, id)
	m.recordStructure(func() {
		m.reactions = append(m.reactions[:pos:pos], append([]*Reaction{r}, m.reactions[pos:]...)...)
		m.reactionIdx[id] = r
		if inObjective {
			m.objective[id] = coefficient
		}
	})
	return nil
}

func (m *Model) SetBounds(id string, lower, upper float64) error {
	r, ok := m.reactionIdx[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrReactionNotFound)
	}
	if !validBounds(lower, upper) {
		return fmt.Errorf("reaction %s (%g, %g): %w", id, lower, upper, ErrInvalidBounds)
	}
	oldLower, oldUpper := r.lowerBound, r.upperBound
	r.lowerBound, r.upperBound = lower, upper
	m.record(func() { r.lowerBound, r.upperBound = oldLower, oldUpper })
	return nil
}

// KnockOutReaction zeroes both bounds.
func (m *Model) KnockOutReaction(id string) error {
	return m.SetBounds(id, 0, 0)
}

// KnockOutGene marks the gene non-functional and zeroes every reaction whose
// rule no longer evaluates to true.
func (m *Model) KnockOutGene(id string) error {
	g, ok := m.geneIdx[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrGeneNotFound)
	}
	if g.functional {
		g.functional = false
		m.record(func() { g.functional = true })
	}
	active := func(geneID string) bool {
		gene, ok := m.geneIdx[geneID]
		return !ok || gene.functional
	}
	for _, r := range m.GeneReactions(id) {
		expr, err := ParseGPR(r.GeneReactionRule)
		if err != nil {
			return fmt.Errorf("reaction %s: %w", r.ID, err)
		}
		if !expr.Eval(active) {
			if err := m.SetBounds(r.ID, 0, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetObjective replaces the objective.
func (m *Model) SetObjective(coefficients map[string]float64, direction Direction) error {
	for id := range coefficients {
		if _, ok := m.reactionIdx[id]; !ok {
			return fmt.Errorf("objective %s: %w", id, ErrReactionNotFound)
		}
	}
	if direction != Maximize && direction != Minimize {
		return fmt.Errorf("unknown objective direction %q", direction)
	}
	oldObjective, oldDirection := m.objective, m.direction
	next := make(map[string]float64, len(coefficients))
	for k, v := range coefficients {
		if v != 0 {
			next[k] = v
		}
	}
	m.objective, m.direction = next, direction
	m.record(func() { m.objective, m.direction = oldObjective, oldDirection })
	return nil
}

func (m *Model) SetGeneReactionRule(id, rule string) error {
	r, ok := m.reactionIdx[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrReactionNotFound)
	}
	if err := m.ensureGenes(rule); err != nil {
		return err
	}
	old := r.GeneReactionRule
	r.GeneReactionRule = rule
	m.record(func() { r.GeneReactionRule = old })
	return nil
}

// AddGene adds a gene. Existing ids are an error.
func (m *Model) AddGene(g *Gene) error {
	if _, ok := m.geneIdx[g.ID]; ok {
		return fmt.Errorf("gene %s: %w", g.ID, ErrDuplicateID)
	}
	m.genes = append(m.genes, g)
	m.geneIdx[g.ID] = g
	m.record(func() {
		m.genes = removeGene(m.genes, g)
		delete(m.geneIdx, g.ID)
	})
	return nil
}

func (m *Model) ensureGenes(rule string) error {
	if rule == "" {
		return nil
	}
	expr, err := ParseGPR(rule)
	if err != nil {
		return err
	}
	for _, id := range expr.Genes() {
		if _, ok := m.geneIdx[id]; ok {
			continue
		}
		if err := m.AddGene(NewGene(id, id)); err != nil {
			return err
		}
	}
	return nil
}

func removeReaction(list []*Reaction, target *Reaction) []*Reaction {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func removeMetabolite(list []*Metabolite, target *Metabolite) []*Metabolite {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func removeGene(list []*Gene, target *Gene) []*Gene {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
