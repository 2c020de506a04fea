// Package metabolic holds the in-memory representation of a constraint-based
// metabolic model: reactions, metabolites, genes and the objective, together
// with scoped (revertible) mutation.
package metabolic

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

var (
	ErrReactionNotFound   = errors.New("reaction not found")
	ErrMetaboliteNotFound = errors.New("metabolite not found")
	ErrGeneNotFound       = errors.New("gene not found")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrUnknownMetabolite  = errors.New("reaction references unknown metabolite")
	ErrInvalidBounds      = errors.New("lower bound exceeds upper bound")
)

// Direction of the objective.
type Direction string

const (
	Maximize Direction = "max"
	Minimize Direction = "min"
)

type Model struct {
	ID           string
	Name         string
	Version      string
	compartments map[string]string

	metabolites   []*Metabolite
	metaboliteIdx map[string]*Metabolite
	reactions     []*Reaction
	reactionIdx   map[string]*Reaction
	genes         []*Gene
	geneIdx       map[string]*Gene

	objective map[string]float64
	direction Direction

	journal journal

	// exchanges is derived from the structure; nil means it must be rebuilt.
	exchanges atomic.Pointer[exchangeSet]
}

func NewModel(id string) *Model {
	return &Model{
		ID:            id,
		compartments:  map[string]string{},
		metaboliteIdx: map[string]*Metabolite{},
		reactionIdx:   map[string]*Reaction{},
		geneIdx:       map[string]*Gene{},
		objective:     map[string]float64{},
		direction:     Maximize,
	}
}

func (m *Model) Reaction(id string) (*Reaction, bool) {
	r, ok := m.reactionIdx[id]
	return r, ok
}

func (m *Model) Metabolite(id string) (*Metabolite, bool) {
	met, ok := m.metaboliteIdx[id]
	return met, ok
}

func (m *Model) Gene(id string) (*Gene, bool) {
	g, ok := m.geneIdx[id]
	return g, ok
}

// Reactions returns reactions in insertion order. The slice must not be modified.
func (m *Model) Reactions() []*Reaction { return m.reactions }

func (m *Model) Metabolites() []*Metabolite { return m.metabolites }

func (m *Model) Genes() []*Gene { return m.genes }

// Compartments returns a copy of the compartment id to name mapping.
func (m *Model) Compartments() map[string]string {
	out := make(map[string]string, len(m.compartments))
	for k, v := range m.compartments {
		out[k] = v
	}
	return out
}

func (m *Model) HasCompartment(id string) bool {
	_, ok := m.compartments[id]
	return ok
}

// Objective returns a copy of the objective coefficients and the direction.
func (m *Model) Objective() (map[string]float64, Direction) {
	out := make(map[string]float64, len(m.objective))
	for k, v := range m.objective {
		out[k] = v
	}
	return out, m.direction
}

// MetaboliteReactions returns the reactions in which the metabolite takes part,
// in model order.
func (m *Model) MetaboliteReactions(metaboliteID string) []*Reaction {
	var out []*Reaction
	for _, r := range m.reactions {
		if _, ok := r.metabolites[metaboliteID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// GeneReactions returns the reactions whose rule mentions the gene.
func (m *Model) GeneReactions(geneID string) []*Reaction {
	var out []*Reaction
	for _, r := range m.reactions {
		if r.GeneReactionRule == "" {
			continue
		}
		expr, err := ParseGPR(r.GeneReactionRule)
		if err != nil {
			continue
		}
		for _, g := range expr.Genes() {
			if g == geneID {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Copy returns an independent deep copy of the model. Open scopes are not
// carried over.
func (m *Model) Copy() *Model {
	out := NewModel(m.ID)
	out.Name = m.Name
	out.Version = m.Version
	for k, v := range m.compartments {
		out.compartments[k] = v
	}
	out.metabolites = make([]*Metabolite, len(m.metabolites))
	for i, met := range m.metabolites {
		c := met.clone()
		out.metabolites[i] = c
		out.metaboliteIdx[c.ID] = c
	}
	out.reactions = make([]*Reaction, len(m.reactions))
	for i, r := range m.reactions {
		c := r.clone()
		out.reactions[i] = c
		out.reactionIdx[c.ID] = c
	}
	out.genes = make([]*Gene, len(m.genes))
	for i, g := range m.genes {
		c := g.clone()
		out.genes[i] = c
		out.geneIdx[c.ID] = c
	}
	for k, v := range m.objective {
		out.objective[k] = v
	}
	out.direction = m.direction
	return out
}

// BoundsSnapshot maps every reaction id to its current bounds.
func (m *Model) BoundsSnapshot() map[string][2]float64 {
	out := make(map[string][2]float64, len(m.reactions))
	for _, r := range m.reactions {
		out[r.ID] = [2]float64{r.lowerBound, r.upperBound}
	}
	return out
}

func (m *Model) String() string {
	return fmt.Sprintf("Model(%s: %d reactions, %d metabolites, %d genes)",
		m.ID, len(m.reactions), len(m.metabolites), len(m.genes))
}

func sortedKeys(in map[string]float64) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
