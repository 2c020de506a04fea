package metabolic

import (
	"math"
	"sort"
)

// Default flux bounds used for reversible reactions and new boundaries.
const (
	DefaultLowerBound = -1000.0
	DefaultUpperBound = 1000.0
)

type Metabolite struct {
	ID          string
	Name        string
	Formula     string
	Charge      int
	Compartment string
	Annotation  Annotation
}

// Elements returns the element counts of the metabolite formula. An empty or
// unparseable formula yields ok=false.
func (m *Metabolite) Elements() (map[string]float64, bool) {
	if m.Formula == "" {
		return nil, false
	}
	elements, err := ParseFormula(m.Formula)
	if err != nil {
		return nil, false
	}
	return elements, true
}

// FormulaWeight is the molar mass in g/mol.
func (m *Metabolite) FormulaWeight() (float64, bool) {
	elements, ok := m.Elements()
	if !ok {
		return 0, false
	}
	return FormulaWeight(elements)
}

func (m *Metabolite) clone() *Metabolite {
	out := *m
	out.Annotation = m.Annotation.clone()
	return &out
}

type Gene struct {
	ID         string
	Name       string
	Annotation Annotation
	functional bool
}

func NewGene(id, name string) *Gene {
	return &Gene{ID: id, Name: name, functional: true}
}

// Functional is false once the gene has been knocked out.
func (g *Gene) Functional() bool { return g.functional }

func (g *Gene) clone() *Gene {
	out := *g
	out.Annotation = g.Annotation.clone()
	return &out
}

// Reaction bounds and stoichiometry are only mutated through the owning
// Model so that every change is recorded by the active scopes.
type Reaction struct {
	ID               string
	Name             string
	Subsystem        string
	GeneReactionRule string
	Annotation       Annotation

	lowerBound  float64
	upperBound  float64
	metabolites map[string]float64
}

func NewReaction(id, name string, metabolites map[string]float64, lower, upper float64) *Reaction {
	stoichiometry := make(map[string]float64, len(metabolites))
	for k, v := range metabolites {
		if v != 0 {
			stoichiometry[k] = v
		}
	}
	return &Reaction{
		ID:          id,
		Name:        name,
		lowerBound:  lower,
		upperBound:  upper,
		metabolites: stoichiometry,
	}
}

func (r *Reaction) LowerBound() float64 { return r.lowerBound }
func (r *Reaction) UpperBound() float64 { return r.upperBound }

func (r *Reaction) Bounds() (float64, float64) { return r.lowerBound, r.upperBound }

// Metabolites returns a copy of the stoichiometry.
func (r *Reaction) Metabolites() map[string]float64 {
	out := make(map[string]float64, len(r.metabolites))
	for k, v := range r.metabolites {
		out[k] = v
	}
	return out
}

// MetaboliteIDs returns the participating metabolite ids, sorted.
func (r *Reaction) MetaboliteIDs() []string {
	ids := make([]string, 0, len(r.metabolites))
	for k := range r.metabolites {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

func (r *Reaction) Coefficient(metaboliteID string) float64 {
	return r.metabolites[metaboliteID]
}

// Boundary reports whether the reaction touches a single metabolite.
func (r *Reaction) Boundary() bool { return len(r.metabolites) == 1 }

// Reversible reports whether the bounds allow flux in both directions.
func (r *Reaction) Reversible() bool { return r.lowerBound < 0 && r.upperBound > 0 }

func (r *Reaction) clone() *Reaction {
	out := *r
	out.Annotation = r.Annotation.clone()
	out.metabolites = r.Metabolites()
	return &out
}

func validBounds(lower, upper float64) bool {
	return !math.IsNaN(lower) && !math.IsNaN(upper) && lower <= upper
}
