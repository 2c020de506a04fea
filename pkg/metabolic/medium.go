package metabolic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoBoundary          = errors.New("model has no boundary reactions")
	ErrExternalCompartment = errors.New("cannot determine the external compartment")
)

// Boundaries returns every reaction with exactly one metabolite.
func (m *Model) Boundaries() []*Reaction {
	var out []*Reaction
	for _, r := range m.reactions {
		if r.Boundary() {
			out = append(out, r)
		}
	}
	return out
}

// exchangeSet caches the external compartment and its boundary reactions.
type exchangeSet struct {
	external  string
	err       error
	reactions []*Reaction
	ids       map[string]bool
}

func (m *Model) exchangeCache() *exchangeSet {
	if set := m.exchanges.Load(); set != nil {
		return set
	}
	set := &exchangeSet{ids: map[string]bool{}}
	set.external, set.err = m.guessExternal()
	if set.err == nil {
		for _, r := range m.Boundaries() {
			for id := range r.metabolites {
				if met, ok := m.metaboliteIdx[id]; ok && met.Compartment == set.external {
					set.reactions = append(set.reactions, r)
					set.ids[r.ID] = true
				}
			}
		}
	}
	m.exchanges.Store(set)
	return set
}

// ExternalCompartment guesses the extracellular compartment from the
// compartments of boundary metabolites.
func (m *Model) ExternalCompartment() (string, error) {
	set := m.exchangeCache()
	return set.external, set.err
}

func (m *Model) guessExternal() (string, error) {
	boundaries := m.Boundaries()
	if len(boundaries) == 0 {
		return "", ErrNoBoundary
	}
	counts := map[string]int{}
	for _, r := range boundaries {
		for id := range r.metabolites {
			if met, ok := m.metaboliteIdx[id]; ok && met.Compartment != "" {
				counts[met.Compartment]++
			}
		}
	}
	if len(counts) == 0 {
		return "", ErrExternalCompartment
	}
	if len(counts) == 1 {
		for c := range counts {
			return c, nil
		}
	}
	if _, ok := counts["e"]; ok {
		return "e", nil
	}
	for c := range counts {
		name := strings.ToLower(m.compartments[c])
		if name == "extracellular" || name == "extracellular space" || name == "extraorganism" {
			return c, nil
		}
	}
	candidates := make([]string, 0, len(counts))
	for c := range counts {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] > counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	if counts[candidates[0]] == counts[candidates[1]] {
		return "", fmt.Errorf("%w: candidates %v", ErrExternalCompartment, candidates)
	}
	return candidates[0], nil
}

// Exchanges returns the boundary reactions of the external compartment.
func (m *Model) Exchanges() []*Reaction {
	reactions := m.exchangeCache().reactions
	return reactions[:len(reactions):len(reactions)]
}

// IsExchange reports whether the reaction is one of Exchanges.
func (m *Model) IsExchange(id string) bool {
	return m.exchangeCache().ids[id]
}

// Medium maps exchange reaction ids to their positive uptake bound. Exchanges
// that cannot take anything up are left out.
func (m *Model) Medium() map[string]float64 {
	out := map[string]float64{}
	for _, r := range m.Exchanges() {
		if uptake := uptakeBound(r); uptake > 0 {
			out[r.ID] = uptake
		}
	}
	return out
}

// SetMedium opens uptake on the listed exchanges and closes it on every other
// exchange.
func (m *Model) SetMedium(medium map[string]float64) error {
	exchanges := m.Exchanges()
	known := make(map[string]bool, len(exchanges))
	for _, r := range exchanges {
		known[r.ID] = true
	}
	for id, value := range medium {
		if !known[id] {
			return fmt.Errorf("medium component %s is not an exchange reaction: %w", id, ErrReactionNotFound)
		}
		if value < 0 {
			return fmt.Errorf("medium component %s: uptake bound must be non-negative", id)
		}
	}
	for _, r := range exchanges {
		value := medium[r.ID]
		lower, upper := r.lowerBound, r.upperBound
		if consumesMetabolite(r) {
			lower = -value
			if upper < lower {
				upper = lower
			}
		} else {
			upper = value
			if lower > upper {
				lower = upper
			}
		}
		if err := m.SetBounds(r.ID, lower, upper); err != nil {
			return err
		}
	}
	return nil
}

// AddBoundary creates the exchange reaction "EX_<id>" for a metabolite.
func (m *Model) AddBoundary(metaboliteID string) (*Reaction, error) {
	met, ok := m.metaboliteIdx[metaboliteID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", metaboliteID, ErrMetaboliteNotFound)
	}
	name := met.Name
	if name == "" {
		name = met.ID
	}
	r := NewReaction("EX_"+met.ID, name+" exchange", map[string]float64{met.ID: -1}, DefaultLowerBound, DefaultUpperBound)
	if err := m.AddReaction(r); err != nil {
		return nil, err
	}
	return r, nil
}

// consumesMetabolite reports whether the exchange is written "met <=>", so
// that uptake is negative flux.
func consumesMetabolite(r *Reaction) bool {
	for _, c := range r.metabolites {
		return c < 0
	}
	return true
}

func uptakeBound(r *Reaction) float64 {
	if consumesMetabolite(r) {
		return -r.lowerBound
	}
	return r.upperBound
}
