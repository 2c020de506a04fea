// Package operations defines the model edits emitted by the perturbation
// appliers and replays them against a model.
package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"metabolic-model-be/pkg/metabolic"
)

var ErrUnsupportedOperation = errors.New("unsupported operation")

type Kind string

const (
	Add      Kind = "add"
	Modify   Kind = "modify"
	Remove   Kind = "remove"
	Knockout Kind = "knockout"
)

type Target string

const (
	Reaction   Target = "reaction"
	Gene       Target = "gene"
	Metabolite Target = "metabolite"
)

// ReactionData is the reaction payload of add and modify operations.
type ReactionData struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Metabolites      map[string]float64 `json:"metabolites"`
	LowerBound       float64            `json:"lower_bound"`
	UpperBound       float64            `json:"upper_bound"`
	GeneReactionRule string             `json:"gene_reaction_rule"`
}

type Operation struct {
	Kind   Kind          `json:"operation"`
	Target Target        `json:"type"`
	ID     string        `json:"id"`
	Data   *ReactionData `json:"data,omitempty"`
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s %s", o.Kind, o.Target, o.ID)
}

// UnmarshalJSON drops payloads on operations that do not take one, so that
// a decoded operation always has the fields of its variant.
func (o *Operation) UnmarshalJSON(data []byte) error {
	type raw Operation
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.Target != Reaction || (r.Kind != Add && r.Kind != Modify) {
		r.Data = nil
	}
	*o = Operation(r)
	return nil
}

func reactionData(r *metabolic.Reaction) *ReactionData {
	return &ReactionData{
		ID:               r.ID,
		Name:             r.Name,
		Metabolites:      r.Metabolites(),
		LowerBound:       r.LowerBound(),
		UpperBound:       r.UpperBound(),
		GeneReactionRule: r.GeneReactionRule,
	}
}

func AddReaction(r *metabolic.Reaction) Operation {
	return Operation{Kind: Add, Target: Reaction, ID: r.ID, Data: reactionData(r)}
}

func ModifyReaction(r *metabolic.Reaction) Operation {
	return Operation{Kind: Modify, Target: Reaction, ID: r.ID, Data: reactionData(r)}
}

func RemoveReaction(id string) Operation {
	return Operation{Kind: Remove, Target: Reaction, ID: id}
}

func KnockoutReaction(id string) Operation {
	return Operation{Kind: Knockout, Target: Reaction, ID: id}
}

func KnockoutGene(id string) Operation {
	return Operation{Kind: Knockout, Target: Gene, ID: id}
}

// IsDummy reports helper reactions (demands and adapters) that are not
// reported as added.
func IsDummy(reactionID string) bool {
	return strings.HasPrefix(reactionID, "DM") || strings.HasPrefix(reactionID, "adapter")
}

// FindGene matches a gene by exact id or by case-insensitive name.
func FindGene(m *metabolic.Model, feature string) (*metabolic.Gene, bool) {
	if g, ok := m.Gene(feature); ok {
		return g, true
	}
	for _, g := range m.Genes() {
		if g.Name != "" && strings.EqualFold(g.Name, feature) {
			return g, true
		}
	}
	return nil, false
}
