package metabolic

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the cobrapy JSON layout of a model.
type Document struct {
	ID           string               `json:"id"`
	Name         string               `json:"name,omitempty"`
	Compartments map[string]string    `json:"compartments"`
	Metabolites  []MetaboliteDocument `json:"metabolites"`
	Reactions    []ReactionDocument   `json:"reactions"`
	Genes        []GeneDocument       `json:"genes"`
	Version      string               `json:"version,omitempty"`
}

type MetaboliteDocument struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Compartment string     `json:"compartment,omitempty"`
	Charge      int        `json:"charge,omitempty"`
	Formula     string     `json:"formula,omitempty"`
	Annotation  Annotation `json:"annotation,omitempty"`
}

type ReactionDocument struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	Metabolites          map[string]float64 `json:"metabolites"`
	LowerBound           float64            `json:"lower_bound"`
	UpperBound           float64            `json:"upper_bound"`
	GeneReactionRule     string             `json:"gene_reaction_rule"`
	ObjectiveCoefficient float64            `json:"objective_coefficient,omitempty"`
	Subsystem            string             `json:"subsystem,omitempty"`
	Annotation           Annotation         `json:"annotation,omitempty"`
}

type GeneDocument struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Annotation Annotation `json:"annotation,omitempty"`
}

// ToDocument serializes the current state of the model, including bounds
// changed inside open scopes.
func (m *Model) ToDocument() *Document {
	doc := &Document{
		ID:           m.ID,
		Name:         m.Name,
		Compartments: m.Compartments(),
		Metabolites:  make([]MetaboliteDocument, 0, len(m.metabolites)),
		Reactions:    make([]ReactionDocument, 0, len(m.reactions)),
		Genes:        make([]GeneDocument, 0, len(m.genes)),
		Version:      m.Version,
	}
	for _, met := range m.metabolites {
		doc.Metabolites = append(doc.Metabolites, MetaboliteDocument{
			ID:          met.ID,
			Name:        met.Name,
			Compartment: met.Compartment,
			Charge:      met.Charge,
			Formula:     met.Formula,
			Annotation:  met.Annotation,
		})
	}
	for _, r := range m.reactions {
		doc.Reactions = append(doc.Reactions, ReactionToDocument(r, m.objective[r.ID]))
	}
	for _, g := range m.genes {
		doc.Genes = append(doc.Genes, GeneDocument{ID: g.ID, Name: g.Name, Annotation: g.Annotation})
	}
	return doc
}

func ReactionToDocument(r *Reaction, objective float64) ReactionDocument {
	return ReactionDocument{
		ID:                   r.ID,
		Name:                 r.Name,
		Metabolites:          r.Metabolites(),
		LowerBound:           r.lowerBound,
		UpperBound:           r.upperBound,
		GeneReactionRule:     r.GeneReactionRule,
		ObjectiveCoefficient: objective,
		Subsystem:            r.Subsystem,
		Annotation:           r.Annotation,
	}
}

// FromDocument builds a model. Reactions must only reference listed metabolites.
func FromDocument(doc *Document) (*Model, error) {
	m := NewModel(doc.ID)
	m.Name = doc.Name
	m.Version = doc.Version
	for id, name := range doc.Compartments {
		m.compartments[id] = name
	}
	for _, md := range doc.Metabolites {
		met := &Metabolite{
			ID:          md.ID,
			Name:        md.Name,
			Formula:     md.Formula,
			Charge:      md.Charge,
			Compartment: md.Compartment,
			Annotation:  md.Annotation,
		}
		if err := m.AddMetabolites(met); err != nil {
			return nil, err
		}
	}
	for _, gd := range doc.Genes {
		g := NewGene(gd.ID, gd.Name)
		g.Annotation = gd.Annotation
		if err := m.AddGene(g); err != nil {
			return nil, err
		}
	}
	objective := map[string]float64{}
	for _, rd := range doc.Reactions {
		r := NewReaction(rd.ID, rd.Name, rd.Metabolites, rd.LowerBound, rd.UpperBound)
		r.GeneReactionRule = rd.GeneReactionRule
		r.Subsystem = rd.Subsystem
		r.Annotation = rd.Annotation
		if err := m.AddReaction(r); err != nil {
			return nil, err
		}
		if rd.ObjectiveCoefficient != 0 {
			objective[rd.ID] = rd.ObjectiveCoefficient
		}
	}
	if err := m.SetObjective(objective, Maximize); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToDocument())
}

// Decode reads a cobrapy JSON model.
func Decode(r io.Reader) (*Model, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return FromDocument(&doc)
}

// Unmarshal parses a cobrapy JSON model from bytes.
func Unmarshal(data []byte) (*Model, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return FromDocument(&doc)
}

func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
