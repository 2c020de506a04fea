// Package resolver maps external identifiers (a namespace plus an id, e.g.
// chebi:CHEBI:17234) to the metabolites and reactions of a model.
package resolver

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"metabolic-model-be/pkg/logging"
	"metabolic-model-be/pkg/metabolic"
)

// Mapper translates identifiers between databases.
type Mapper interface {
	Map(ctx context.Context, ids []string, from, to, kind string) (map[string][]string, error)
}

var metaboliteNamespaces = map[string]string{
	"bigg": "bigg.metabolite",
	"mnx":  "metanetx.chemical",
}

var reactionNamespaces = map[string]string{
	"bigg": "bigg.reaction",
	"mnx":  "metanetx.reaction",
}

// chebiAliases maps retired or duplicate ChEBI entries to the one models use.
var chebiAliases = map[string]string{
	"CHEBI:42758": "CHEBI:12965",
}

var chebiDigits = regexp.MustCompile(`^[0-9]+$`)

type Resolver struct {
	mapper       Mapper
	mapperTarget string
	logger       logging.Logger
}

type Option func(*Resolver)

// WithMapper enables the remote fallback: identifiers that match nothing are
// translated into the target database (e.g. "bigg") and looked up again.
func WithMapper(m Mapper, target string) Option {
	return func(r *Resolver) {
		r.mapper = m
		if target != "" {
			r.mapperTarget = target
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = logging.OrNop(l) }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{mapperTarget: "bigg", logger: logging.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindMetabolite returns the single metabolite in the compartment annotated
// with id under namespace. When nothing is annotated, the raw id is tried,
// then the identifier mapper if one is configured.
func (r *Resolver) FindMetabolite(ctx context.Context, m *metabolic.Model, id, namespace, compartment string) (*metabolic.Metabolite, error) {
	met, err := findMetabolite(m, id, namespace, compartment)
	var notFound *NotFoundError
	if err == nil || !errors.As(err, &notFound) || r.mapper == nil {
		return met, err
	}

	mapped := r.mapped(ctx, id, namespace, "Metabolite")
	ns := normalizeNamespace(r.mapperTarget, metaboliteNamespaces)
	for _, candidate := range mapped {
		met, mappedErr := findMetabolite(m, candidate, ns, compartment)
		if mappedErr == nil {
			return met, nil
		}
		if !errors.As(mappedErr, &notFound) {
			return nil, mappedErr
		}
		if met, ok := m.Metabolite(candidate + "_" + compartment); ok {
			return met, nil
		}
	}
	return nil, err
}

// FindReaction returns the single reaction annotated with id under namespace,
// falling back to the raw reaction id.
func (r *Resolver) FindReaction(ctx context.Context, m *metabolic.Model, id, namespace string) (*metabolic.Reaction, error) {
	namespace = normalizeNamespace(namespace, reactionNamespaces)
	var matches []*metabolic.Reaction
	for _, rxn := range m.Reactions() {
		if annotated(rxn.Annotation, namespace, id) {
			matches = append(matches, rxn)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if rxn, ok := m.Reaction(id); ok {
			return rxn, nil
		}
		return nil, &NotFoundError{Kind: "reaction", ID: id, Namespace: namespace}
	default:
		ids := make([]string, len(matches))
		for i, rxn := range matches {
			ids[i] = rxn.ID
		}
		return nil, &AmbiguousError{Kind: "reaction", ID: id, Namespace: namespace, Candidates: ids}
	}
}

// FindExchange resolves the metabolite in the external compartment and
// returns its only exchange reaction.
func (r *Resolver) FindExchange(ctx context.Context, m *metabolic.Model, id, namespace string) (*metabolic.Reaction, error) {
	external, err := m.ExternalCompartment()
	if err != nil {
		return nil, err
	}
	met, err := r.FindMetabolite(ctx, m, id, namespace, external)
	if err != nil {
		return nil, err
	}
	exchanges := Exchanges(m, met)
	switch len(exchanges) {
	case 1:
		return exchanges[0], nil
	case 0:
		return nil, &NotFoundError{Kind: "exchange reaction", ID: met.ID, Namespace: "model"}
	default:
		ids := make([]string, len(exchanges))
		for i, rxn := range exchanges {
			ids[i] = rxn.ID
		}
		return nil, &AmbiguousError{Kind: "exchange reaction", ID: met.ID, Namespace: "model", Candidates: ids}
	}
}

// Exchanges returns the exchange reactions the metabolite takes part in.
func Exchanges(m *metabolic.Model, met *metabolic.Metabolite) []*metabolic.Reaction {
	var out []*metabolic.Reaction
	for _, rxn := range m.MetaboliteReactions(met.ID) {
		if m.IsExchange(rxn.ID) {
			out = append(out, rxn)
		}
	}
	return out
}

func (r *Resolver) mapped(ctx context.Context, id, namespace, kind string) []string {
	result, err := r.mapper.Map(ctx, []string{id}, namespace, r.mapperTarget, kind)
	if err != nil {
		r.logger.Warn("RESOLVER", "Identifier mapping failed", map[string]interface{}{
			"id":        id,
			"namespace": namespace,
			"error":     err.Error(),
		})
		return nil
	}
	out := append([]string(nil), result[id]...)
	sort.Strings(out)
	return out
}

func findMetabolite(m *metabolic.Model, id, namespace, compartment string) (*metabolic.Metabolite, error) {
	namespace = normalizeNamespace(namespace, metaboliteNamespaces)
	var matches []*metabolic.Metabolite
	for _, met := range m.Metabolites() {
		if met.Compartment == compartment && annotated(met.Annotation, namespace, id) {
			matches = append(matches, met)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if met, ok := m.Metabolite(id); ok && met.Compartment == compartment {
			return met, nil
		}
		return nil, &NotFoundError{Kind: "metabolite", ID: id, Namespace: namespace, Compartment: compartment}
	default:
		ids := make([]string, len(matches))
		for i, met := range matches {
			ids[i] = met.ID
		}
		return nil, &AmbiguousError{Kind: "metabolite", ID: id, Namespace: namespace, Candidates: ids}
	}
}

func normalizeNamespace(namespace string, aliases map[string]string) string {
	if alias, ok := aliases[strings.ToLower(namespace)]; ok {
		return alias
	}
	return namespace
}

// annotated matches case-insensitively. ChEBI identifiers match with or
// without their "CHEBI:" prefix.
func annotated(a metabolic.Annotation, namespace, id string) bool {
	if !strings.EqualFold(namespace, "chebi") {
		return a.Has(namespace, id)
	}
	canonical := CanonicalChEBI(id)
	for key, values := range a {
		if !strings.EqualFold(key, namespace) {
			continue
		}
		for _, v := range values {
			if CanonicalChEBI(v) == canonical {
				return true
			}
		}
	}
	return false
}

// CanonicalChEBI returns id as "CHEBI:<number>", applying known aliases.
func CanonicalChEBI(id string) string {
	id = strings.TrimSpace(id)
	if chebiDigits.MatchString(id) {
		id = "CHEBI:" + id
	} else if len(id) > 6 && strings.EqualFold(id[:6], "chebi:") {
		id = "CHEBI:" + id[6:]
	}
	if alias, ok := chebiAliases[id]; ok {
		return alias
	}
	return id
}
