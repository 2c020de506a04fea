// Package genotype parses strain genotype notation into the features a
// strain lost and gained.
//
// Changes are separated by whitespace or commas:
//
//	-aceA                      deletion
//	+promoter.J23100:crtE      insertion of a fusion (every part is a feature)
//	pta>pta(mut)               replacement
//	site::kanMX                insertion at a site
//	(pMB1 crtE crtI)           plasmid carrying features
//
// Features may carry a type ("promoter.X"), an organism ("Sc/X"), an
// accession marker ("#X") and a variant ("X(mut)"); only the name is kept.
// Several definitions chain: adding a feature that an earlier change removed
// cancels the removal, and the other way around.
package genotype

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSyntax = errors.New("invalid genotype notation")

type Genotype struct {
	removed []string
	added   []string
}

// Parse chains the definitions in order.
func Parse(definitions ...string) (*Genotype, error) {
	g := &Genotype{}
	for _, def := range definitions {
		changes, err := split(def)
		if err != nil {
			return nil, err
		}
		for _, change := range changes {
			if err := g.apply(change); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Removed returns removed feature names in order of appearance.
func (g *Genotype) Removed() []string { return append([]string(nil), g.removed...) }

// Added returns added feature names, plasmid-borne ones included, in order
// of appearance.
func (g *Genotype) Added() []string { return append([]string(nil), g.added...) }

func (g *Genotype) Empty() bool { return len(g.removed) == 0 && len(g.added) == 0 }

func (g *Genotype) apply(change string) error {
	switch {
	case strings.HasPrefix(change, "+(") || strings.HasPrefix(change, "("):
		return g.plasmid(strings.TrimPrefix(change, "+"))
	case strings.Contains(change, "::"):
		site, insert, _ := strings.Cut(change, "::")
		if strings.HasPrefix(site, "-") {
			if err := g.features(site[1:], g.remove); err != nil {
				return err
			}
		}
		insert = strings.TrimRight(strings.TrimPrefix(insert, "+"), "+-")
		return g.features(insert, g.add)
	case strings.Contains(change, ">"):
		before, after, _ := strings.Cut(change, ">")
		if err := g.features(before, g.remove); err != nil {
			return err
		}
		return g.features(after, g.add)
	case strings.HasPrefix(change, "+"):
		return g.features(change[1:], g.add)
	case strings.HasPrefix(change, "-"):
		return g.features(change[1:], g.remove)
	case strings.HasSuffix(change, "+") || strings.HasSuffix(change, "-"):
		// phenotype, not a feature change
		return nil
	default:
		return fmt.Errorf("%w: %q is not a change", ErrSyntax, change)
	}
}

func (g *Genotype) plasmid(body string) error {
	if !strings.HasPrefix(body, "(") || !strings.HasSuffix(body, ")") {
		return fmt.Errorf("%w: malformed plasmid %q", ErrSyntax, body)
	}
	fields := strings.Fields(body[1 : len(body)-1])
	if len(fields) < 2 {
		return fmt.Errorf("%w: plasmid %q carries no features", ErrSyntax, body)
	}
	for _, f := range fields[1:] {
		if err := g.features(f, g.add); err != nil {
			return err
		}
	}
	return nil
}

// features applies fn to every part of a fusion.
func (g *Genotype) features(fusion string, fn func(string)) error {
	if fusion == "" {
		return fmt.Errorf("%w: empty feature", ErrSyntax)
	}
	for _, part := range strings.Split(fusion, ":") {
		name, err := featureName(part)
		if err != nil {
			return err
		}
		fn(name)
	}
	return nil
}

func (g *Genotype) add(name string) {
	if i := indexOf(g.removed, name); i >= 0 {
		g.removed = append(g.removed[:i], g.removed[i+1:]...)
		return
	}
	if indexOf(g.added, name) < 0 {
		g.added = append(g.added, name)
	}
}

func (g *Genotype) remove(name string) {
	if i := indexOf(g.added, name); i >= 0 {
		g.added = append(g.added[:i], g.added[i+1:]...)
		return
	}
	if indexOf(g.removed, name) < 0 {
		g.removed = append(g.removed, name)
	}
}

func featureName(part string) (string, error) {
	name := part
	if i := strings.IndexByte(name, '('); i >= 0 {
		if !strings.HasSuffix(name, ")") {
			return "", fmt.Errorf("%w: unbalanced variant in %q", ErrSyntax, part)
		}
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimPrefix(name, "#")
	if name == "" {
		return "", fmt.Errorf("%w: feature %q has no name", ErrSyntax, part)
	}
	return name, nil
}

// split breaks a definition into changes at whitespace and commas outside
// parentheses.
func split(def string) ([]string, error) {
	var (
		out   []string
		b     strings.Builder
		depth int
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range def {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced parenthesis in %q", ErrSyntax, def)
			}
		case depth == 0 && (r == ',' || r == ' ' || r == '\t' || r == '\n'):
			flush()
			continue
		}
		b.WriteRune(r)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced parenthesis in %q", ErrSyntax, def)
	}
	flush()
	return out, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
