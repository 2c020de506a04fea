package metabolic

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// GPR is a parsed gene-reaction rule such as "(b0001 and b0002) or b0003".
type GPR struct {
	op       string // "gene", "and", "or"
	gene     string
	children []*GPR
}

// Eval evaluates the rule. An empty rule is always true.
func (g *GPR) Eval(functional func(gene string) bool) bool {
	if g == nil {
		return true
	}
	switch g.op {
	case "gene":
		return functional(g.gene)
	case "and":
		for _, c := range g.children {
			if !c.Eval(functional) {
				return false
			}
		}
		return true
	default:
		for _, c := range g.children {
			if c.Eval(functional) {
				return true
			}
		}
		return false
	}
}

// Genes returns the distinct gene ids in the rule, sorted.
func (g *GPR) Genes() []string {
	set := map[string]struct{}{}
	var walk func(*GPR)
	walk = func(n *GPR) {
		if n == nil {
			return
		}
		if n.op == "gene" {
			set[n.gene] = struct{}{}
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(g)
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseGPR parses a rule. "and"/"or" are case-insensitive and "&"/"|" are
// accepted as aliases.
func ParseGPR(rule string) (*GPR, error) {
	tokens := tokenizeGPR(rule)
	if len(tokens) == 0 {
		return nil, nil
	}
	p := &gprParser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("gene reaction rule %q: %w", rule, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("gene reaction rule %q: unexpected token %q", rule, p.tokens[p.pos])
	}
	return expr, nil
}

func tokenizeGPR(rule string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range rule {
		switch {
		case r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		case r == '&':
			flush()
			tokens = append(tokens, "and")
		case r == '|':
			flush()
			tokens = append(tokens, "or")
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	for i, t := range tokens {
		if strings.EqualFold(t, "and") || strings.EqualFold(t, "or") {
			tokens[i] = strings.ToLower(t)
		}
	}
	return tokens
}

type gprParser struct {
	tokens []string
	pos    int
}

func (p *gprParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *gprParser) parseOr() (*GPR, error) {
	return p.parseBinary("or", p.parseAnd)
}

func (p *gprParser) parseAnd() (*GPR, error) {
	return p.parseBinary("and", p.parseTerm)
}

func (p *gprParser) parseBinary(op string, next func() (*GPR, error)) (*GPR, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	children := []*GPR{first}
	for p.peek() == op {
		p.pos++
		child, err := next()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &GPR{op: op, children: children}, nil
}

func (p *gprParser) parseTerm() (*GPR, error) {
	tok := p.peek()
	switch tok {
	case "":
		return nil, fmt.Errorf("unexpected end of rule")
	case "(":
		p.pos++
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return expr, nil
	case ")", "and", "or":
		return nil, fmt.Errorf("unexpected token %q", tok)
	}
	p.pos++
	return &GPR{op: "gene", gene: tok}, nil
}
