package metabolic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reversibleArrow = regexp.MustCompile(`<(-+|=+)>`)
	forwardArrow    = regexp.MustCompile(`(-+|=+)>`)
	reverseArrow    = regexp.MustCompile(`<(-+|=+)`)
	plusSeparator   = regexp.MustCompile(`\s+\+\s+`)
	termPattern     = regexp.MustCompile(`^(\d*\.?\d+(?:[eE][-+]?\d+)?)\s+(\S+)$`)
	bigGCompartment = regexp.MustCompile(`^(.+)_([a-z][a-z0-9]*)$`)
)

// Equation is the parsed form of a reaction string like "2 atp_c + h2o_c --> adp_c".
type Equation struct {
	Metabolites map[string]float64
	Lower       float64
	Upper       float64
}

func ParseEquation(equation string) (*Equation, error) {
	eq := strings.TrimSpace(equation)
	var left, right string
	var lower, upper float64
	if loc := reversibleArrow.FindStringIndex(eq); loc != nil {
		left, right = eq[:loc[0]], eq[loc[1]:]
		lower, upper = DefaultLowerBound, DefaultUpperBound
	} else if loc := forwardArrow.FindStringIndex(eq); loc != nil {
		left, right = eq[:loc[0]], eq[loc[1]:]
		lower, upper = 0, DefaultUpperBound
	} else if loc := reverseArrow.FindStringIndex(eq); loc != nil {
		left, right = eq[:loc[0]], eq[loc[1]:]
		lower, upper = DefaultLowerBound, 0
	} else {
		return nil, fmt.Errorf("equation %q: no reaction arrow found", equation)
	}
	out := &Equation{Metabolites: map[string]float64{}, Lower: lower, Upper: upper}
	if err := parseSide(left, -1, out.Metabolites); err != nil {
		return nil, fmt.Errorf("equation %q: %w", equation, err)
	}
	if err := parseSide(right, 1, out.Metabolites); err != nil {
		return nil, fmt.Errorf("equation %q: %w", equation, err)
	}
	if len(out.Metabolites) == 0 {
		return nil, fmt.Errorf("equation %q: no metabolites", equation)
	}
	return out, nil
}

func parseSide(side string, sign float64, into map[string]float64) error {
	side = strings.TrimSpace(side)
	if side == "" {
		return nil
	}
	for _, term := range plusSeparator.Split(side, -1) {
		term = strings.TrimSpace(term)
		if term == "" {
			return fmt.Errorf("empty term")
		}
		coefficient := 1.0
		id := term
		if m := termPattern.FindStringSubmatch(term); m != nil {
			value, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return err
			}
			coefficient, id = value, m[2]
		}
		if strings.ContainsAny(id, " \t") {
			return fmt.Errorf("invalid term %q", term)
		}
		into[id] += sign * coefficient
	}
	return nil
}

// BuildEquation renders stoichiometry as a reversible equation string with
// substrates and products in sorted order.
func BuildEquation(metabolites map[string]float64) string {
	var left, right []string
	for _, id := range sortedKeys(metabolites) {
		coefficient := metabolites[id]
		term := id
		if abs := absFloat(coefficient); abs != 1 {
			term = strconv.FormatFloat(abs, 'g', -1, 64) + " " + id
		}
		if coefficient < 0 {
			left = append(left, term)
		} else if coefficient > 0 {
			right = append(right, term)
		}
	}
	return strings.TrimSpace(strings.Join(left, " + ") + " <=> " + strings.Join(right, " + "))
}

// ParseCompartment splits a BiGG style id ("glc__D_e") into the base id and
// the compartment suffix.
func ParseCompartment(metaboliteID string) (base, compartment string, ok bool) {
	m := bigGCompartment.FindStringSubmatch(metaboliteID)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
