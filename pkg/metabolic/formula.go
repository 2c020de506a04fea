package metabolic

import (
	"fmt"
	"regexp"
	"strconv"
)

var formulaElement = regexp.MustCompile(`([A-Z][a-z]*)(\d*\.?\d*)`)

// atomic weights in g/mol
var elementWeights = map[string]float64{
	"H": 1.00794, "He": 4.002602, "Li": 6.941, "Be": 9.012182, "B": 10.811,
	"C": 12.0107, "N": 14.0067, "O": 15.9994, "F": 18.9984032, "Ne": 20.1797,
	"Na": 22.98977, "Mg": 24.305, "Al": 26.981538, "Si": 28.0855, "P": 30.973761,
	"S": 32.065, "Cl": 35.453, "Ar": 39.948, "K": 39.0983, "Ca": 40.078,
	"Sc": 44.95591, "Ti": 47.867, "V": 50.9415, "Cr": 51.9961, "Mn": 54.938049,
	"Fe": 55.845, "Co": 58.9332, "Ni": 58.6934, "Cu": 63.546, "Zn": 65.409,
	"Ga": 69.723, "Ge": 72.64, "As": 74.9216, "Se": 78.96, "Br": 79.904,
	"Kr": 83.798, "Rb": 85.4678, "Sr": 87.62, "Y": 88.90585, "Zr": 91.224,
	"Nb": 92.90638, "Mo": 95.94, "Ag": 107.8682, "Cd": 112.411, "Sn": 118.71,
	"Sb": 121.76, "I": 126.90447, "Ba": 137.327, "W": 183.84, "Pt": 195.078,
	"Au": 196.96655, "Hg": 200.59, "Pb": 207.2,
}

// ParseFormula returns element counts. Generic residues such as "R" are kept
// as elements; they only matter for weight computation.
func ParseFormula(formula string) (map[string]float64, error) {
	out := map[string]float64{}
	consumed := 0
	for _, match := range formulaElement.FindAllStringSubmatchIndex(formula, -1) {
		if match[0] != consumed {
			return nil, fmt.Errorf("formula %q: unexpected character at %d", formula, consumed)
		}
		consumed = match[1]
		element := formula[match[2]:match[3]]
		count := 1.0
		if match[5] > match[4] {
			value, err := strconv.ParseFloat(formula[match[4]:match[5]], 64)
			if err != nil {
				return nil, fmt.Errorf("formula %q: %w", formula, err)
			}
			count = value
		}
		out[element] += count
	}
	if consumed != len(formula) {
		return nil, fmt.Errorf("formula %q: unexpected character at %d", formula, consumed)
	}
	return out, nil
}

// FormulaWeight sums atomic weights. Elements without a known weight make
// the result unknown.
func FormulaWeight(elements map[string]float64) (float64, bool) {
	total := 0.0
	for element, count := range elements {
		w, ok := elementWeights[element]
		if !ok {
			return 0, false
		}
		total += w * count
	}
	return total, true
}
