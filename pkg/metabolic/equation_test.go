package metabolic_test

import (
	"testing"

	"metabolic-model-be/pkg/metabolic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEquation(t *testing.T) {
	tests := []struct {
		name     string
		equation string
		want     map[string]float64
		lower    float64
		upper    float64
	}{
		{
			name:     "reversible",
			equation: "glc__D_c <=> caro_c",
			want:     map[string]float64{"glc__D_c": -1, "caro_c": 1},
			lower:    -1000,
			upper:    1000,
		},
		{
			name:     "forward with coefficients",
			equation: "2 atp_c + h2o_c --> adp_c + 0.5 pi_c",
			want:     map[string]float64{"atp_c": -2, "h2o_c": -1, "adp_c": 1, "pi_c": 0.5},
			lower:    0,
			upper:    1000,
		},
		{
			name:     "reverse",
			equation: "a_c <-- b_c",
			want:     map[string]float64{"a_c": -1, "b_c": 1},
			lower:    -1000,
			upper:    0,
		},
		{
			name:     "boundary",
			equation: "ac_e -->",
			want:     map[string]float64{"ac_e": -1},
			lower:    0,
			upper:    1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq, err := metabolic.ParseEquation(tt.equation)
			require.NoError(t, err)
			assert.Equal(t, tt.want, eq.Metabolites)
			assert.Equal(t, tt.lower, eq.Lower)
			assert.Equal(t, tt.upper, eq.Upper)
		})
	}

	_, err := metabolic.ParseEquation("a_c + b_c")
	assert.Error(t, err)
}

func TestBuildEquation(t *testing.T) {
	assert.Equal(t, "glc__D_c <=> caro_c", metabolic.BuildEquation(map[string]float64{"glc__D_c": -1, "caro_c": 1}))
	assert.Equal(t, "2 a_c <=> b_c", metabolic.BuildEquation(map[string]float64{"a_c": -2, "b_c": 1}))
}

func TestParseCompartment(t *testing.T) {
	base, compartment, ok := metabolic.ParseCompartment("glc__D_e")
	require.True(t, ok)
	assert.Equal(t, "glc__D", base)
	assert.Equal(t, "e", compartment)

	_, _, ok = metabolic.ParseCompartment("accoa")
	assert.False(t, ok)
}

func TestGPR(t *testing.T) {
	expr, err := metabolic.ParseGPR("(b0001 and b0002) or B0003")
	require.NoError(t, err)
	assert.Equal(t, []string{"B0003", "b0001", "b0002"}, expr.Genes())

	down := map[string]bool{"b0001": true}
	assert.True(t, expr.Eval(func(g string) bool { return !down[g] }))
	down["B0003"] = true
	assert.False(t, expr.Eval(func(g string) bool { return !down[g] }))

	_, err = metabolic.ParseGPR("b0001 and (b0002")
	assert.Error(t, err)
}

func TestFormula(t *testing.T) {
	elements, err := metabolic.ParseFormula("C6H12O6")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"C": 6, "H": 12, "O": 6}, elements)

	weight, ok := metabolic.FormulaWeight(elements)
	require.True(t, ok)
	assert.InDelta(t, 180.156, weight, 0.01)

	_, err = metabolic.ParseFormula("C6 H12")
	assert.Error(t, err)

	_, ok = metabolic.FormulaWeight(map[string]float64{"R": 1})
	assert.False(t, ok)
}
