package metabolic_test

import (
	"encoding/json"
	"testing"

	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/metabolic/metabolictest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeRevertsMedium(t *testing.T) {
	m := metabolictest.Core()
	original := m.Medium()

	scope := m.Begin()
	require.NoError(t, m.SetMedium(map[string]float64{"EX_glc__D_e": 5, "EX_o2_e": 20}))
	assert.Equal(t, map[string]float64{"EX_glc__D_e": 5, "EX_o2_e": 20}, m.Medium())
	scope.Close()

	assert.Equal(t, original, m.Medium())
}

func TestScopeRevertsStructuralEdits(t *testing.T) {
	m := metabolictest.Core()
	before := m.ToDocument()

	err := m.WithScope(func() error {
		require.NoError(t, m.AddMetabolites(&metabolic.Metabolite{ID: "caro_c", Compartment: "c"}))
		require.NoError(t, m.AddReaction(metabolic.NewReaction("CARO", "", map[string]float64{"g6p_c": -1, "caro_c": 1}, 0, 1000)))
		require.NoError(t, m.RemoveReaction("PGI"))
		require.NoError(t, m.KnockOutGene("b2297"))
		require.NoError(t, m.SetObjective(map[string]float64{"CARO": 1}, metabolic.Maximize))
		_, err := m.AddBoundary("caro_c")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, before, m.ToDocument())
	gene, _ := m.Gene("b2297")
	assert.True(t, gene.Functional())
	_, ok := m.Reaction("CARO")
	assert.False(t, ok)
}

func TestNestedScopes(t *testing.T) {
	m := metabolictest.Core()
	outer := m.Begin()
	require.NoError(t, m.SetBounds("PFK", 1, 2))
	inner := m.Begin()
	require.NoError(t, m.SetBounds("PFK", 3, 4))
	inner.Close()

	r, _ := m.Reaction("PFK")
	assert.Equal(t, 1.0, r.LowerBound())

	outer.Close()
	outer.Close()
	assert.Equal(t, 0.0, r.LowerBound())
	assert.Equal(t, 1000.0, r.UpperBound())
	assert.False(t, m.InScope())
}

func TestKnockOutGeneRespectsRule(t *testing.T) {
	m := metabolictest.Core()

	require.NoError(t, m.KnockOutGene("b3916"))
	pfk, _ := m.Reaction("PFK")
	assert.Equal(t, 1000.0, pfk.UpperBound(), "isozyme b1723 still active")

	require.NoError(t, m.KnockOutGene("b1723"))
	assert.Equal(t, 0.0, pfk.UpperBound())

	require.NoError(t, m.KnockOutGene("b0114"))
	pdh, _ := m.Reaction("PDH")
	assert.Equal(t, 0.0, pdh.UpperBound(), "complex needs both subunits")
}

func TestCopyIsIndependent(t *testing.T) {
	m := metabolictest.Core()
	c := m.Copy()
	require.NoError(t, c.SetBounds("PFK", 2, 2))
	require.NoError(t, c.RemoveReaction("CS"))

	pfk, _ := m.Reaction("PFK")
	assert.Equal(t, 0.0, pfk.LowerBound())
	_, ok := m.Reaction("CS")
	assert.True(t, ok)
}

func TestExchangesAndExternalCompartment(t *testing.T) {
	m := metabolictest.Core()
	external, err := m.ExternalCompartment()
	require.NoError(t, err)
	assert.Equal(t, "e", external)

	var ids []string
	for _, r := range m.Exchanges() {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"EX_glc__D_e", "EX_ac_e", "EX_co2_e", "EX_o2_e", "EX_nh4_e"}, ids)
	assert.Equal(t, map[string]float64{"EX_glc__D_e": 10, "EX_co2_e": 1000, "EX_o2_e": 1000, "EX_nh4_e": 1000}, m.Medium())
}

func TestExchangesFollowStructuralEdits(t *testing.T) {
	m := metabolictest.Core()
	require.True(t, m.IsExchange("EX_ac_e"))
	assert.False(t, m.IsExchange("PFK"))
	assert.Len(t, m.Exchanges(), 5)

	scope := m.Begin()
	require.NoError(t, m.AddMetabolites(&metabolic.Metabolite{ID: "caro_e", Compartment: "e"}))
	_, err := m.AddBoundary("caro_e")
	require.NoError(t, err)
	require.NoError(t, m.RemoveReaction("EX_ac_e"))
	assert.True(t, m.IsExchange("EX_caro_e"))
	assert.False(t, m.IsExchange("EX_ac_e"))
	assert.Len(t, m.Exchanges(), 5)

	scope.Close()
	assert.False(t, m.IsExchange("EX_caro_e"))
	assert.True(t, m.IsExchange("EX_ac_e"))
	assert.Len(t, m.Exchanges(), 5)

	// Edits outside a scope are not journaled but still refresh the set.
	require.NoError(t, m.RemoveReaction("EX_nh4_e"))
	assert.False(t, m.IsExchange("EX_nh4_e"))
	assert.Len(t, m.Exchanges(), 4)
}

func TestExternalCompartmentWithoutBoundaries(t *testing.T) {
	m := metabolic.NewModel("empty")
	_, err := m.ExternalCompartment()
	assert.ErrorIs(t, err, metabolic.ErrNoBoundary)
}

func TestAddReactionRequiresMetabolites(t *testing.T) {
	m := metabolictest.Core()
	err := m.AddReaction(metabolic.NewReaction("BAD", "", map[string]float64{"missing_c": -1}, 0, 1))
	assert.ErrorIs(t, err, metabolic.ErrUnknownMetabolite)
}

func TestDocumentRoundTrip(t *testing.T) {
	m := metabolictest.Core()
	data, err := json.Marshal(m)
	require.NoError(t, err)

	back, err := metabolic.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m.ToDocument(), back.ToDocument())

	objective, direction := back.Objective()
	assert.Equal(t, map[string]float64{metabolictest.BiomassID: 1}, objective)
	assert.Equal(t, metabolic.Maximize, direction)

	glc, _ := back.Metabolite("glc__D_e")
	assert.True(t, glc.Annotation.Has("CHEBI", "chebi:17634"))
	g6p, _ := back.Metabolite("g6p_c")
	assert.True(t, g6p.Annotation.Has("chebi", "CHEBI:4170"))
}
