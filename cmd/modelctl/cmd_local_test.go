package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"metabolic-model-be/pkg/deltas"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/metabolic/metabolictest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLargest(t *testing.T) {
	fluxes := map[string]float64{"A": 1, "B": -5, "C": 3, "D": 3}
	assert.Equal(t, []string{"B", "C", "D"}, largest(fluxes, 3))
	assert.Len(t, largest(fluxes, 10), 4)
	assert.Empty(t, largest(fluxes, 0))
}

func TestDeltaKey(t *testing.T) {
	path := writeFile(t, "request.json", `{"genotype":["-pta"],"medium":[]}`)
	got, err := deltaKey(metabolictest.ModelID, path)
	require.NoError(t, err)

	want, err := deltas.Key(metabolictest.ModelID, map[string]interface{}{"genotype": []string{"-pta"}})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = deltaKey(metabolictest.ModelID, writeFile(t, "bad.json", `{`))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	modelPath := writeFile(t, "model.json", string(metabolictest.CoreJSON()))
	opsPath := writeFile(t, "ops.json", `[{"operation":"knockout","type":"reaction","id":"PTAr"}]`)
	out := filepath.Join(t.TempDir(), "out.json")

	cmd := newReplayCmd()
	cmd.SetArgs([]string{modelPath, opsPath, "--out", out})
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	m, err := metabolic.LoadFile(out)
	require.NoError(t, err)
	rxn, ok := m.Reaction("PTAr")
	require.True(t, ok)
	assert.Equal(t, 0.0, rxn.LowerBound())
	assert.Equal(t, 0.0, rxn.UpperBound())
}

func TestSimulateCommand(t *testing.T) {
	modelPath := writeFile(t, "model.json", string(metabolictest.CoreJSON()))
	var buf bytes.Buffer

	cmd := newSimulateCmd()
	cmd.SetArgs([]string{modelPath, "--biomass", metabolictest.BiomassID, "--top", "3"})
	cmd.SetOut(&buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "growth rate: 6.66667")
	assert.Contains(t, buf.String(), "method:      fba")

	cmd = newSimulateCmd()
	cmd.SetArgs([]string{modelPath, "--method", "dfba"})
	cmd.SetOut(&buf)
	assert.Error(t, cmd.Execute())
}
