package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"metabolic-model-be/pkg/adapter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("PRELOAD_MODELS", "iJO1366, e_coli_core,,")
	t.Setenv("HTTP_TIMEOUT", "12")
	t.Setenv("DELTA_STORE", "badger")
	t.Setenv("SIMULATION_CONCURRENCY", "nope")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, []string{"iJO1366", "e_coli_core"}, cfg.Warehouse.Preload)
	assert.Equal(t, 12*time.Second, cfg.Services.HTTPTimeout)
	assert.Equal(t, "badger", cfg.Deltas.Store)
	assert.Equal(t, 4, cfg.Simulation.Concurrency)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"1m30s", 90 * time.Second},
		{"5", 5 * time.Second},
		{"", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("TEST_TIMEOUT", time.Minute))
		})
	}
}

func TestLoadCalibration(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		c, err := LoadCalibration("")
		require.NoError(t, err)
		assert.Equal(t, adapter.DefaultCalibration(), c.Adapter())
		assert.Equal(t, 20, c.PhasePlanePoints)
	})

	t.Run("partial override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "calibration.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
carbon_uptake_cap: 12.5
phase_plane_points: 5
trace_metals:
  - id: "CHEBI:28984"
    namespace: chebi
    name: aluminium
`), 0o644))
		c, err := LoadCalibration(path)
		require.NoError(t, err)
		assert.Equal(t, 12.5, c.CarbonUptakeCap)
		assert.Equal(t, 1000.0, c.DefaultUptakeCap)
		assert.Equal(t, 5, c.PhasePlanePoints)
		assert.Equal(t, []adapter.Compound{{ID: "CHEBI:28984", Namespace: "chebi", Name: "aluminium"}}, c.Adapter().TraceMetals)
	})

	t.Run("rejects unknown fields and bad values", func(t *testing.T) {
		dir := t.TempDir()
		for name, body := range map[string]string{
			"unknown.yaml": "carbon_cap: 3\n",
			"bigm.yaml":    "big_m: -1\n",
			"points.yaml":  "phase_plane_points: 1\n",
		} {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadCalibration(path)
			assert.Error(t, err, name)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCalibration(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
