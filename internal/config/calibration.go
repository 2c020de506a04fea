package config

import (
	"bytes"
	"fmt"
	"os"

	"metabolic-model-be/pkg/adapter"
	"metabolic-model-be/pkg/flux"

	"gopkg.in/yaml.v3"
)

// Calibration holds the domain constants that are tuned per deployment.
// Fields left out of the YAML file keep their built-in defaults.
type Calibration struct {
	TraceMetals       []adapter.Compound `yaml:"trace_metals"`
	CarbonUptakeCap   float64            `yaml:"carbon_uptake_cap"`
	DefaultUptakeCap  float64            `yaml:"default_uptake_cap"`
	BigM              float64            `yaml:"big_m"`
	Quadratic         bool               `yaml:"quadratic"`
	LookupConcurrency int                `yaml:"lookup_concurrency"`
	PhasePlanePoints  int                `yaml:"phase_plane_points"`
	PFBAFactor        float64            `yaml:"pfba_factor"`
}

func DefaultCalibration() Calibration {
	a := adapter.DefaultCalibration()
	return Calibration{
		TraceMetals:       a.TraceMetals,
		CarbonUptakeCap:   a.CarbonUptakeCap,
		DefaultUptakeCap:  a.DefaultUptakeCap,
		BigM:              a.BigM,
		Quadratic:         a.Quadratic,
		LookupConcurrency: a.LookupConcurrency,
		PhasePlanePoints:  flux.DefaultPhasePlanePoints,
		PFBAFactor:        flux.DefaultPFBAFactor,
	}
}

// LoadCalibration decodes the YAML file at path over the defaults. An empty
// path returns the defaults.
func LoadCalibration(path string) (Calibration, error) {
	c := DefaultCalibration()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read calibration: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("decode calibration %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return c, fmt.Errorf("calibration %s: %w", path, err)
	}
	return c, nil
}

func (c Calibration) validate() error {
	switch {
	case c.CarbonUptakeCap <= 0 || c.DefaultUptakeCap <= 0:
		return fmt.Errorf("uptake caps must be positive")
	case c.BigM <= 0:
		return fmt.Errorf("big_m must be positive")
	case c.PhasePlanePoints < 2:
		return fmt.Errorf("phase_plane_points must be at least 2")
	case c.PFBAFactor < 1:
		return fmt.Errorf("pfba_factor must be at least 1")
	}
	return nil
}

// Adapter returns the applier part of the calibration.
func (c Calibration) Adapter() adapter.Calibration {
	return adapter.Calibration{
		TraceMetals:       c.TraceMetals,
		CarbonUptakeCap:   c.CarbonUptakeCap,
		DefaultUptakeCap:  c.DefaultUptakeCap,
		BigM:              c.BigM,
		Quadratic:         c.Quadratic,
		LookupConcurrency: c.LookupConcurrency,
	}
}
