// Package adapter turns experimental conditions (medium, genotype and
// measurements) into model edits. Every edit is applied to the model it is
// given and recorded as an operation so it can be replayed later.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"metabolic-model-be/pkg/logging"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/reconcile"
	"metabolic-model-be/pkg/solver"
)

var ErrUnsupportedMeasurement = errors.New("unsupported measurement")

// PartLookup returns the reactions a genetic part catalyses, keyed by
// reaction id.
type PartLookup interface {
	ReactionEquations(ctx context.Context, partID string) (map[string]string, error)
}

// Resolver finds model entities by external identifier.
type Resolver interface {
	FindMetabolite(ctx context.Context, m *metabolic.Model, id, namespace, compartment string) (*metabolic.Metabolite, error)
	FindReaction(ctx context.Context, m *metabolic.Model, id, namespace string) (*metabolic.Reaction, error)
}

// Compound is a medium component.
type Compound struct {
	ID        string `json:"id" yaml:"id"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Calibration holds the domain constants of the appliers.
type Calibration struct {
	TraceMetals       []Compound
	CarbonUptakeCap   float64
	DefaultUptakeCap  float64
	BigM              float64
	Quadratic         bool
	LookupConcurrency int
}

func DefaultCalibration() Calibration {
	return Calibration{
		TraceMetals: []Compound{
			{ID: "CHEBI:25517", Namespace: "chebi", Name: "nickel"},
			{ID: "CHEBI:25368", Namespace: "chebi", Name: "molybdate"},
		},
		CarbonUptakeCap:   10,
		DefaultUptakeCap:  1000,
		BigM:              reconcile.DefaultBigM,
		LookupConcurrency: 4,
	}
}

// Result of one applier. A non-empty Errors means the perturbation could not
// be applied and Operations must be discarded.
type Result struct {
	Operations      []operations.Operation `json:"operations"`
	Warnings        []string               `json:"warnings"`
	Errors          []string               `json:"errors"`
	Measured        []string               `json:"measured_reactions,omitempty"`
	MissingMeasured []string               `json:"missing_measured_reactions,omitempty"`
}

// Failed reports whether the perturbation must be discarded.
func (r *Result) Failed() bool { return len(r.Errors) > 0 }

// Merge appends other to r.
func (r *Result) Merge(other Result) {
	r.Operations = append(r.Operations, other.Operations...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Measured = append(r.Measured, other.Measured...)
	r.MissingMeasured = append(r.MissingMeasured, other.MissingMeasured...)
}

func (r *Result) warn(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	return msg
}

func (r *Result) fail(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	r.Errors = append(r.Errors, msg)
	return msg
}

type Adapter struct {
	parts       PartLookup
	resolver    Resolver
	solver      solver.Solver
	salts       Salts
	calibration Calibration
	logger      logging.Logger
}

type Option func(*Adapter)

func WithPartLookup(p PartLookup) Option {
	return func(a *Adapter) { a.parts = p }
}

func WithSalts(s Salts) Option {
	return func(a *Adapter) { a.salts = s }
}

func WithCalibration(c Calibration) Option {
	return func(a *Adapter) { a.calibration = c }
}

func WithLogger(l logging.Logger) Option {
	return func(a *Adapter) { a.logger = logging.OrNop(l) }
}

func New(r Resolver, s solver.Solver, opts ...Option) *Adapter {
	a := &Adapter{
		resolver:    r,
		solver:      s,
		salts:       DefaultSalts(),
		calibration: DefaultCalibration(),
		logger:      logging.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.calibration.LookupConcurrency <= 0 {
		a.calibration.LookupConcurrency = 1
	}
	return a
}

func (a *Adapter) Calibration() Calibration { return a.calibration }
