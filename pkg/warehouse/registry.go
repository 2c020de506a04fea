package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"metabolic-model-be/pkg/logging"
	"metabolic-model-be/pkg/metabolic"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Entry is a loaded wild-type model. Model must not be modified; use a Lease.
type Entry struct {
	Record *Record
	Model  *metabolic.Model

	copies sync.Pool

	refMu     sync.Mutex
	reference map[string]float64
	document  []byte
	docOnce   sync.Once
	docErr    error
}

// BiomassID is the biomass reaction recorded for the model.
func (e *Entry) BiomassID() string { return e.Record.BiomassReaction }

// Document is the serialized wild-type model.
func (e *Entry) Document() ([]byte, error) {
	e.docOnce.Do(func() {
		e.document, e.docErr = e.Model.MarshalJSON()
	})
	return e.document, e.docErr
}

// Reference returns the wild-type flux distribution, computing it on a copy
// the first time.
func (e *Entry) Reference(compute func(*metabolic.Model) (map[string]float64, error)) (map[string]float64, error) {
	e.refMu.Lock()
	defer e.refMu.Unlock()
	if e.reference != nil {
		return e.reference, nil
	}
	ref, err := compute(e.Model.Copy())
	if err != nil {
		return nil, err
	}
	e.reference = ref
	return ref, nil
}

// Lease is a private working copy of an Entry with a scope open on it.
type Lease struct {
	Entry *Entry
	Model *metabolic.Model

	scope *metabolic.Scope
	once  sync.Once
}

// Release reverts every change made through the lease and returns the copy
// to the pool. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.scope.Close()
		if !l.Model.InScope() {
			l.Entry.copies.Put(l.Model)
		}
	})
}

type Registry struct {
	source Source
	models *cache.Cache
	group  singleflight.Group
	logger logging.Logger
	ready  atomic.Bool
}

func NewRegistry(source Source, logger logging.Logger) *Registry {
	return &Registry{
		source: source,
		models: cache.New(cache.NoExpiration, 0),
		logger: logging.OrNop(logger),
	}
}

// Ready reports whether Preload has finished.
func (r *Registry) Ready() bool { return r.ready.Load() }

// Loaded is the number of models held in memory.
func (r *Registry) Loaded() int { return r.models.ItemCount() }

// MarkReady is used when nothing needs preloading.
func (r *Registry) MarkReady() { r.ready.Store(true) }

// Preload loads the models as an anonymous caller and marks the registry
// ready. Failures are logged and returned together.
func (r *Registry) Preload(ctx context.Context, ids []string) error {
	defer r.ready.Store(true)
	var errs []error
	for _, id := range ids {
		if _, err := r.load(ctx, id, Caller{}); err != nil {
			r.logger.Error("WAREHOUSE", "Failed to preload model", map[string]interface{}{"model_id": id, "error": err.Error()})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns the loaded model after checking the caller may read it.
func (r *Registry) Get(ctx context.Context, id string, caller Caller) (*Entry, error) {
	e, err := r.load(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := Authorize(e.Record, caller); err != nil {
		return nil, err
	}
	return e, nil
}

// Lease returns a working copy of the model. Callers must Release it.
func (r *Registry) Lease(ctx context.Context, id string, caller Caller) (*Lease, error) {
	e, err := r.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	m := e.copies.Get().(*metabolic.Model)
	return &Lease{Entry: e, Model: m, scope: m.Begin()}, nil
}

func (r *Registry) load(ctx context.Context, id string, caller Caller) (*Entry, error) {
	if cached, ok := r.models.Get(id); ok {
		return cached.(*Entry), nil
	}
	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		if cached, ok := r.models.Get(id); ok {
			return cached, nil
		}
		start := time.Now()
		rec, err := r.source.Fetch(ctx, id, caller)
		if err != nil {
			return nil, err
		}
		m, err := metabolic.Unmarshal(rec.Serialized)
		if err != nil {
			return nil, fmt.Errorf("decode model %s: %w", id, err)
		}
		if rec.BiomassReaction != "" {
			if _, ok := m.Reaction(rec.BiomassReaction); !ok {
				return nil, fmt.Errorf("model %s, biomass reaction %s: %w", id, rec.BiomassReaction, metabolic.ErrReactionNotFound)
			}
		}
		rec.Serialized = nil

		e := &Entry{Record: rec, Model: m}
		e.copies.New = func() interface{} { return m.Copy() }
		r.models.Set(id, e, cache.NoExpiration)
		r.logger.Info("WAREHOUSE", "Loaded model", map[string]interface{}{
			"model_id":    id,
			"reactions":   len(m.Reactions()),
			"metabolites": len(m.Metabolites()),
			"elapsed":     time.Since(start).String(),
		})
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}
