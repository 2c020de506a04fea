package warehouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"metabolic-model-be/pkg/metabolic/metabolictest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls   int32
	project *int64
}

func (s *countingSource) Fetch(ctx context.Context, modelID string, caller Caller) (*Record, error) {
	atomic.AddInt32(&s.calls, 1)
	if modelID != metabolictest.ModelID {
		return nil, ErrModelNotFound
	}
	return &Record{
		ID:              ID(modelID),
		ProjectID:       s.project,
		BiomassReaction: metabolictest.BiomassID,
		Serialized:      metabolictest.CoreJSON(),
	}, nil
}

func TestRecordDecodesNumericIDs(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12, "organism_id": "4", "project_id": 3, "default_biomass_reaction": "BIO"}`), &rec))
	assert.Equal(t, ID("12"), rec.ID)
	assert.Equal(t, ID("4"), rec.OrganismID)
	require.NotNil(t, rec.ProjectID)
	assert.Equal(t, int64(3), *rec.ProjectID)
}

func TestAuthorize(t *testing.T) {
	project := int64(7)
	restricted := &Record{ID: "m", ProjectID: &project}

	assert.NoError(t, Authorize(&Record{ID: "m"}, Caller{}))
	assert.ErrorIs(t, Authorize(restricted, Caller{}), ErrUnauthorized)
	assert.ErrorIs(t, Authorize(restricted, Caller{Token: "t", Projects: []int64{1}}), ErrForbidden)
	assert.NoError(t, Authorize(restricted, Caller{Token: "t", Projects: []int64{1, 7}}))
}

func TestRegistryLoadsOnce(t *testing.T) {
	src := &countingSource{}
	r := NewRegistry(src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get(context.Background(), metabolictest.ModelID, Caller{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	_, err := r.Get(context.Background(), "missing", Caller{})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestLeaseRestoresPristineState(t *testing.T) {
	r := NewRegistry(&countingSource{}, nil)
	ctx := context.Background()

	lease, err := r.Lease(ctx, metabolictest.ModelID, Caller{})
	require.NoError(t, err)
	require.NoError(t, lease.Model.KnockOutGene("b2297"))
	require.NoError(t, lease.Model.RemoveReaction("CS"))
	lease.Release()
	lease.Release()

	again, err := r.Lease(ctx, metabolictest.ModelID, Caller{})
	require.NoError(t, err)
	defer again.Release()
	assert.Equal(t, metabolictest.Core().ToDocument(), again.Model.ToDocument())
	assert.Equal(t, metabolictest.Core().ToDocument(), again.Entry.Model.ToDocument(), "base model is untouched")
	assert.Equal(t, metabolictest.BiomassID, again.Entry.BiomassID())
}

func TestRegistryChecksAccessOnEveryRequest(t *testing.T) {
	project := int64(3)
	r := NewRegistry(&countingSource{project: &project}, nil)
	ctx := context.Background()

	_, err := r.Get(ctx, metabolictest.ModelID, Caller{Token: "t", Projects: []int64{3}})
	require.NoError(t, err)

	_, err = r.Get(ctx, metabolictest.ModelID, Caller{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = r.Lease(ctx, metabolictest.ModelID, Caller{Token: "t", Projects: []int64{4}})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPreload(t *testing.T) {
	r := NewRegistry(&countingSource{}, nil)
	assert.False(t, r.Ready())
	err := r.Preload(context.Background(), []string{metabolictest.ModelID, "missing"})
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.True(t, r.Ready())
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.json"), metabolictest.CoreJSON(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locked.json"), metabolictest.CoreJSON(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locked.meta.json"), []byte(`{"project_id": 9, "organism_id": 1}`), 0o644))

	src := NewFileSource(dir)
	rec, err := src.Fetch(context.Background(), "core", Caller{})
	require.NoError(t, err)
	assert.Equal(t, ID("core"), rec.ID)
	assert.Equal(t, metabolictest.BiomassID, rec.BiomassReaction)
	assert.Nil(t, rec.ProjectID)

	rec, err = src.Fetch(context.Background(), "locked", Caller{})
	require.NoError(t, err)
	require.NotNil(t, rec.ProjectID)
	assert.Equal(t, int64(9), *rec.ProjectID)

	for _, id := range []string{"nope", "../core", ""} {
		_, err = src.Fetch(context.Background(), id, Caller{})
		assert.ErrorIs(t, err, ErrModelNotFound, id)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/1":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":                       1,
				"name":                     "toy",
				"organism_id":              2,
				"project_id":               nil,
				"default_biomass_reaction": metabolictest.BiomassID,
				"model_serialized":         json.RawMessage(metabolictest.CoreJSON()),
			})
		case "/models/2":
			w.WriteHeader(http.StatusUnauthorized)
		case "/models/3":
			w.WriteHeader(http.StatusForbidden)
		case "/models/5":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 0, nil)
	ctx := context.Background()

	rec, err := src.Fetch(ctx, "1", Caller{Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, ID("1"), rec.ID)
	assert.Equal(t, "toy", rec.Name)
	assert.NotEmpty(t, rec.Serialized)

	_, err = src.Fetch(ctx, "2", Caller{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = src.Fetch(ctx, "3", Caller{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = src.Fetch(ctx, "4", Caller{})
	assert.ErrorIs(t, err, ErrModelNotFound)
	_, err = src.Fetch(ctx, "5", Caller{})
	assert.ErrorContains(t, err, "status 500")
}
