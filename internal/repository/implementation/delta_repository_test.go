package implementation

import (
	"context"
	"os"
	"testing"

	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOperations() []operations.Operation {
	rxn := metabolic.NewReaction("CRTX", "crtX", map[string]float64{"caro_c": -1, "zeax_c": 1}, 0, 1000)
	rxn.GeneReactionRule = "crtX"
	return []operations.Operation{
		operations.KnockoutGene("b2297"),
		operations.AddReaction(rxn),
		operations.RemoveReaction("PFK"),
	}
}

func exerciseDeltaRepository(t *testing.T, repo contract.IDeltaRepository) {
	t.Helper()
	ctx := context.Background()
	ops := sampleOperations()

	require.NoError(t, repo.Save(ctx, "3f1c", ops))
	require.NoError(t, repo.Save(ctx, "3f1c", ops), "saving twice is idempotent")

	got, err := repo.Load(ctx, "3f1c")
	require.NoError(t, err)
	assert.Equal(t, ops, got)

	_, err = repo.Load(ctx, "unseen")
	assert.ErrorIs(t, err, contract.ErrDeltaNotFound)
}

func TestBadgerDeltaRepository(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		db, err := OpenBadger("")
		require.NoError(t, err)
		repo := NewBadgerDeltaRepository(db)
		defer repo.Close()
		exerciseDeltaRepository(t, repo)
	})

	t.Run("on disk survives reopening", func(t *testing.T) {
		dir := t.TempDir()
		db, err := OpenBadger(dir)
		require.NoError(t, err)
		repo := NewBadgerDeltaRepository(db)
		require.NoError(t, repo.Save(context.Background(), "k", sampleOperations()))
		require.NoError(t, repo.Close())

		db, err = OpenBadger(dir)
		require.NoError(t, err)
		repo = NewBadgerDeltaRepository(db)
		defer repo.Close()
		got, err := repo.Load(context.Background(), "k")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestRedisDeltaRepository(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	client, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)
	repo := NewRedisDeltaRepository(client)
	defer repo.Close()
	exerciseDeltaRepository(t, repo)
}
