package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-academy/internal/platform/config"
	"github.com/p-n-ai/pai-academy/internal/platform/database"
	"github.com/p-n-ai/pai-academy/internal/progress"
)

func newPostgresStore(t *testing.T) *progress.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("learn"),
		postgres.WithUsername("learn"),
		postgres.WithPassword("learn"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, config.DatabaseConfig{URL: url, MaxConns: 8, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx), "Migrate() must be repeatable")
	require.NoError(t, db.HealthCheck(ctx))

	store, err := progress.NewPostgresStore(db.Pool)
	require.NoError(t, err)
	return store
}

func TestPostgresStore_Contract(t *testing.T) {
	runStoreContract(t, newPostgresStore(t))
}

func TestPostgresStore_WithinTxRollsBack(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, "u1", "c1", func(tx progress.Tx) error {
		_, err := tx.CreateAttempt(ctx, progress.Attempt{UserID: "u1", ContentID: "c1", AttemptNumber: 1})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := store.CountAttempts(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPostgresStore_ConcurrentSubmissionsSerialised(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WithinTx(ctx, "u1", "c1", func(tx progress.Tx) error {
				n, err := tx.CountAttempts(ctx, "u1", "c1")
				if err != nil {
					return err
				}
				_, err = tx.CreateAttempt(ctx, progress.Attempt{UserID: "u1", ContentID: "c1", AttemptNumber: n + 1})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	n, err := store.CountAttempts(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	_, err := progress.NewPostgresStore(nil)
	require.Error(t, err)
}
