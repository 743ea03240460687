package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/erp/ledgerstore/internal/infrastructure/config"
	"github.com/erp/ledgerstore/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "ledger.db"),
		BusyTimeout:   5 * time.Second,
		MaxOpenConns:  1,
		MaxIdleConns:  1,
		LogLevel:      "silent",
		SlowThreshold: time.Second,
	}
}

// openTestStore opens a migrated store in a temp dir
func openTestStore(t *testing.T) *Repositories {
	t.Helper()
	repos, _ := openTestStoreWith(t, testConfig(t))
	return repos
}

func openTestStoreWith(t *testing.T, cfg config.DatabaseConfig) (*Repositories, *Store) {
	t.Helper()
	store := NewStore(cfg, nil)
	repos, err := store.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return repos, store
}

// newTestWorkspace creates a workspace owned by user 1
func newTestWorkspace(t *testing.T, repos *Repositories, name string) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(1, name, "", workspace.StorageLocal)
	require.NoError(t, err)
	require.NoError(t, repos.Workspaces.Create(context.Background(), ws))
	return ws
}

func TestStore_OpenSurvivesCancelledFirstCaller(t *testing.T) {
	store := NewStore(testConfig(t), nil)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first, err := store.Open(ctx)
	require.NoError(t, err)

	later, err := store.Open(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, later)
	assert.Equal(t, migration.DefaultRegistry().CurrentVersion(), store.Report().To)
}

func TestStore_OpenOnce(t *testing.T) {
	store := NewStore(testConfig(t), nil)
	defer store.Close()

	const callers = 8
	results := make([]*Repositories, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Open(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i], "every caller observes the same open")
	}

	report := store.Report()
	require.NotNil(t, report)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, report.Applied)

	db, err := store.DB()
	require.NoError(t, err)
	v, err := store.Engine().RecordedVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, migration.DefaultRegistry().CurrentVersion(), v)
}

func TestStore_ReopenAppliesNothing(t *testing.T) {
	cfg := testConfig(t)

	first := NewStore(cfg, nil)
	_, err := first.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := NewStore(cfg, nil)
	defer second.Close()
	_, err = second.Open(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Report().Applied)
	assert.Empty(t, second.Report().Healed)
}

func TestStore_NewerSchema(t *testing.T) {
	cfg := testConfig(t)

	first := NewStore(cfg, nil)
	_, err := first.Open(context.Background())
	require.NoError(t, err)
	db, err := first.DB()
	require.NoError(t, err)
	require.NoError(t, db.Exec("UPDATE schema_version SET version = 99").Error)
	require.NoError(t, first.Close())

	t.Run("refused by default and the failure is sticky", func(t *testing.T) {
		store := NewStore(cfg, nil)
		_, err := store.Open(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrMigrationFailed))

		_, again := store.Open(context.Background())
		assert.Equal(t, err, again)

		_, dbErr := store.DB()
		assert.True(t, errors.Is(dbErr, shared.ErrStoreNotOpen))
		assert.Nil(t, store.Report())
	})

	t.Run("accepted when configured", func(t *testing.T) {
		allow := cfg
		allow.AllowNewerSchema = true
		store := NewStore(allow, nil)
		defer store.Close()

		repos, err := store.Open(context.Background())
		require.NoError(t, err)
		assert.Empty(t, store.Report().Applied)

		ws := newTestWorkspace(t, repos, "Shop")
		assert.NotZero(t, ws.ID)
	})
}

func TestStore_CloseBeforeOpen(t *testing.T) {
	store := NewStore(testConfig(t), nil)
	assert.NoError(t, store.Close())
}
