// Package testutil opens throwaway stores and seeds fixtures for tests
// outside the persistence package.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/erp/ledgerstore/internal/infrastructure/config"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// DatabaseConfig returns a config for a fresh database file in a temp dir
func DatabaseConfig(t *testing.T) config.DatabaseConfig {
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

// OpenStore opens a migrated store that is closed when the test ends
func OpenStore(t *testing.T) *persistence.Repositories {
	t.Helper()
	store := persistence.NewStore(DatabaseConfig(t), nil)
	repos, err := store.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return repos
}

// NewWorkspace stores a local workspace owned by ownerID
func NewWorkspace(t *testing.T, repos *persistence.Repositories, ownerID int64, name string) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(ownerID, name, "", workspace.StorageLocal)
	require.NoError(t, err)
	require.NoError(t, repos.Workspaces.Create(context.Background(), ws))
	return ws
}

// NewProduct stores a product in kilograms with the given stock
func NewProduct(t *testing.T, repos *persistence.Repositories, sel shared.Selector, userID int64, name string, stock int64) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(name, catalog.UnitKilogram, decimal.NewFromInt(stock))
	require.NoError(t, err)
	p.UserID = userID
	require.NoError(t, repos.Products.Insert(context.Background(), sel, p))
	return p
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
