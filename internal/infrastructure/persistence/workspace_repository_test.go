package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/partner"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Shop")
	newTestWorkspace(t, repos, "Warehouse")

	got, err := repos.Workspaces.FindByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Name)
	assert.False(t, got.IsRemote())

	list, err := repos.Workspaces.FindAccessible(ctx, 1, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = repos.Workspaces.FindAccessible(ctx, 2, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Empty(t, list)

	patch := map[string]any{"storage_type": "server", "description": "mirrored"}
	updated, err := repos.Workspaces.Update(ctx, ws.ID, patch)
	require.NoError(t, err)
	assert.True(t, updated.IsRemote())
	assert.Equal(t, "mirrored", updated.Description)
	assert.Len(t, patch, 2, "the caller's patch is left alone")

	_, err = repos.Workspaces.Update(ctx, ws.ID, map[string]any{"owner_id": 9})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = repos.Workspaces.Update(ctx, ws.ID, map[string]any{"storage_type": "cloud"})
	require.Error(t, err)
	got, err = repos.Workspaces.FindByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRemote())
}

func TestWorkspaceRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	doomed := newTestWorkspace(t, repos, "Doomed")
	kept := newTestWorkspace(t, repos, "Kept")

	for _, sel := range []shared.Selector{shared.Workspace(doomed.ID), shared.Workspace(kept.ID), shared.Unscoped()} {
		require.NoError(t, repos.Products.Insert(ctx, sel, newProduct(t, "Rice", 3)))

		c, err := partner.NewCustomer("Li", "")
		require.NoError(t, err)
		c.UserID = 1
		require.NoError(t, repos.Customers.Insert(ctx, sel, c))

		s, err := trade.NewSale("Rice", decimal.NewFromInt(1), testDate(), &c.ID, decimal.Zero)
		require.NoError(t, err)
		s.UserID = 1
		require.NoError(t, repos.Sales.Insert(ctx, sel, s))
	}
	newTestMember(t, repos, doomed, 2, workspace.RoleEditor)
	newTestMember(t, repos, kept, 2, workspace.RoleViewer)
	_, err := repos.Audit.Record(ctx, audit.Record{
		Operation:   audit.OperationCreate,
		Entity:      audit.EntityProduct,
		WorkspaceID: &doomed.ID,
		Actor:       audit.Actor{UserID: 1},
	})
	require.NoError(t, err)

	removed, err := repos.Workspaces.Delete(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed["products"])
	assert.Equal(t, int64(1), removed["customers"])
	assert.Equal(t, int64(1), removed["sales"])
	assert.Equal(t, int64(0), removed["income"])
	assert.Equal(t, int64(1), removed["workspace_members"])

	_, err = repos.Workspaces.FindByID(ctx, doomed.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	n, err := repos.Products.Count(ctx, shared.StrictWorkspace(kept.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "other workspaces are untouched")

	ids, err := repos.Members.WorkspaceIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{kept.ID}, ids, "memberships of other workspaces are untouched")

	n, err = repos.Sales.Count(ctx, shared.Unscoped())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "legacy rows are untouched")

	page, err := repos.Audit.List(ctx, shared.StrictWorkspace(doomed.ID), audit.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total, "audit entries outlive the workspace")

	_, err = repos.Workspaces.Delete(ctx, doomed.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
