package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMember(t *testing.T, repos *Repositories, ws *workspace.Workspace, userID int64, role workspace.Role) *workspace.Member {
	t.Helper()
	m, err := workspace.NewMember(ws, userID, role, ws.OwnerID)
	require.NoError(t, err)
	require.NoError(t, repos.Members.Add(context.Background(), m))
	return m
}

func TestWorkspaceMemberRepository(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	shop := newTestWorkspace(t, repos, "Shop")
	depot := newTestWorkspace(t, repos, "Depot")

	m := newTestMember(t, repos, shop, 2, workspace.RoleEditor)
	assert.NotZero(t, m.ID)
	assert.False(t, m.JoinedAt.IsZero())
	newTestMember(t, repos, shop, 3, workspace.RoleViewer)
	newTestMember(t, repos, depot, 2, workspace.RoleAdmin)

	t.Run("one role per user and workspace", func(t *testing.T) {
		dup, err := workspace.NewMember(shop, 2, workspace.RoleAdmin, 1)
		require.NoError(t, err)
		err = repos.Members.Add(ctx, dup)
		assert.True(t, errors.Is(err, shared.ErrDuplicateName))
	})

	t.Run("role lookup", func(t *testing.T) {
		role, ok, err := repos.Members.RoleOf(ctx, shop.ID, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, workspace.RoleEditor, role)

		_, ok, err = repos.Members.RoleOf(ctx, shop.ID, 9)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list and membership", func(t *testing.T) {
		hidden, err := repos.Workspaces.FindAccessible(ctx, 3, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Empty(t, hidden, "memberships of unshared workspaces are dormant")
		_, err = repos.Workspaces.Update(ctx, shop.ID, map[string]any{"is_shared": true})
		require.NoError(t, err)

		members, err := repos.Members.List(ctx, shop.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, int64(2), members[0].UserID)
		assert.Equal(t, int64(3), members[1].UserID)

		ids, err := repos.Members.WorkspaceIDs(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{shop.ID, depot.ID}, ids)

		visible, err := repos.Workspaces.FindAccessible(ctx, 3, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, "Shop", visible[0].Name)

		owned, err := repos.Workspaces.FindAccessible(ctx, 1, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Len(t, owned, 2)
	})

	t.Run("update role", func(t *testing.T) {
		got, err := repos.Members.UpdateRole(ctx, shop.ID, 3, workspace.RoleEditor)
		require.NoError(t, err)
		assert.Equal(t, workspace.RoleEditor, got.Role)

		_, err = repos.Members.UpdateRole(ctx, shop.ID, 3, workspace.RoleOwner)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		_, err = repos.Members.UpdateRole(ctx, shop.ID, 9, workspace.RoleViewer)
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		role, _, err := repos.Members.RoleOf(ctx, shop.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, workspace.RoleEditor, role)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, repos.Members.Remove(ctx, shop.ID, 3))
		err := repos.Members.Remove(ctx, shop.ID, 3)
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		members, err := repos.Members.List(ctx, shop.ID)
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})
}
