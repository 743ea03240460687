package workspace

import (
	"errors"
	"testing"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Allows(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleOwner, PermManageSettings, true},
		{RoleOwner, PermDelete, true},
		{RoleAdmin, PermManageMembers, true},
		{RoleAdmin, PermDelete, true},
		{RoleAdmin, PermManageSettings, false},
		{RoleEditor, PermUpdate, true},
		{RoleEditor, PermDelete, false},
		{RoleEditor, PermManageMembers, false},
		{RoleViewer, PermRead, true},
		{RoleViewer, PermCreate, false},
		{Role("guest"), PermRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Allows(tt.perm))
		})
	}
}

func TestNewMember(t *testing.T) {
	ws, err := New(1, "Mirror", "", StorageServer)
	require.NoError(t, err)
	ws.ID = 5

	t.Run("records who added the member", func(t *testing.T) {
		m, err := NewMember(ws, 2, RoleEditor, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(5), m.WorkspaceID)
		require.NotNil(t, m.InvitedBy)
		assert.Equal(t, int64(1), *m.InvitedBy)
	})

	t.Run("owner role is implicit", func(t *testing.T) {
		_, err := NewMember(ws, 2, RoleOwner, 1)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("rejects the owner", func(t *testing.T) {
		_, err := NewMember(ws, 1, RoleAdmin, 1)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := NewMember(ws, 2, Role("guest"), 1)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestWorkspace_CheckSharing(t *testing.T) {
	local, err := New(1, "Stall", "", StorageLocal)
	require.NoError(t, err)
	assert.True(t, errors.Is(local.CheckSharing(), shared.ErrInvalidInput))

	remote, err := New(1, "Mirror", "", StorageServer)
	require.NoError(t, err)
	assert.NoError(t, remote.CheckSharing())
}
