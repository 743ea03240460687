package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selector
		wantErr bool
	}{
		{"inclusive", Workspace(1), false},
		{"strict", StrictWorkspace(9), false},
		{"unscoped", Unscoped(), false},
		{"zero workspace", Workspace(0), true},
		{"negative workspace", StrictWorkspace(-1), true},
		{"unscoped with id", Selector{WorkspaceID: 3, Mode: ScopeLegacy}, true},
		{"unknown mode", Selector{WorkspaceID: 1, Mode: ScopeMode(42)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSelector))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSelector_Admits(t *testing.T) {
	a, b := int64(1), int64(2)

	assert.True(t, Workspace(1).Admits(&a))
	assert.True(t, Workspace(1).Admits(nil))
	assert.False(t, Workspace(1).Admits(&b))

	assert.True(t, StrictWorkspace(1).Admits(&a))
	assert.False(t, StrictWorkspace(1).Admits(nil))

	assert.True(t, Unscoped().Admits(nil))
	assert.False(t, Unscoped().Admits(&a))
}

func TestSelector_WorkspaceRef(t *testing.T) {
	assert.Nil(t, Unscoped().WorkspaceRef())
	ref := Workspace(5).WorkspaceRef()
	require.NotNil(t, ref)
	assert.Equal(t, int64(5), *ref)
	assert.Equal(t, "strict:5", StrictWorkspace(5).String())
	assert.Equal(t, "unscoped", Unscoped().String())
}

func TestNormalizeName(t *testing.T) {
	// "é" as e + combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", NormalizeName("  cafe\u0301 "))
	assert.Equal(t, "Apples", NormalizeName("Apples"))
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 5, 1, 2)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPaginated([]int{}, 5, 1, 0).TotalPages)
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
	assert.True(t, p.HasNext())
	assert.False(t, NewPaginated([]int{5}, 5, 3, 2).HasNext())
}
