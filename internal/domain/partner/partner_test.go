package partner

import (
	"errors"
	"strings"
	"testing"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParties(t *testing.T) {
	s, err := NewSupplier(" Green Farm ", "weekly")
	require.NoError(t, err)
	assert.Equal(t, "Green Farm", s.GetName())
	assert.Equal(t, "suppliers", s.TableName())

	c, err := NewCustomer("Li", "")
	require.NoError(t, err)
	assert.Equal(t, "customers", c.TableName())

	e, err := NewEmployee("Wang", "")
	require.NoError(t, err)
	assert.Equal(t, "employees", e.TableName())
}

func TestNewParties_Invalid(t *testing.T) {
	_, err := NewCustomer("", "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewSupplier(strings.Repeat("x", 101), "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
