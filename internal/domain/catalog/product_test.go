package catalog

import (
	"testing"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	p, err := NewProduct(" Apples ", UnitKilogram, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "Apples", p.GetName())
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, "10", p.Stock.String())
	assert.Nil(t, p.WorkspaceID)

	refused := map[string]struct {
		name  string
		unit  Unit
		stock decimal.Decimal
	}{
		"unit outside the list": {"Apples", Unit("box"), decimal.Zero},
		"opening debt":          {"Apples", UnitBag, decimal.NewFromInt(-1)},
		"blank name":            {"  ", UnitBag, decimal.Zero},
	}
	for label, in := range refused {
		_, err := NewProduct(in.name, in.unit, in.stock)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, label)
	}
}

func TestProduct_ApplyStockDelta(t *testing.T) {
	p := &Product{Name: "Rice", Unit: UnitJin, Stock: decimal.RequireFromString("2.5")}

	require.NoError(t, p.ApplyStockDelta(decimal.RequireFromString("-1.5")))
	require.NoError(t, p.ApplyStockDelta(decimal.RequireFromString("0.25")))
	assert.Equal(t, "1.25", p.Stock.String())

	err := p.ApplyStockDelta(decimal.NewFromInt(-2))
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Contains(t, err.Error(), `"Rice" has 1.25 斤`)
	assert.Equal(t, "1.25", p.Stock.String())

	require.NoError(t, p.ApplyStockDelta(decimal.RequireFromString("-1.25")))
	assert.True(t, p.Stock.IsZero())
}

func TestUnits(t *testing.T) {
	assert.Equal(t, []Unit{UnitJin, UnitKilogram, UnitBag}, Units())
	for in, want := range map[string]Unit{"斤": UnitJin, " 袋 ": UnitBag, "box": DefaultUnit, "": DefaultUnit} {
		assert.Equal(t, want, ParseUnit(in), in)
	}
	assert.False(t, Unit("kg").IsValid())
}
