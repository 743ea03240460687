package trade

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockDelta(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	five := decimal.NewFromInt(5)

	p, err := NewPurchase("Apples", five, day, nil, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, p.StockDelta().Equal(five))
	assert.False(t, p.IsSupplierReturn())

	back, err := NewPurchase("Apples", five.Neg(), day, nil, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, back.IsSupplierReturn())
	assert.True(t, back.StockDelta().Equal(five.Neg()))

	s, err := NewSale("Apples", five, day, nil, decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.True(t, s.StockDelta().Equal(five.Neg()))

	r, err := NewReturn("Apples", five, day, nil, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, r.StockDelta().Equal(five.Neg()))
}

func TestNewLine_Invalid(t *testing.T) {
	day := time.Now()

	_, err := NewSale("Apples", decimal.NewFromInt(-1), day, nil, decimal.Zero)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewPurchase("Apples", decimal.Zero, day, nil, decimal.Zero)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewReturn("", decimal.NewFromInt(1), day, nil, decimal.Zero)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
