package finance

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncome(t *testing.T) {
	in, err := NewIncome(time.Now(), nil, decimal.NewFromInt(100), decimal.NewFromInt(5), PaymentWeChat)
	require.NoError(t, err)
	assert.Equal(t, "95", in.Received().String())

	_, err = NewIncome(time.Now(), nil, decimal.NewFromInt(100), decimal.Zero, PaymentMethod("支票"))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewIncome(time.Now(), nil, decimal.NewFromInt(-1), decimal.Zero, PaymentCash)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestNewRemittance(t *testing.T) {
	r, err := NewRemittance(time.Now(), nil, decimal.NewFromInt(30), "")
	require.NoError(t, err)
	assert.Equal(t, "remittance", r.TableName())

	_, err = NewRemittance(time.Now(), nil, decimal.NewFromInt(-3), PaymentCard)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, PaymentCash.IsValid())
	assert.True(t, PaymentCard.IsValid())
	assert.False(t, PaymentMethod("").IsValid())
}
