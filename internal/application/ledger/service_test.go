package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/finance"
	"github.com/erp/ledgerstore/internal/domain/partner"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/erp/ledgerstore/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = audit.Actor{UserID: 1, Username: "alice", DeviceInfo: "test"}

type fixture struct {
	svc   *Service
	repos *persistence.Repositories
	sess  Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := testutil.OpenStore(t)
	ws := testutil.NewWorkspace(t, repos, alice.UserID, "Shop")
	return &fixture{
		svc:   NewService(repos, nil),
		repos: repos,
		sess:  NewSession(ws.ID, alice),
	}
}

func (f *fixture) product(t *testing.T, name string, stock int64) *catalog.Product {
	t.Helper()
	return testutil.NewProduct(t, f.repos, f.sess.Selector, alice.UserID, name, stock)
}

func (f *fixture) stock(t *testing.T, id int64) (decimal.Decimal, int) {
	t.Helper()
	p, err := f.repos.Products.FindByID(context.Background(), f.sess.Selector, id)
	require.NoError(t, err)
	return p.Stock, p.Version
}

func (f *fixture) history(t *testing.T, q audit.Query) []audit.Entry {
	t.Helper()
	q.PageSize = 100
	page, err := f.svc.History(context.Background(), f.sess, q)
	require.NoError(t, err)
	return page.Items
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func newSale(t *testing.T, product string, n int64) *trade.Sale {
	t.Helper()
	s, err := trade.NewSale(product, qty(n), testutil.Date(2024, 5, 2), nil, decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	return s
}

func TestService_CreateSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	apples := f.product(t, "Apples", 10)

	res, err := f.svc.Create(ctx, f.sess, newSale(t, " Apples ", 3))
	require.NoError(t, err)

	require.Len(t, res.Stock, 1)
	change := res.Stock[0]
	assert.Equal(t, apples.ID, change.ProductID)
	assert.True(t, change.Before.Equal(qty(10)))
	assert.True(t, change.After.Equal(qty(7)))
	assert.Equal(t, 2, change.Version)

	sale := res.Entity.(*trade.Sale)
	assert.NotZero(t, sale.ID)
	assert.Equal(t, "Apples", sale.ProductName)
	assert.Equal(t, alice.UserID, sale.UserID)
	require.NotNil(t, sale.WorkspaceID)

	stock, version := f.stock(t, apples.ID)
	assert.True(t, stock.Equal(qty(7)))
	assert.Equal(t, 2, version)

	entries := f.history(t, audit.Query{})
	require.Len(t, entries, 2)
	assert.Equal(t, audit.OperationCreate, entries[0].OperationType)
	assert.Equal(t, audit.EntitySale, entries[0].EntityType)
	assert.Equal(t, "Apples", entries[0].EntityName)
	assert.Equal(t, "alice", entries[0].Username)

	assert.Equal(t, audit.OperationUpdate, entries[1].OperationType)
	assert.Equal(t, audit.EntityProduct, entries[1].EntityType)
	diff, err := entries[1].Diff()
	require.NoError(t, err)
	delta, ok := diff.Delta("stock")
	require.True(t, ok)
	assert.True(t, delta.Equal(qty(-3)), "delta %s", delta)
}

func TestService_StockDirection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rice := f.product(t, "Rice", 10)

	purchase, err := trade.NewPurchase("Rice", qty(5), testutil.Date(2024, 5, 1), nil, decimal.Zero)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.sess, purchase)
	require.NoError(t, err)

	ret, err := trade.NewReturn("Rice", qty(2), testutil.Date(2024, 5, 3), nil, decimal.Zero)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.sess, ret)
	require.NoError(t, err)

	stock, version := f.stock(t, rice.ID)
	assert.True(t, stock.Equal(qty(13)), "stock %s", stock)
	assert.Equal(t, 3, version)
}

func TestService_CreateMovementFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	apples := f.product(t, "Apples", 2)

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.sess, newSale(t, "Durian", 1))
		assert.True(t, errors.Is(err, shared.ErrReferentNotFound))
	})

	t.Run("insufficient stock", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.sess, newSale(t, "Apples", 5))
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	})

	n, err := f.repos.Sales.Count(ctx, f.sess.Selector)
	require.NoError(t, err)
	assert.Zero(t, n)
	stock, version := f.stock(t, apples.ID)
	assert.True(t, stock.Equal(qty(2)))
	assert.Equal(t, 1, version)
	assert.Empty(t, f.history(t, audit.Query{}))
}

func TestService_UpdateMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	apples := f.product(t, "Apples", 10)
	pears := f.product(t, "Pears", 10)

	res, err := f.svc.Create(ctx, f.sess, newSale(t, "Apples", 3))
	require.NoError(t, err)
	id := res.Entity.(*trade.Sale).ID

	t.Run("quantity moves stock by the difference", func(t *testing.T) {
		res, err := f.svc.Update(ctx, f.sess, audit.EntitySale, id, map[string]any{"quantity": qty(5)})
		require.NoError(t, err)
		require.Len(t, res.Stock, 1)
		stock, version := f.stock(t, apples.ID)
		assert.True(t, stock.Equal(qty(5)), "stock %s", stock)
		assert.Equal(t, 3, version)
	})

	t.Run("note leaves stock alone", func(t *testing.T) {
		res, err := f.svc.Update(ctx, f.sess, audit.EntitySale, id, map[string]any{"note": "paid later"})
		require.NoError(t, err)
		assert.Empty(t, res.Stock)
		_, version := f.stock(t, apples.ID)
		assert.Equal(t, 3, version)
	})

	t.Run("product change moves stock between products", func(t *testing.T) {
		res, err := f.svc.Update(ctx, f.sess, audit.EntitySale, id, map[string]any{"product_name": " Pears"})
		require.NoError(t, err)
		assert.Len(t, res.Stock, 2)
		assert.Equal(t, "Pears", res.Entity.(*trade.Sale).ProductName)

		a, _ := f.stock(t, apples.ID)
		p, _ := f.stock(t, pears.ID)
		assert.True(t, a.Equal(qty(10)), "apples %s", a)
		assert.True(t, p.Equal(qty(5)), "pears %s", p)
	})

	t.Run("failure rolls everything back", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.sess, audit.EntitySale, id, map[string]any{"quantity": qty(50)})
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

		sale, err := f.repos.Sales.FindByID(ctx, f.sess.Selector, id)
		require.NoError(t, err)
		assert.True(t, sale.Quantity.Equal(qty(5)))
	})
}

func TestService_DeleteMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	apples := f.product(t, "Apples", 10)

	first, err := f.svc.Create(ctx, f.sess, newSale(t, "Apples", 4))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.sess, newSale(t, "Apples", 1))
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, f.sess, audit.EntitySale, first.Entity.(*trade.Sale).ID)
	require.NoError(t, err)
	require.Len(t, res.Stock, 1)
	stock, _ := f.stock(t, apples.ID)
	assert.True(t, stock.Equal(qty(9)))

	// the product is gone, so only the record is removed
	_, err = f.svc.Delete(ctx, f.sess, audit.EntityProduct, apples.ID)
	require.NoError(t, err)
	res, err = f.svc.Delete(ctx, f.sess, audit.EntitySale, second.Entity.(*trade.Sale).ID)
	require.NoError(t, err)
	assert.Empty(t, res.Stock)

	deletes := f.history(t, audit.Query{Operation: audit.OperationDelete})
	assert.Len(t, deletes, 3)
}

func TestService_AdjustStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	apples := f.product(t, "Apples", 10)

	res, err := f.svc.AdjustStock(ctx, f.sess, apples.ID, 1, qty(-4))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stock[0].Version)

	_, err = f.svc.AdjustStock(ctx, f.sess, apples.ID, 1, qty(1))
	var conflict *shared.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 1, conflict.Expected)
	assert.Equal(t, 2, conflict.Actual)

	_, err = f.svc.AdjustStock(ctx, f.sess, apples.ID, 2, qty(-7))
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	stock, version := f.stock(t, apples.ID)
	assert.True(t, stock.Equal(qty(6)))
	assert.Equal(t, 2, version)
	assert.Len(t, f.history(t, audit.Query{Entity: audit.EntityProduct}), 1)
}

func TestService_PartyAndFinanceCRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	supplier, err := partner.NewSupplier("Green Farm", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.sess, supplier)
	require.NoError(t, err)

	dup, err := partner.NewSupplier("Green Farm ", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.sess, dup)
	assert.True(t, errors.Is(err, shared.ErrDuplicateName))

	res, err := f.svc.Update(ctx, f.sess, audit.EntitySupplier, supplier.ID, map[string]any{"note": "weekly"})
	require.NoError(t, err)
	assert.Equal(t, "weekly", res.Entity.(*partner.Supplier).Note)

	remit, err := finance.NewRemittance(testutil.Date(2024, 5, 4), &supplier.ID, decimal.RequireFromString("300"), finance.PaymentCard)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.sess, remit)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, f.sess, audit.EntityRemittance, remit.ID)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, f.sess, audit.EntityRemittance, remit.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	entries := f.history(t, audit.Query{Entity: audit.EntitySupplier})
	require.Len(t, entries, 2)
	assert.Equal(t, audit.OperationUpdate, entries[0].OperationType)
	assert.Equal(t, "Green Farm", entries[0].EntityName)
}

func TestService_RefusesStockPatch(t *testing.T) {
	f := newFixture(t)
	apples := f.product(t, "Apples", 10)

	_, err := f.svc.Update(context.Background(), f.sess, audit.EntityProduct, apples.ID, map[string]any{"stock": 99})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	assert.Empty(t, f.history(t, audit.Query{}))
}

func TestService_UnsupportedInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Update(ctx, f.sess, audit.EntityWorkspaceData, 1, nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	_, err = f.svc.Delete(ctx, f.sess, audit.EntityKind("invoice"), 1)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = f.svc.Create(ctx, Session{Selector: shared.Workspace(0), Actor: alice}, newSale(t, "Apples", 1))
	assert.True(t, errors.Is(err, shared.ErrInvalidSelector))
}
