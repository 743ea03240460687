package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/partner"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence/scope"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, name string, stock int64) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(name, catalog.UnitKilogram, decimal.NewFromInt(stock))
	require.NoError(t, err)
	p.UserID = 1
	return p
}

func testDate() time.Time {
	return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
}

func TestRepository_WorkspaceIsolation(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	a := newTestWorkspace(t, repos, "A")
	b := newTestWorkspace(t, repos, "B")

	inA := newProduct(t, "Apples", 10)
	require.NoError(t, repos.Products.Insert(ctx, shared.Workspace(a.ID), inA))
	inB := newProduct(t, "Apples", 4)
	require.NoError(t, repos.Products.Insert(ctx, shared.Workspace(b.ID), inB))

	t.Run("each workspace sees only its row", func(t *testing.T) {
		pageA, err := repos.Products.QueryAll(ctx, shared.StrictWorkspace(a.ID), shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, pageA.Items, 1)
		assert.Equal(t, inA.ID, pageA.Items[0].ID)
		assert.True(t, pageA.Items[0].Stock.Equal(decimal.NewFromInt(10)))

		pageB, err := repos.Products.QueryAll(ctx, shared.Workspace(b.ID), shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, pageB.Items, 1)
		assert.Equal(t, inB.ID, pageB.Items[0].ID)
	})

	t.Run("id lookups do not cross workspaces", func(t *testing.T) {
		_, err := repos.Products.FindByID(ctx, shared.Workspace(b.ID), inA.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("same name in the same workspace is a duplicate", func(t *testing.T) {
		dup := newProduct(t, " Apples ", 1)
		err := repos.Products.Insert(ctx, shared.Workspace(a.ID), dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrDuplicateName))
	})

	t.Run("another owner may reuse the name", func(t *testing.T) {
		other := newProduct(t, "Apples", 1)
		other.UserID = 2
		assert.NoError(t, repos.Products.Insert(ctx, shared.Workspace(a.ID), other))
	})

	t.Run("updates and deletes do not cross workspaces", func(t *testing.T) {
		_, err := repos.Products.Update(ctx, shared.StrictWorkspace(b.ID), inA.ID, map[string]any{"description": "x"})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		_, err = repos.Products.Delete(ctx, shared.StrictWorkspace(b.ID), inA.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		still, err := repos.Products.FindByID(ctx, shared.Workspace(a.ID), inA.ID)
		require.NoError(t, err)
		assert.Empty(t, still.Description)
	})
}

func TestRepository_LegacyRows(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Main")

	legacy, err := partner.NewCustomer("Old Wang", "from before workspaces")
	require.NoError(t, err)
	legacy.UserID = 1
	require.NoError(t, repos.Customers.Insert(ctx, shared.Unscoped(), legacy))
	assert.Nil(t, legacy.WorkspaceID)

	scoped, err := partner.NewCustomer("New Li", "")
	require.NoError(t, err)
	scoped.UserID = 1
	require.NoError(t, repos.Customers.Insert(ctx, shared.Workspace(ws.ID), scoped))

	count := func(sel shared.Selector) int64 {
		n, err := repos.Customers.Count(ctx, sel)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, int64(1), count(shared.Unscoped()))
	assert.Equal(t, int64(2), count(shared.Workspace(ws.ID)))
	assert.Equal(t, int64(1), count(shared.StrictWorkspace(ws.ID)))

	got, err := repos.Customers.FindByID(ctx, shared.Unscoped(), legacy.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLegacy())
	assert.Equal(t, "from before workspaces", got.Note)

	_, err = repos.Customers.FindByID(ctx, shared.StrictWorkspace(ws.ID), legacy.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestRepository_FindByName(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Main")

	legacy := newProduct(t, "Pears", 1)
	require.NoError(t, repos.Products.Insert(ctx, shared.Unscoped(), legacy))
	current := newProduct(t, "Pears", 2)
	require.NoError(t, repos.Products.Insert(ctx, shared.Workspace(ws.ID), current))

	got, err := repos.Products.FindByName(ctx, shared.Workspace(ws.ID), "  Pears")
	require.NoError(t, err)
	assert.Equal(t, current.ID, got.ID, "the workspace row wins over the legacy row")

	got, err = repos.Products.FindByName(ctx, shared.Unscoped(), "Pears")
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, got.ID)

	_, err = repos.Products.FindByName(ctx, shared.Workspace(ws.ID), "Plums")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrReferentNotFound))
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Main")
	sel := shared.Workspace(ws.ID)

	p := newProduct(t, "Rice", 50)
	require.NoError(t, repos.Products.Insert(ctx, sel, p))

	t.Run("patches editable fields", func(t *testing.T) {
		got, err := repos.Products.Update(ctx, sel, p.ID, map[string]any{
			"description": "long grain",
			"unit":        string(catalog.UnitBag),
		})
		require.NoError(t, err)
		assert.Equal(t, "long grain", got.Description)
		assert.Equal(t, catalog.UnitBag, got.Unit)
		assert.Equal(t, 1, got.Version, "plain edits leave the version alone")
	})

	t.Run("stock and version are refused", func(t *testing.T) {
		_, err := repos.Products.Update(ctx, sel, p.ID, map[string]any{"stock": 1, "version": 9})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		assert.Contains(t, err.Error(), "stock, version")
	})

	t.Run("unknown and system columns are refused", func(t *testing.T) {
		_, err := repos.Products.Update(ctx, sel, p.ID, map[string]any{"colour": "red"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		_, err = repos.Products.Update(ctx, sel, p.ID, map[string]any{"workspace_id": nil})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("an invalid result rolls back", func(t *testing.T) {
		_, err := repos.Products.Update(ctx, sel, p.ID, map[string]any{"unit": "箱"})
		require.Error(t, err)

		got, err := repos.Products.FindByID(ctx, sel, p.ID)
		require.NoError(t, err)
		assert.Equal(t, catalog.UnitBag, got.Unit)
	})
}

func TestRepository_QueryAll(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Main")
	sel := shared.Workspace(ws.ID)

	for _, qty := range []int64{5, 3, 8} {
		s, err := trade.NewSale("Rice", decimal.NewFromInt(qty), testDate(), nil, decimal.Zero)
		require.NoError(t, err)
		s.UserID = 1
		require.NoError(t, repos.Sales.Insert(ctx, sel, s))
	}
	other, err := trade.NewSale("Beans", decimal.NewFromInt(1), testDate(), nil, decimal.Zero)
	require.NoError(t, err)
	other.UserID = 1
	require.NoError(t, repos.Sales.Insert(ctx, sel, other))

	t.Run("pages in id order by default", func(t *testing.T) {
		page, err := repos.Sales.QueryAll(ctx, sel, shared.Filter{Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Beans", page.Items[0].ProductName)
	})

	t.Run("orders by a whitelisted column", func(t *testing.T) {
		page, err := repos.Sales.QueryAll(ctx, sel, shared.Filter{OrderBy: "quantity", OrderDir: "desc"})
		require.NoError(t, err)
		require.Len(t, page.Items, 4)
		assert.True(t, page.Items[0].Quantity.Equal(decimal.NewFromInt(8)))
	})

	t.Run("filters and searches", func(t *testing.T) {
		page, err := repos.Sales.QueryAll(ctx, sel, shared.Filter{
			Filters: map[string]any{"product_name": "Rice", "ignored": 1},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)

		page, err = repos.Sales.QueryAll(ctx, sel, shared.Filter{Search: "ean"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Main")
	sel := shared.Workspace(ws.ID)

	e, err := partner.NewEmployee("Zhang", "")
	require.NoError(t, err)
	e.UserID = 1
	require.NoError(t, repos.Employees.Insert(ctx, sel, e))

	old, err := repos.Employees.Delete(ctx, sel, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zhang", old.Name)

	_, err = repos.Employees.Delete(ctx, sel, e.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestRepository_InvalidSelector(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)

	err := repos.Suppliers.Insert(ctx, shared.Workspace(0), &partner.Supplier{Party: partner.Party{Name: "X"}})
	assert.True(t, errors.Is(err, shared.ErrInvalidSelector))

	_, err = repos.Suppliers.FindByID(ctx, shared.StrictWorkspace(-3), 1)
	assert.True(t, errors.Is(err, shared.ErrInvalidSelector))
}

func TestRepository_GuardRejectsUnscopedQueries(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t)
	ws := newTestWorkspace(t, repos, "Main")
	require.NoError(t, repos.Products.Insert(ctx, shared.Workspace(ws.ID), newProduct(t, "Rice", 1)))

	var all []catalog.Product
	err := repos.db.WithContext(ctx).Find(&all).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, scope.ErrMissingScope))

	err = repos.db.WithContext(ctx).Model(&catalog.Product{}).Where("1 = 1").Update("description", "x").Error
	assert.True(t, errors.Is(err, scope.ErrMissingScope))

	require.NoError(t, repos.db.WithContext(ctx).Scopes(scope.Workspace(ws.ID)).Find(&all).Error)
	assert.Len(t, all, 1)
}
