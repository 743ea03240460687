package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/finance"
	"github.com/erp/ledgerstore/internal/domain/partner"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result is the outcome of an audited mutation
type Result struct {
	// Entity is the row as stored, or as it was before a delete
	Entity any
	// Stock lists the product stock changes the mutation caused
	Stock []StockChange
}

type scoped[T any] interface {
	*T
	shared.Scoped
}

type pickFunc[T any, PT scoped[T]] func(*persistence.Repositories) *persistence.Repository[T, PT]

func products(r *persistence.Repositories) *persistence.Repository[catalog.Product, *catalog.Product] {
	return r.Products.Repository
}

func suppliers(r *persistence.Repositories) *persistence.Repository[partner.Supplier, *partner.Supplier] {
	return r.Suppliers.Repository
}

func customers(r *persistence.Repositories) *persistence.Repository[partner.Customer, *partner.Customer] {
	return r.Customers.Repository
}

func employees(r *persistence.Repositories) *persistence.Repository[partner.Employee, *partner.Employee] {
	return r.Employees.Repository
}

func incomes(r *persistence.Repositories) *persistence.Repository[finance.Income, *finance.Income] {
	return r.Incomes
}

func remittances(r *persistence.Repositories) *persistence.Repository[finance.Remittance, *finance.Remittance] {
	return r.Remittances
}

// Create stores e in the session's workspace, owned by the acting user.
// Purchases, sales and returns also move the referenced product's stock.
func (s *Service) Create(ctx context.Context, sess Session, e shared.Scoped) (*Result, error) {
	switch v := e.(type) {
	case *catalog.Product:
		return create(ctx, s, sess, audit.EntityProduct, products, v)
	case *partner.Supplier:
		return create(ctx, s, sess, audit.EntitySupplier, suppliers, v)
	case *partner.Customer:
		return create(ctx, s, sess, audit.EntityCustomer, customers, v)
	case *partner.Employee:
		return create(ctx, s, sess, audit.EntityEmployee, employees, v)
	case *finance.Income:
		return create(ctx, s, sess, audit.EntityIncome, incomes, v)
	case *finance.Remittance:
		return create(ctx, s, sess, audit.EntityRemittance, remittances, v)
	case *trade.Purchase:
		return createMovement(ctx, s, sess, audit.EntityPurchase, purchases, v)
	case *trade.Sale:
		return createMovement(ctx, s, sess, audit.EntitySale, sales, v)
	case *trade.Return:
		return createMovement(ctx, s, sess, audit.EntityReturn, returns, v)
	}
	return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unsupported entity %T", e))
}

// Update patches the row of kind with id. Product stock cannot be patched;
// use AdjustStock. Patching a movement's quantity or product moves stock.
func (s *Service) Update(ctx context.Context, sess Session, kind audit.EntityKind, id int64, patch map[string]any) (*Result, error) {
	switch kind {
	case audit.EntityProduct:
		return update(ctx, s, sess, kind, products, id, patch)
	case audit.EntitySupplier:
		return update(ctx, s, sess, kind, suppliers, id, patch)
	case audit.EntityCustomer:
		return update(ctx, s, sess, kind, customers, id, patch)
	case audit.EntityEmployee:
		return update(ctx, s, sess, kind, employees, id, patch)
	case audit.EntityIncome:
		return update(ctx, s, sess, kind, incomes, id, patch)
	case audit.EntityRemittance:
		return update(ctx, s, sess, kind, remittances, id, patch)
	case audit.EntityPurchase:
		return updateMovement(ctx, s, sess, kind, purchases, id, patch)
	case audit.EntitySale:
		return updateMovement(ctx, s, sess, kind, sales, id, patch)
	case audit.EntityReturn:
		return updateMovement(ctx, s, sess, kind, returns, id, patch)
	}
	return nil, unsupportedKind(kind)
}

// Delete removes the row of kind with id. Deleting a movement reverses its
// stock effect when the product still exists.
func (s *Service) Delete(ctx context.Context, sess Session, kind audit.EntityKind, id int64) (*Result, error) {
	switch kind {
	case audit.EntityProduct:
		return remove(ctx, s, sess, kind, products, id)
	case audit.EntitySupplier:
		return remove(ctx, s, sess, kind, suppliers, id)
	case audit.EntityCustomer:
		return remove(ctx, s, sess, kind, customers, id)
	case audit.EntityEmployee:
		return remove(ctx, s, sess, kind, employees, id)
	case audit.EntityIncome:
		return remove(ctx, s, sess, kind, incomes, id)
	case audit.EntityRemittance:
		return remove(ctx, s, sess, kind, remittances, id)
	case audit.EntityPurchase:
		return removeMovement(ctx, s, sess, kind, purchases, id)
	case audit.EntitySale:
		return removeMovement(ctx, s, sess, kind, sales, id)
	case audit.EntityReturn:
		return removeMovement(ctx, s, sess, kind, returns, id)
	}
	return nil, unsupportedKind(kind)
}

// AdjustStock changes a product's stock by delta, provided the caller saw
// expectedVersion. It returns the new version.
func (s *Service) AdjustStock(ctx context.Context, sess Session, productID int64, expectedVersion int, delta decimal.Decimal) (*Result, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	ctx = tag(ctx, sess, "adjust_stock")
	var res Result
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		before, err := tx.Products.FindByID(ctx, sess.Selector, productID)
		if err != nil {
			return err
		}
		version, err := tx.Products.MutateWithVersion(ctx, sess.Selector, productID, expectedVersion, func(p *catalog.Product) error {
			return p.ApplyStockDelta(delta)
		})
		if err != nil {
			return err
		}
		after, err := tx.Products.FindByID(ctx, sess.Selector, productID)
		if err != nil {
			return err
		}
		if err := record(ctx, tx, sess, audit.OperationUpdate, audit.EntityProduct, after, after.Name, before, after); err != nil {
			return err
		}
		res.Entity = after
		res.Stock = []StockChange{{ProductID: productID, ProductName: after.Name, Before: before.Stock, After: after.Stock, Version: version}}
		return nil
	})
	if err != nil {
		s.log(sess, "adjust_stock").Info("stock adjustment refused", zap.Int64("entity_id", productID), zap.Error(err))
		return nil, err
	}
	return &res, nil
}

func create[T any, PT scoped[T]](ctx context.Context, s *Service, sess Session, kind audit.EntityKind, pick pickFunc[T, PT], e PT) (*Result, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	ctx = tag(ctx, sess, "create")
	e.AssignScope(sess.Actor.UserID, sess.Selector)
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		if err := pick(tx).Insert(ctx, sess.Selector, e); err != nil {
			return err
		}
		return record(ctx, tx, sess, audit.OperationCreate, kind, e, entityName(e), nil, e)
	})
	if err != nil {
		return nil, err
	}
	s.log(sess, "create").Debug("entity created", zap.String("entity_type", string(kind)), zap.Int64("entity_id", e.GetID()))
	return &Result{Entity: e}, nil
}

func update[T any, PT scoped[T]](ctx context.Context, s *Service, sess Session, kind audit.EntityKind, pick pickFunc[T, PT], id int64, patch map[string]any) (*Result, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	ctx = tag(ctx, sess, "update")
	var res Result
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		before, err := pick(tx).FindByID(ctx, sess.Selector, id)
		if err != nil {
			return err
		}
		after, err := pick(tx).Update(ctx, sess.Selector, id, patch)
		if err != nil {
			return err
		}
		res.Entity = after
		return record(ctx, tx, sess, audit.OperationUpdate, kind, after, entityName(after), before, after)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func remove[T any, PT scoped[T]](ctx context.Context, s *Service, sess Session, kind audit.EntityKind, pick pickFunc[T, PT], id int64) (*Result, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	ctx = tag(ctx, sess, "delete")
	var res Result
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		old, err := pick(tx).Delete(ctx, sess.Selector, id)
		if err != nil {
			return err
		}
		res.Entity = old
		return record(ctx, tx, sess, audit.OperationDelete, kind, old, entityName(old), old, nil)
	})
	if err != nil {
		return nil, err
	}
	s.log(sess, "delete").Debug("entity deleted", zap.String("entity_type", string(kind)), zap.Int64("entity_id", id))
	return &res, nil
}

func entityName(e any) string {
	switch v := e.(type) {
	case interface{ GetName() string }:
		return v.GetName()
	case interface{ Product() string }:
		return v.Product()
	}
	return ""
}

func unsupportedKind(kind audit.EntityKind) error {
	return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unsupported entity kind %q", kind))
}
