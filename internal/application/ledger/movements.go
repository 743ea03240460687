package ledger

import (
	"context"
	"errors"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockChange is the effect of one stock mutation on a product
type StockChange struct {
	ProductID   int64
	ProductName string
	Before      decimal.Decimal
	After       decimal.Decimal
	Version     int
}

type movement[T any] interface {
	scoped[T]
	Product() string
	StockDelta() decimal.Decimal
}

func purchases(r *persistence.Repositories) *persistence.Repository[trade.Purchase, *trade.Purchase] {
	return r.Purchases
}

func sales(r *persistence.Repositories) *persistence.Repository[trade.Sale, *trade.Sale] {
	return r.Sales
}

func returns(r *persistence.Repositories) *persistence.Repository[trade.Return, *trade.Return] {
	return r.Returns
}

// createMovement stores rec and applies its stock delta to the product it
// names. The product must exist in the session's view.
func createMovement[T any, PT movement[T]](ctx context.Context, s *Service, sess Session, kind audit.EntityKind, pick pickFunc[T, PT], rec PT) (*Result, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	ctx = tag(ctx, sess, "create")
	rec.AssignScope(sess.Actor.UserID, sess.Selector)

	res := Result{Entity: rec}
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		change, err := applyStock(ctx, tx, sess, rec.Product(), rec.StockDelta())
		if err != nil {
			return err
		}
		if err := pick(tx).Insert(ctx, sess.Selector, rec); err != nil {
			return err
		}
		res.Stock = append(res.Stock, *change)
		return record(ctx, tx, sess, audit.OperationCreate, kind, rec, rec.Product(), nil, rec)
	})
	if err != nil {
		s.log(sess, "create").Info("movement refused",
			zap.String("entity_type", string(kind)),
			zap.String("product", rec.Product()),
			zap.Error(err),
		)
		return nil, err
	}
	return &res, nil
}

// updateMovement patches a movement and moves stock by the difference. When
// the product reference changes, the old product gets its stock back and the
// new one takes the new delta.
func updateMovement[T any, PT movement[T]](ctx context.Context, s *Service, sess Session, kind audit.EntityKind, pick pickFunc[T, PT], id int64, patch map[string]any) (*Result, error) {
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

		if before.Product() == after.Product() {
			delta := after.StockDelta().Sub(before.StockDelta())
			if !delta.IsZero() {
				change, err := applyStock(ctx, tx, sess, after.Product(), delta)
				if err != nil {
					return err
				}
				res.Stock = append(res.Stock, *change)
			}
		} else {
			if change, err := revertStock(ctx, s, tx, sess, before.Product(), before.StockDelta()); err != nil {
				return err
			} else if change != nil {
				res.Stock = append(res.Stock, *change)
			}
			change, err := applyStock(ctx, tx, sess, after.Product(), after.StockDelta())
			if err != nil {
				return err
			}
			res.Stock = append(res.Stock, *change)
		}
		return record(ctx, tx, sess, audit.OperationUpdate, kind, after, after.Product(), before, after)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// removeMovement deletes a movement and reverses its stock effect. A product
// that no longer exists is skipped.
func removeMovement[T any, PT movement[T]](ctx context.Context, s *Service, sess Session, kind audit.EntityKind, pick pickFunc[T, PT], id int64) (*Result, error) {
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
		change, err := revertStock(ctx, s, tx, sess, old.Product(), old.StockDelta())
		if err != nil {
			return err
		}
		if change != nil {
			res.Stock = append(res.Stock, *change)
		}
		return record(ctx, tx, sess, audit.OperationDelete, kind, old, old.Product(), old, nil)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// applyStock moves the named product's stock by delta under the version
// guard and audits the product update.
func applyStock(ctx context.Context, tx *persistence.Repositories, sess Session, name string, delta decimal.Decimal) (*StockChange, error) {
	p, err := tx.Products.FindByName(ctx, sess.Selector, name)
	if err != nil {
		return nil, err
	}
	before := *p
	version, err := tx.Products.MutateWithVersion(ctx, sess.Selector, p.ID, p.Version, func(p *catalog.Product) error {
		return p.ApplyStockDelta(delta)
	})
	if err != nil {
		return nil, err
	}
	after, err := tx.Products.FindByID(ctx, sess.Selector, p.ID)
	if err != nil {
		return nil, err
	}
	if err := record(ctx, tx, sess, audit.OperationUpdate, audit.EntityProduct, after, after.Name, &before, after); err != nil {
		return nil, err
	}
	return &StockChange{
		ProductID:   p.ID,
		ProductName: p.Name,
		Before:      before.Stock,
		After:       after.Stock,
		Version:     version,
	}, nil
}

// revertStock undoes delta on the named product. A missing product returns
// a nil change.
func revertStock(ctx context.Context, s *Service, tx *persistence.Repositories, sess Session, name string, delta decimal.Decimal) (*StockChange, error) {
	change, err := applyStock(ctx, tx, sess, name, delta.Neg())
	if errors.Is(err, shared.ErrReferentNotFound) {
		s.log(sess, "revert_stock").Warn("product no longer exists, stock not reverted",
			zap.String("product", name),
			zap.Stringer("delta", delta.Neg()),
		)
		return nil, nil
	}
	return change, err
}
