package persistence

import (
	"context"

	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence/scope"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductRepository stores products. Stock and version are written only by
// MutateWithVersion.
type ProductRepository struct {
	*NamedRepository[catalog.Product, *catalog.Product]
	logger *zap.Logger
}

// NewProductRepository creates a ProductRepository
func NewProductRepository(db *gorm.DB, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{
		NamedRepository: &NamedRepository[catalog.Product, *catalog.Product]{
			Repository: newRepository[catalog.Product](db, repoSpec{
				label:    "product",
				order:    productOrder,
				search:   []string{"name", "description"},
				filters:  []string{"unit", "supplier_id"},
				readonly: []string{"stock", "version"},
			}),
		},
		logger: logger,
	}
}

// MutateWithVersion applies fn to the product inside one write transaction,
// provided the stored version still equals expectedVersion, and returns the
// new version. A stale expectedVersion fails with *shared.ConflictError and
// leaves the row untouched, as does any error from fn. A resulting negative
// stock fails with ErrInsufficientStock.
func (r *ProductRepository) MutateWithVersion(
	ctx context.Context,
	sel shared.Selector,
	id int64,
	expectedVersion int,
	fn func(*catalog.Product) error,
) (int, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}

	var newVersion int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p catalog.Product
		if err := tx.Scopes(scope.Apply(sel)).First(&p, id).Error; err != nil {
			return translate(err, "product")
		}
		if p.Version != expectedVersion {
			return shared.NewConflictError("product", id, expectedVersion, p.Version)
		}

		if err := fn(&p); err != nil {
			return err
		}
		if p.Stock.IsNegative() {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				"stock of "+p.Name+" cannot go below zero")
		}
		p.NormalizeName()
		if err := p.Validate(); err != nil {
			return err
		}

		result := tx.Model(&catalog.Product{}).
			Scopes(scope.Apply(sel)).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]any{
				"name":        p.Name,
				"description": p.Description,
				"stock":       p.Stock,
				"unit":        p.Unit,
				"supplier_id": p.SupplierID,
				"version":     gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return translate(result.Error, "product")
		}
		if result.RowsAffected == 0 {
			actual, err := r.currentVersion(tx, sel, id)
			if err != nil {
				return err
			}
			return shared.NewConflictError("product", id, expectedVersion, actual)
		}
		newVersion = expectedVersion + 1
		return nil
	})
	if err != nil {
		if shared.IsRetryable(err) {
			r.logger.Info("product version conflict",
				zap.Int64("entity_id", id),
				zap.Int("expected_version", expectedVersion),
				zap.Stringer("selector", sel),
			)
		}
		return 0, err
	}
	return newVersion, nil
}

func (r *ProductRepository) currentVersion(tx *gorm.DB, sel shared.Selector, id int64) (int, error) {
	var version int
	err := tx.Model(&catalog.Product{}).Scopes(scope.Apply(sel)).
		Where("id = ?", id).
		Select("version").
		Scan(&version).Error
	if err != nil {
		return 0, translate(err, "product")
	}
	return version, nil
}
