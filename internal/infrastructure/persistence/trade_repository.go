package persistence

import (
	"github.com/erp/ledgerstore/internal/domain/trade"
	"gorm.io/gorm"
)

// PurchaseRepository stores purchases and supplier returns
type PurchaseRepository = Repository[trade.Purchase, *trade.Purchase]

// SaleRepository stores sales
type SaleRepository = Repository[trade.Sale, *trade.Sale]

// ReturnRepository stores customer returns
type ReturnRepository = Repository[trade.Return, *trade.Return]

// NewPurchaseRepository creates a PurchaseRepository
func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return newRepository[trade.Purchase](db, repoSpec{
		label:   "purchase",
		order:   purchaseOrder,
		search:  []string{"product_name", "note"},
		filters: []string{"product_name", "supplier_id"},
	})
}

// NewSaleRepository creates a SaleRepository
func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return newRepository[trade.Sale](db, repoSpec{
		label:   "sale",
		order:   saleOrder,
		search:  []string{"product_name", "note"},
		filters: []string{"product_name", "customer_id"},
	})
}

// NewReturnRepository creates a ReturnRepository
func NewReturnRepository(db *gorm.DB) *ReturnRepository {
	return newRepository[trade.Return](db, repoSpec{
		label:   "return",
		order:   returnOrder,
		search:  []string{"product_name", "note"},
		filters: []string{"product_name", "customer_id"},
	})
}
