package persistence

import (
	"github.com/erp/ledgerstore/internal/domain/finance"
	"gorm.io/gorm"
)

// IncomeRepository stores money received from customers
type IncomeRepository = Repository[finance.Income, *finance.Income]

// RemittanceRepository stores money paid to suppliers
type RemittanceRepository = Repository[finance.Remittance, *finance.Remittance]

// NewIncomeRepository creates an IncomeRepository
func NewIncomeRepository(db *gorm.DB) *IncomeRepository {
	return newRepository[finance.Income](db, repoSpec{
		label:   "income",
		order:   incomeOrder,
		search:  []string{"note"},
		filters: []string{"customer_id", "employee_id", "payment_method"},
	})
}

// NewRemittanceRepository creates a RemittanceRepository
func NewRemittanceRepository(db *gorm.DB) *RemittanceRepository {
	return newRepository[finance.Remittance](db, repoSpec{
		label:   "remittance",
		order:   remittanceOrder,
		search:  []string{"note"},
		filters: []string{"supplier_id", "employee_id", "payment_method"},
	})
}
