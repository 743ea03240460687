package persistence

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories bundles every repository over one connection or transaction
type Repositories struct {
	db            *gorm.DB
	logger        *zap.Logger
	schemaVersion int

	Workspaces  *WorkspaceRepository
	Members     *WorkspaceMemberRepository
	Products    *ProductRepository
	Suppliers   *SupplierRepository
	Customers   *CustomerRepository
	Employees   *EmployeeRepository
	Purchases   *PurchaseRepository
	Sales       *SaleRepository
	Returns     *ReturnRepository
	Incomes     *IncomeRepository
	Remittances *RemittanceRepository
	Audit       *AuditRepository
	Snapshots   *SnapshotRepository
}

// NewRepositories builds the repository set over db
func NewRepositories(db *gorm.DB, logger *zap.Logger, schemaVersion int) *Repositories {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repositories{
		db:            db,
		logger:        logger,
		schemaVersion: schemaVersion,
		Workspaces:    NewWorkspaceRepository(db, logger),
		Members:       NewWorkspaceMemberRepository(db, logger),
		Products:      NewProductRepository(db, logger),
		Suppliers:     NewSupplierRepository(db),
		Customers:     NewCustomerRepository(db),
		Employees:     NewEmployeeRepository(db),
		Purchases:     NewPurchaseRepository(db),
		Sales:         NewSaleRepository(db),
		Returns:       NewReturnRepository(db),
		Incomes:       NewIncomeRepository(db),
		Remittances:   NewRemittanceRepository(db),
		Audit:         NewAuditRepository(db),
		Snapshots:     NewSnapshotRepository(db, logger, schemaVersion),
	}
}

// Transaction runs fn with repositories bound to one write transaction.
// Everything fn does commits or rolls back together.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx, r.logger, r.schemaVersion))
	})
}
