package persistence

import (
	"github.com/erp/ledgerstore/internal/domain/partner"
	"gorm.io/gorm"
)

// Suppliers, customers and employees share one name-keyed layout
type (
	SupplierRepository = NamedRepository[partner.Supplier, *partner.Supplier]
	CustomerRepository = NamedRepository[partner.Customer, *partner.Customer]
	EmployeeRepository = NamedRepository[partner.Employee, *partner.Employee]
)

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{Repository: newRepository[partner.Supplier](db, partySpec("supplier"))}
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{Repository: newRepository[partner.Customer](db, partySpec("customer"))}
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{Repository: newRepository[partner.Employee](db, partySpec("employee"))}
}

func partySpec(label string) repoSpec {
	return repoSpec{label: label, order: partyOrder, search: []string{"name", "note"}}
}
