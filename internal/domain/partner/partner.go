package partner

import (
	"github.com/erp/ledgerstore/internal/domain/shared"
)

// Party holds the fields shared by suppliers, customers and employees
type Party struct {
	shared.ScopedEntity
	Name string `gorm:"column:name;not null" json:"name" validate:"required,max=100"`
	Note string `gorm:"column:note" json:"note" validate:"max=1000"`
}

// GetName returns the party name
func (p *Party) GetName() string {
	return p.Name
}

// NormalizeName normalizes the stored name
func (p *Party) NormalizeName() {
	p.Name = shared.NormalizeName(p.Name)
}

func newParty(name, note string) Party {
	return Party{Name: shared.NormalizeName(name), Note: note}
}

// Supplier sells goods to the business
type Supplier struct {
	Party
}

// TableName returns the table name for GORM
func (Supplier) TableName() string {
	return "suppliers"
}

// NewSupplier creates a new supplier
func NewSupplier(name, note string) (*Supplier, error) {
	s := &Supplier{Party: newParty(name, note)}
	if err := shared.ValidateStruct(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Customer buys goods from the business
type Customer struct {
	Party
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a new customer
func NewCustomer(name, note string) (*Customer, error) {
	c := &Customer{Party: newParty(name, note)}
	if err := shared.ValidateStruct(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Employee handles payments on behalf of the business
type Employee struct {
	Party
}

// TableName returns the table name for GORM
func (Employee) TableName() string {
	return "employees"
}

// NewEmployee creates a new employee
func NewEmployee(name, note string) (*Employee, error) {
	e := &Employee{Party: newParty(name, note)}
	if err := shared.ValidateStruct(e); err != nil {
		return nil, err
	}
	return e, nil
}
