package finance

import (
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how money changed hands
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "现金"
	PaymentWeChat PaymentMethod = "微信转账"
	PaymentCard   PaymentMethod = "银行卡"
)

// IsValid reports whether m is an accepted payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentWeChat, PaymentCard:
		return true
	}
	return false
}

// Income is money received from a customer
type Income struct {
	shared.ScopedEntity
	IncomeDate    time.Time       `gorm:"column:income_date" json:"income_date"`
	CustomerID    *int64          `gorm:"column:customer_id" json:"customer_id"`
	Amount        decimal.Decimal `gorm:"column:amount;not null" json:"amount"`
	Discount      decimal.Decimal `gorm:"column:discount;not null;default:0" json:"discount"`
	EmployeeID    *int64          `gorm:"column:employee_id" json:"employee_id"`
	PaymentMethod PaymentMethod   `gorm:"column:payment_method" json:"payment_method" validate:"omitempty,oneof=现金 微信转账 银行卡"`
	Note          string          `gorm:"column:note" json:"note" validate:"max=1000"`
}

// TableName returns the table name for GORM
func (Income) TableName() string {
	return "income"
}

// Received is the amount after discount
func (i *Income) Received() decimal.Decimal {
	return i.Amount.Sub(i.Discount)
}

// NewIncome creates an income record
func NewIncome(date time.Time, customerID *int64, amount, discount decimal.Decimal, method PaymentMethod) (*Income, error) {
	i := &Income{
		IncomeDate:    date,
		CustomerID:    customerID,
		Amount:        amount,
		Discount:      discount,
		PaymentMethod: method,
	}
	if err := shared.ValidateStruct(i); err != nil {
		return nil, err
	}
	if amount.IsNegative() || discount.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "amount and discount cannot be negative")
	}
	return i, nil
}

// Remittance is money paid to a supplier
type Remittance struct {
	shared.ScopedEntity
	RemittanceDate time.Time       `gorm:"column:remittance_date" json:"remittance_date"`
	SupplierID     *int64          `gorm:"column:supplier_id" json:"supplier_id"`
	Amount         decimal.Decimal `gorm:"column:amount;not null" json:"amount"`
	EmployeeID     *int64          `gorm:"column:employee_id" json:"employee_id"`
	PaymentMethod  PaymentMethod   `gorm:"column:payment_method" json:"payment_method" validate:"omitempty,oneof=现金 微信转账 银行卡"`
	Note           string          `gorm:"column:note" json:"note" validate:"max=1000"`
}

// TableName returns the table name for GORM
func (Remittance) TableName() string {
	return "remittance"
}

// NewRemittance creates a remittance record
func NewRemittance(date time.Time, supplierID *int64, amount decimal.Decimal, method PaymentMethod) (*Remittance, error) {
	r := &Remittance{
		RemittanceDate: date,
		SupplierID:     supplierID,
		Amount:         amount,
		PaymentMethod:  method,
	}
	if err := shared.ValidateStruct(r); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "amount cannot be negative")
	}
	return r, nil
}
