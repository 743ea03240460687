package trade

import (
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Line holds the fields every stock-moving record carries. ProductName is a
// soft reference: it is matched against products by name and may not resolve.
type Line struct {
	shared.ScopedEntity
	ProductName string          `gorm:"column:product_name;not null" json:"product_name" validate:"required,max=100"`
	Quantity    decimal.Decimal `gorm:"column:quantity;not null" json:"quantity"`
	Note        string          `gorm:"column:note" json:"note" validate:"max=1000"`
}

// NormalizeName normalizes the product reference
func (l *Line) NormalizeName() {
	l.ProductName = shared.NormalizeName(l.ProductName)
}

// Product returns the referenced product name
func (l *Line) Product() string {
	return l.ProductName
}

// Purchase records goods bought from a supplier. A negative quantity is a
// return to the supplier.
type Purchase struct {
	Line
	PurchaseDate       time.Time       `gorm:"column:purchase_date" json:"purchase_date"`
	SupplierID         *int64          `gorm:"column:supplier_id" json:"supplier_id"`
	TotalPurchasePrice decimal.Decimal `gorm:"column:total_purchase_price" json:"total_purchase_price"`
}

// TableName returns the table name for GORM
func (Purchase) TableName() string {
	return "purchases"
}

// StockDelta is the change the purchase applies to the product's stock
func (p *Purchase) StockDelta() decimal.Decimal {
	return p.Quantity
}

// IsSupplierReturn reports whether the purchase sends goods back
func (p *Purchase) IsSupplierReturn() bool {
	return p.Quantity.IsNegative()
}

// Sale records goods sold to a customer
type Sale struct {
	Line
	SaleDate       time.Time       `gorm:"column:sale_date" json:"sale_date"`
	CustomerID     *int64          `gorm:"column:customer_id" json:"customer_id"`
	TotalSalePrice decimal.Decimal `gorm:"column:total_sale_price" json:"total_sale_price"`
}

// TableName returns the table name for GORM
func (Sale) TableName() string {
	return "sales"
}

// StockDelta is the change the sale applies to the product's stock
func (s *Sale) StockDelta() decimal.Decimal {
	return s.Quantity.Neg()
}

// Return records goods returned by a customer
type Return struct {
	Line
	ReturnDate       time.Time       `gorm:"column:return_date" json:"return_date"`
	CustomerID       *int64          `gorm:"column:customer_id" json:"customer_id"`
	TotalReturnPrice decimal.Decimal `gorm:"column:total_return_price" json:"total_return_price"`
}

// TableName returns the table name for GORM
func (Return) TableName() string {
	return "returns"
}

// StockDelta is the change the return applies to the product's stock
func (r *Return) StockDelta() decimal.Decimal {
	return r.Quantity.Neg()
}

// NewPurchase creates a purchase; the total defaults to zero
func NewPurchase(productName string, quantity decimal.Decimal, date time.Time, supplierID *int64, total decimal.Decimal) (*Purchase, error) {
	p := &Purchase{
		Line:               Line{ProductName: shared.NormalizeName(productName), Quantity: quantity},
		PurchaseDate:       date,
		SupplierID:         supplierID,
		TotalPurchasePrice: total,
	}
	if err := validateLine(p, quantity, false); err != nil {
		return nil, err
	}
	return p, nil
}

// NewSale creates a sale
func NewSale(productName string, quantity decimal.Decimal, date time.Time, customerID *int64, total decimal.Decimal) (*Sale, error) {
	s := &Sale{
		Line:           Line{ProductName: shared.NormalizeName(productName), Quantity: quantity},
		SaleDate:       date,
		CustomerID:     customerID,
		TotalSalePrice: total,
	}
	if err := validateLine(s, quantity, true); err != nil {
		return nil, err
	}
	return s, nil
}

// NewReturn creates a customer return
func NewReturn(productName string, quantity decimal.Decimal, date time.Time, customerID *int64, total decimal.Decimal) (*Return, error) {
	r := &Return{
		Line:             Line{ProductName: shared.NormalizeName(productName), Quantity: quantity},
		ReturnDate:       date,
		CustomerID:       customerID,
		TotalReturnPrice: total,
	}
	if err := validateLine(r, quantity, true); err != nil {
		return nil, err
	}
	return r, nil
}

func validateLine(v any, quantity decimal.Decimal, positive bool) error {
	if err := shared.ValidateStruct(v); err != nil {
		return err
	}
	if quantity.IsZero() {
		return shared.NewDomainError(shared.CodeInvalidInput, "quantity cannot be zero")
	}
	if positive && quantity.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "quantity must be positive")
	}
	return nil
}
