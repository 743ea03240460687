package catalog

import (
	"fmt"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Unit is the unit of measure a product is stocked in
type Unit string

const (
	UnitJin      Unit = "斤"
	UnitKilogram Unit = "公斤"
	UnitBag      Unit = "袋"
)

// DefaultUnit is used when imported data carries an unknown unit
const DefaultUnit = UnitKilogram

// Units lists the accepted units in display order
func Units() []Unit {
	return []Unit{UnitJin, UnitKilogram, UnitBag}
}

// IsValid reports whether u is one of the accepted units
func (u Unit) IsValid() bool {
	switch u {
	case UnitJin, UnitKilogram, UnitBag:
		return true
	}
	return false
}

// ParseUnit returns the unit or DefaultUnit when s is not recognised
func ParseUnit(s string) Unit {
	u := Unit(shared.NormalizeName(s))
	if u.IsValid() {
		return u
	}
	return DefaultUnit
}

// Product is a stocked item. Stock changes go through the version guard only.
type Product struct {
	shared.ScopedEntity
	Name        string          `gorm:"column:name;not null" json:"name" validate:"required,max=100"`
	Description string          `gorm:"column:description" json:"description" validate:"max=1000"`
	Stock       decimal.Decimal `gorm:"column:stock;not null;default:0" json:"stock"`
	Unit        Unit            `gorm:"column:unit;not null" json:"unit" validate:"required,oneof=斤 公斤 袋"`
	SupplierID  *int64          `gorm:"column:supplier_id" json:"supplier_id"`
	Version     int             `gorm:"column:version;not null;default:1" json:"version"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a product at version 1
func NewProduct(name string, unit Unit, stock decimal.Decimal) (*Product, error) {
	p := &Product{
		Name:    shared.NormalizeName(name),
		Unit:    unit,
		Stock:   stock,
		Version: 1,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks field constraints
func (p *Product) Validate() error {
	if err := shared.ValidateStruct(p); err != nil {
		return err
	}
	if p.Stock.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "stock cannot be negative")
	}
	return nil
}

// GetName returns the product name
func (p *Product) GetName() string {
	return p.Name
}

// NormalizeName normalizes the stored name
func (p *Product) NormalizeName() {
	p.Name = shared.NormalizeName(p.Name)
}

// ApplyStockDelta adds delta to the stock, refusing to go below zero
func (p *Product) ApplyStockDelta(delta decimal.Decimal) error {
	next := p.Stock.Add(delta)
	if next.IsNegative() {
		return shared.WrapDomainError(shared.CodeInsufficientStock, "insufficient stock",
			fmt.Errorf("product %q has %s %s, change %s", p.Name, p.Stock, p.Unit, delta))
	}
	p.Stock = next
	return nil
}
