package persistence

import (
	"strings"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"gorm.io/gorm"
)

// orderable is the set of columns a listing may be ordered by. Every table
// can be ordered by its id and timestamps.
type orderable map[string]struct{}

func orderBy(columns ...string) orderable {
	o := orderable{"id": {}, "created_at": {}, "updated_at": {}}
	for _, c := range columns {
		o[c] = struct{}{}
	}
	return o
}

// clause turns the filter's requested ordering into an ORDER BY term.
// Unknown columns fall back to id; anything but "desc" sorts ascending.
// Ties on a non-unique column are broken by id so pages stay stable.
func (o orderable) clause(filter shared.Filter) []string {
	col := strings.TrimSpace(filter.OrderBy)
	if _, ok := o[col]; !ok {
		col = "id"
	}
	dir := "ASC"
	if strings.EqualFold(strings.TrimSpace(filter.OrderDir), "desc") {
		dir = "DESC"
	}
	terms := []string{col + " " + dir}
	if col != "id" {
		terms = append(terms, "id ASC")
	}
	return terms
}

func ordered(q *gorm.DB, o orderable, filter shared.Filter) *gorm.DB {
	for _, term := range o.clause(filter) {
		q = q.Order(term)
	}
	return q
}

var (
	productOrder    = orderBy("name", "stock", "unit", "version")
	partyOrder      = orderBy("name")
	purchaseOrder   = orderBy("product_name", "quantity", "purchase_date", "total_purchase_price")
	saleOrder       = orderBy("product_name", "quantity", "sale_date", "total_sale_price")
	returnOrder     = orderBy("product_name", "quantity", "return_date", "total_return_price")
	incomeOrder     = orderBy("income_date", "amount", "discount", "payment_method")
	remittanceOrder = orderBy("remittance_date", "amount", "payment_method")
	workspaceOrder  = orderBy("name", "storage_type")
)
