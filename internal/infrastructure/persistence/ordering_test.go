package persistence

import (
	"testing"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestOrderable_Clause(t *testing.T) {
	cases := map[string]struct {
		by, dir string
		want    []string
	}{
		"defaults to id":          {"", "", []string{"id ASC"}},
		"id descending":           {"id", "DESC", []string{"id DESC"}},
		"known column":            {"stock", "desc", []string{"stock DESC", "id ASC"}},
		"padded input":            {" name ", " asc ", []string{"name ASC", "id ASC"}},
		"unknown column":          {"cost_price", "desc", []string{"id DESC"}},
		"column from other table": {"sale_date", "", []string{"id ASC"}},
		"injected column":         {"name; DROP TABLE products", "", []string{"id ASC"}},
		"injected direction":      {"name", "ASC; DELETE FROM sales", []string{"name ASC", "id ASC"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := productOrder.clause(shared.Filter{OrderBy: tc.by, OrderDir: tc.dir})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOrderBy_CommonColumns(t *testing.T) {
	for _, o := range []orderable{partyOrder, incomeOrder, workspaceOrder} {
		for _, c := range []string{"id", "created_at", "updated_at"} {
			_, ok := o[c]
			assert.True(t, ok, c)
		}
	}
	_, ok := partyOrder["stock"]
	assert.False(t, ok)
}
