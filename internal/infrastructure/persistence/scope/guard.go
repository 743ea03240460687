package scope

import (
	"strings"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMissingScope is added to statements on a scoped table that carry no
// workspace predicate
var ErrMissingScope = shared.NewDomainError(shared.CodeInvalidSelector,
	"statement on a workspace table has no workspace predicate")

// Guard is a GORM callback set that rejects unscoped statements on
// workspace-partitioned tables
type Guard struct {
	tables map[string]struct{}
}

// NewGuard creates a guard for the given tables
func NewGuard(tables ...string) *Guard {
	g := &Guard{tables: make(map[string]struct{}, len(tables))}
	for _, t := range tables {
		g.tables[t] = struct{}{}
	}
	return g
}

// Register installs the guard before GORM's query, update, delete and row callbacks.
// Creates are not checked: the repository stamps workspace_id on insert.
func (g *Guard) Register(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("scope:guard_query", g.check); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("scope:guard_update", g.check); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("scope:guard_delete", g.check); err != nil {
		return err
	}
	return cb.Row().Before("gorm:row").Register("scope:guard_row", g.check)
}

// RegisterGuard installs a guard for tables on db
func RegisterGuard(db *gorm.DB, tables ...string) error {
	return NewGuard(tables...).Register(db)
}

func (g *Guard) check(db *gorm.DB) {
	if db.Error != nil || db.Statement.Unscoped {
		return
	}
	if _, ok := g.tables[db.Statement.Table]; !ok {
		return
	}
	if g.hasScope(db.Statement) {
		return
	}
	_ = db.AddError(ErrMissingScope)
}

func (g *Guard) hasScope(stmt *gorm.Statement) bool {
	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && listHasScope(where.Exprs) {
			return true
		}
	}
	// Raw statements carry their SQL already built
	return stmt.SQL.Len() > 0 && strings.Contains(stmt.SQL.String(), Column)
}

func exprHasScope(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return columnIsScope(e.Column)
	case clause.Neq:
		return columnIsScope(e.Column)
	case clause.IN:
		return columnIsScope(e.Column)
	case clause.Expr:
		return strings.Contains(e.SQL, Column)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, Column)
	case clause.AndConditions:
		return listHasScope(e.Exprs)
	case clause.OrConditions:
		// every branch must be scoped or the OR widens past the workspace
		if len(e.Exprs) == 0 {
			return false
		}
		for _, c := range e.Exprs {
			if !exprHasScope(c) {
				return false
			}
		}
		return true
	}
	return false
}

// listHasScope reports whether a condition list restricts the workspace. A
// single-branch OrConditions in the list is joined with OR, in which case
// every element must carry the predicate.
func listHasScope(exprs []clause.Expression) bool {
	some, all := false, len(exprs) > 0
	joinedByOr := false
	for _, expr := range exprs {
		if or, ok := expr.(clause.OrConditions); ok && len(or.Exprs) == 1 {
			joinedByOr = true
		}
		if exprHasScope(expr) {
			some = true
		} else {
			all = false
		}
	}
	if joinedByOr {
		return all
	}
	return some
}

func columnIsScope(col any) bool {
	switch c := col.(type) {
	case clause.Column:
		return c.Name == Column
	case string:
		return c == Column || strings.HasSuffix(c, "."+Column)
	}
	return false
}
