// Package scope applies workspace partitioning to GORM statements.
//
// Every read and write on a workspace-partitioned table carries an explicit
// shared.Selector. Apply turns the selector into a WHERE predicate on the
// workspace_id column, and the guard callback refuses statements on those
// tables that reach the database without one.
//
// Usage:
//
//	scope.RegisterGuard(db, "products", "sales")
//	db.Scopes(scope.Apply(shared.Workspace(3))).Find(&products)
package scope

import (
	"github.com/erp/ledgerstore/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column is the partitioning column on every scoped table
const Column = "workspace_id"

// Condition returns the predicate a selector stands for
func Condition(sel shared.Selector) clause.Expression {
	col := clause.Column{Table: clause.CurrentTable, Name: Column}
	switch sel.Mode {
	case shared.ScopeStrict:
		return clause.Eq{Column: col, Value: sel.WorkspaceID}
	case shared.ScopeLegacy:
		return clause.Eq{Column: col, Value: nil}
	default:
		return clause.Or(
			clause.Eq{Column: col, Value: sel.WorkspaceID},
			clause.Eq{Column: col, Value: nil},
		)
	}
}

// Apply is a GORM scope restricting a statement to the selector's rows.
// An invalid selector is added to the statement as an error.
func Apply(sel shared.Selector) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if err := sel.Validate(); err != nil {
			_ = db.AddError(err)
			return db
		}
		return db.Where(Condition(sel))
	}
}

// Workspace scopes a statement to exactly one workspace. Cascade and import
// code use it where legacy rows must stay untouched.
func Workspace(workspaceID int64) func(db *gorm.DB) *gorm.DB {
	return Apply(shared.StrictWorkspace(workspaceID))
}
