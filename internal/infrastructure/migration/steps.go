package migration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// History lists every released schema step. Released steps are never edited;
// new schema changes are appended.
func History() []Step {
	return []Step{
		{Version: 1, Name: "base tables", Apply: applyBaseTables},
		{Version: 2, Name: "employees and payments", Apply: applyPaymentTables},
		{Version: 3, Name: "product supplier", Apply: addColumnStep(TableProducts, ColumnSpec{"supplier_id", "INTEGER"})},
		{Version: 4, Name: "product version", Apply: addColumnStep(TableProducts, ColumnSpec{"version", "INTEGER NOT NULL DEFAULT 1"})},
		{Version: 5, Name: "operation log", Apply: applyOperationLog},
		{Version: 6, Name: "workspaces", Apply: applyWorkspaces},
		{Version: 7, Name: "workspace scoped names", Apply: applyScopedNames},
		{Version: 8, Name: "cover operation", Apply: applyCoverOperation},
		{Version: 9, Name: "workspace members", Apply: applyWorkspaceMembers},
	}
}

// v1 shipped names unique per user only
var baseTables = []string{
	`CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	stock REAL NOT NULL DEFAULT 0,
	unit TEXT NOT NULL ` + unitCheck + `,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, name)
)`,
	partyTableV1(TableSuppliers),
	partyTableV1(TableCustomers),
	`CREATE TABLE IF NOT EXISTS purchases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	product_name TEXT NOT NULL,
	quantity REAL NOT NULL,
	purchase_date DATE,
	supplier_id INTEGER,
	total_purchase_price REAL,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS sales (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	product_name TEXT NOT NULL,
	quantity REAL NOT NULL,
	customer_id INTEGER,
	sale_date DATE,
	total_sale_price REAL,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS returns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	product_name TEXT NOT NULL,
	quantity REAL NOT NULL,
	customer_id INTEGER,
	return_date DATE,
	total_return_price REAL,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
}

func partyTableV1(name string) string {
	return `CREATE TABLE IF NOT EXISTS ` + name + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, name)
)`
}

func execAll(tx *gorm.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyBaseTables(tx *gorm.DB) error {
	return execAll(tx, baseTables...)
}

func applyPaymentTables(tx *gorm.DB) error {
	return execAll(tx,
		partyTableV1(TableEmployees),
		`CREATE TABLE IF NOT EXISTS income (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	income_date DATE,
	customer_id INTEGER,
	amount REAL NOT NULL,
	discount REAL NOT NULL DEFAULT 0,
	employee_id INTEGER,
	payment_method TEXT `+paymentMethodCheck+`,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS remittance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	remittance_date DATE,
	supplier_id INTEGER,
	amount REAL NOT NULL,
	employee_id INTEGER,
	payment_method TEXT `+paymentMethodCheck+`,
	note TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	)
}

func addColumnStep(table string, col ColumnSpec) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		_, err := ensureColumn(tx, table, col)
		return err
	}
}

func applyOperationLog(tx *gorm.DB) error {
	spec := auditLogTable(operationTypeCheck("CREATE", "UPDATE", "DELETE"))
	// workspace_id arrived with v6
	spec.Columns = without(spec.Columns, "workspace_id")
	if err := tx.Exec(spec.CreateSQL(spec.Name)).Error; err != nil {
		return err
	}
	for _, idx := range auditIndexes() {
		if _, err := ensureIndex(tx, idx); err != nil {
			return err
		}
	}
	return nil
}

func without(cols []ColumnSpec, name string) []ColumnSpec {
	out := make([]ColumnSpec, 0, len(cols))
	for _, c := range cols {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

// applyWorkspaces adds the workspace table and a nullable workspace_id to every
// business table. Existing rows keep workspace_id NULL and stay unscoped.
func applyWorkspaces(tx *gorm.DB) error {
	latest := LatestSchema()
	ws, _ := latest.Table(TableWorkspaces)
	if _, err := ensureTable(tx, ws); err != nil {
		return err
	}
	for _, table := range append(append([]string{}, ScopedTables...), TableAuditLog) {
		if _, err := ensureColumn(tx, table, workspaceColumn); err != nil {
			return err
		}
	}
	for _, table := range ScopedTables {
		if _, err := ensureIndex(tx, workspaceIndex(table)); err != nil {
			return err
		}
	}
	for _, idx := range []IndexSpec{
		{Name: "idx_operation_logs_workspace", Table: TableAuditLog, Columns: "workspace_id"},
		{Name: "idx_workspaces_owner", Table: TableWorkspaces, Columns: "owner_id"},
	} {
		if _, err := ensureIndex(tx, idx); err != nil {
			return err
		}
	}
	return nil
}

// applyScopedNames drops the per-user UNIQUE constraint of the name-keyed
// tables in favour of a (user, workspace, name) index. Rows with no
// workspace are copied like any other.
func applyScopedNames(tx *gorm.DB) error {
	latest := LatestSchema()
	for _, table := range NamedTables {
		inline, err := hasAutoIndex(tx, table)
		if err != nil {
			return err
		}
		if inline {
			spec, _ := latest.Table(table)
			if err := rebuildTable(tx, spec); err != nil {
				return err
			}
		}
		for _, idx := range []IndexSpec{workspaceIndex(table), nameIndex(table)} {
			if _, err := ensureIndex(tx, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyCoverOperation widens the operation_type CHECK. SQLite cannot alter a
// constraint in place, so the table is rebuilt when the old CHECK is present.
func applyCoverOperation(tx *gorm.DB) error {
	stmt, err := tableSQL(tx, TableAuditLog)
	if err != nil {
		return err
	}
	if stmt == "" {
		return fmt.Errorf("table %s is missing", TableAuditLog)
	}
	if !strings.Contains(stmt, "'COVER'") {
		spec, _ := LatestSchema().Table(TableAuditLog)
		if err := rebuildTable(tx, spec); err != nil {
			return err
		}
	}
	latest := LatestSchema()
	for _, idx := range latest.IndexesOn(TableAuditLog) {
		if _, err := ensureIndex(tx, idx); err != nil {
			return err
		}
	}
	return nil
}

func applyWorkspaceMembers(tx *gorm.DB) error {
	if _, err := ensureTable(tx, membersTable()); err != nil {
		return err
	}
	for _, idx := range memberIndexes() {
		if _, err := ensureIndex(tx, idx); err != nil {
			return err
		}
	}
	return nil
}
