package migration

import (
	"fmt"
	"strings"
)

// VersionTable is the reserved table holding the recorded schema version
const VersionTable = "schema_version"

// ColumnSpec is a column as it can be appended with ALTER TABLE ADD COLUMN
type ColumnSpec struct {
	Name string
	// Def is the column definition without the name; it must be valid for
	// ADD COLUMN, so defaults are constants and NOT NULL implies a default.
	Def string
}

// TableSpec describes one table of the latest schema
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	// Constraints are table-level clauses appended after the columns
	Constraints []string
	// Create holds column definitions used when the table is built from
	// scratch; it may be stricter than the ADD COLUMN forms in Columns.
	Create map[string]string
}

// CreateSQL renders the CREATE TABLE statement for the spec under name
func (t TableSpec) CreateSQL(name string) string {
	defs := t.columnDefs()
	parts := make([]string, 0, len(defs))
	for i, c := range t.Columns {
		parts = append(parts, c.Name+" "+defs[i])
	}
	parts = append(parts, defs[len(t.Columns):]...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(name), strings.Join(parts, ",\n\t"))
}

func (t TableSpec) columnDefs() []string {
	defs := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		def := c.Def
		if full, ok := t.Create[c.Name]; ok {
			def = full
		}
		defs = append(defs, def)
	}
	return append(defs, t.Constraints...)
}

// Checks returns the CHECK clauses a freshly created table carries
func (t TableSpec) Checks() []string {
	var out []string
	for _, def := range t.columnDefs() {
		if i := strings.Index(def, "CHECK ("); i >= 0 {
			out = append(out, def[i:])
		}
	}
	return out
}

// DeclaresUnique reports whether the table itself carries a UNIQUE constraint
func (t TableSpec) DeclaresUnique() bool {
	for _, def := range t.columnDefs() {
		if strings.Contains(strings.ToUpper(def), "UNIQUE") {
			return true
		}
	}
	return false
}

// ColumnNames lists the spec's columns in order
func (t TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IndexSpec describes one index of the latest schema
type IndexSpec struct {
	Name    string
	Table   string
	Unique  bool
	Columns string // column list or expressions, as written inside the parentheses
}

// CreateSQL renders the CREATE INDEX statement
func (i IndexSpec) CreateSQL() string {
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)", unique, quoteIdent(i.Name), quoteIdent(i.Table), i.Columns)
}

// Schema is the full latest layout the self-heal pass enforces
type Schema struct {
	Tables  []TableSpec
	Indexes []IndexSpec
}

// Table returns the spec for name
func (s Schema) Table(name string) (TableSpec, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

// IndexesOn returns the index specs defined on table
func (s Schema) IndexesOn(table string) []IndexSpec {
	var out []IndexSpec
	for _, i := range s.Indexes {
		if i.Table == table {
			out = append(out, i)
		}
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Business tables carry user_id and workspace_id
const (
	TableProducts   = "products"
	TableSuppliers  = "suppliers"
	TableCustomers  = "customers"
	TableEmployees  = "employees"
	TablePurchases  = "purchases"
	TableSales      = "sales"
	TableReturns    = "returns"
	TableIncome     = "income"
	TableRemittance = "remittance"
	TableWorkspaces = "workspaces"
	TableAuditLog   = "operation_logs"
	TableMembers    = "workspace_members"
)

// NamedTables hold name-keyed business entities
var NamedTables = []string{TableProducts, TableSuppliers, TableCustomers, TableEmployees}

// ScopedTables are every table partitioned by workspace_id
var ScopedTables = []string{
	TableProducts, TableSuppliers, TableCustomers, TableEmployees,
	TablePurchases, TableSales, TableReturns, TableIncome, TableRemittance,
}

const (
	unitCheck          = "CHECK (unit IN ('斤', '公斤', '袋'))"
	paymentMethodCheck = "CHECK (payment_method IS NULL OR payment_method IN ('', '现金', '微信转账', '银行卡'))"
	storageKindCheck   = "CHECK (storage_type IN ('local', 'server'))"
	roleCheck          = "CHECK (role IN ('owner', 'admin', 'editor', 'viewer'))"
)

func operationTypeCheck(kinds ...string) string {
	quoted := make([]string, len(kinds))
	for i, k := range kinds {
		quoted[i] = "'" + k + "'"
	}
	return "CHECK (operation_type IN (" + strings.Join(quoted, ", ") + "))"
}

var (
	idColumn        = ColumnSpec{"id", "INTEGER PRIMARY KEY AUTOINCREMENT"}
	userColumn      = ColumnSpec{"user_id", "INTEGER NOT NULL DEFAULT 0"}
	workspaceColumn = ColumnSpec{"workspace_id", "INTEGER"}
	createdColumn   = ColumnSpec{"created_at", "DATETIME"}
	updatedColumn   = ColumnSpec{"updated_at", "DATETIME"}
	noteColumn      = ColumnSpec{"note", "TEXT"}

	timestampCreate = map[string]string{
		"created_at": "DATETIME DEFAULT CURRENT_TIMESTAMP",
		"updated_at": "DATETIME DEFAULT CURRENT_TIMESTAMP",
	}
)

func withTimestamps(extra map[string]string) map[string]string {
	out := map[string]string{"user_id": "INTEGER NOT NULL"}
	for k, v := range timestampCreate {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func partyTable(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"name", "TEXT NOT NULL DEFAULT ''"},
			noteColumn, createdColumn, updatedColumn,
		},
		Create: withTimestamps(map[string]string{"name": "TEXT NOT NULL"}),
	}
}

// LatestSchema returns the layout of the newest schema version
func LatestSchema() Schema {
	products := TableSpec{
		Name: TableProducts,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"name", "TEXT NOT NULL DEFAULT ''"},
			{"description", "TEXT"},
			{"stock", "REAL NOT NULL DEFAULT 0"},
			{"unit", "TEXT NOT NULL DEFAULT '公斤' " + unitCheck},
			{"supplier_id", "INTEGER"},
			{"version", "INTEGER NOT NULL DEFAULT 1"},
			createdColumn, updatedColumn,
		},
		Create: withTimestamps(map[string]string{
			"name": "TEXT NOT NULL",
			"unit": "TEXT NOT NULL " + unitCheck,
		}),
	}

	purchases := TableSpec{
		Name: TablePurchases,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"product_name", "TEXT NOT NULL DEFAULT ''"},
			{"quantity", "REAL NOT NULL DEFAULT 0"},
			{"purchase_date", "DATE"},
			{"supplier_id", "INTEGER"},
			{"total_purchase_price", "REAL"},
			noteColumn, createdColumn, updatedColumn,
		},
		Create: withTimestamps(map[string]string{"product_name": "TEXT NOT NULL", "quantity": "REAL NOT NULL"}),
	}
	sales := TableSpec{
		Name: TableSales,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"product_name", "TEXT NOT NULL DEFAULT ''"},
			{"quantity", "REAL NOT NULL DEFAULT 0"},
			{"customer_id", "INTEGER"},
			{"sale_date", "DATE"},
			{"total_sale_price", "REAL"},
			noteColumn, createdColumn, updatedColumn,
		},
		Create: withTimestamps(map[string]string{"product_name": "TEXT NOT NULL", "quantity": "REAL NOT NULL"}),
	}
	returns := TableSpec{
		Name: TableReturns,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"product_name", "TEXT NOT NULL DEFAULT ''"},
			{"quantity", "REAL NOT NULL DEFAULT 0"},
			{"customer_id", "INTEGER"},
			{"return_date", "DATE"},
			{"total_return_price", "REAL"},
			noteColumn, createdColumn, updatedColumn,
		},
		Create: withTimestamps(map[string]string{"product_name": "TEXT NOT NULL", "quantity": "REAL NOT NULL"}),
	}
	income := TableSpec{
		Name: TableIncome,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"income_date", "DATE"},
			{"customer_id", "INTEGER"},
			{"amount", "REAL NOT NULL DEFAULT 0"},
			{"discount", "REAL NOT NULL DEFAULT 0"},
			{"employee_id", "INTEGER"},
			{"payment_method", "TEXT " + paymentMethodCheck},
			noteColumn, createdColumn, updatedColumn,
		},
		Create: withTimestamps(nil),
	}
	remittance := TableSpec{
		Name: TableRemittance,
		Columns: []ColumnSpec{
			idColumn, userColumn, workspaceColumn,
			{"remittance_date", "DATE"},
			{"supplier_id", "INTEGER"},
			{"amount", "REAL NOT NULL DEFAULT 0"},
			{"employee_id", "INTEGER"},
			{"payment_method", "TEXT " + paymentMethodCheck},
			noteColumn, createdColumn, updatedColumn,
		},
		Create: withTimestamps(nil),
	}
	workspaces := TableSpec{
		Name: TableWorkspaces,
		Columns: []ColumnSpec{
			idColumn,
			{"name", "TEXT NOT NULL DEFAULT ''"},
			{"description", "TEXT"},
			{"owner_id", "INTEGER NOT NULL DEFAULT 0"},
			{"storage_type", "TEXT NOT NULL DEFAULT 'local' " + storageKindCheck},
			{"is_shared", "BOOLEAN NOT NULL DEFAULT 0"},
			createdColumn, updatedColumn,
		},
		Create: map[string]string{
			"name":       "TEXT NOT NULL",
			"owner_id":   "INTEGER NOT NULL",
			"created_at": timestampCreate["created_at"],
			"updated_at": timestampCreate["updated_at"],
		},
	}

	tables := []TableSpec{
		products,
		partyTable(TableSuppliers),
		partyTable(TableCustomers),
		partyTable(TableEmployees),
		purchases, sales, returns, income, remittance,
		workspaces,
		auditLogTable(operationTypeCheck("CREATE", "UPDATE", "DELETE", "COVER")),
		membersTable(),
	}

	var indexes []IndexSpec
	for _, t := range ScopedTables {
		indexes = append(indexes, workspaceIndex(t))
	}
	for _, t := range NamedTables {
		indexes = append(indexes, nameIndex(t))
	}
	indexes = append(indexes, auditIndexes()...)
	indexes = append(indexes,
		IndexSpec{Name: "idx_operation_logs_workspace", Table: TableAuditLog, Columns: "workspace_id"},
		IndexSpec{Name: "idx_workspaces_owner", Table: TableWorkspaces, Columns: "owner_id"},
	)
	indexes = append(indexes, memberIndexes()...)

	return Schema{Tables: tables, Indexes: indexes}
}

func auditLogTable(check string) TableSpec {
	return TableSpec{
		Name: TableAuditLog,
		Columns: []ColumnSpec{
			idColumn, userColumn,
			{"username", "TEXT"},
			workspaceColumn,
			{"operation_type", "TEXT NOT NULL DEFAULT 'CREATE' " + check},
			{"entity_type", "TEXT NOT NULL DEFAULT ''"},
			{"entity_id", "INTEGER"},
			{"entity_name", "TEXT"},
			{"old_data", "TEXT"},
			{"new_data", "TEXT"},
			{"changes", "TEXT"},
			{"ip_address", "TEXT"},
			{"device_info", "TEXT"},
			{"operation_time", "DATETIME"},
			noteColumn,
		},
		Create: map[string]string{
			"user_id":        "INTEGER NOT NULL",
			"operation_type": "TEXT NOT NULL " + check,
			"entity_type":    "TEXT NOT NULL",
			"operation_time": "DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP",
		},
	}
}

func auditIndexes() []IndexSpec {
	return []IndexSpec{
		{Name: "idx_operation_logs_time", Table: TableAuditLog, Columns: "operation_time"},
		{Name: "idx_operation_logs_entity", Table: TableAuditLog, Columns: "entity_type, entity_id"},
		{Name: "idx_operation_logs_user", Table: TableAuditLog, Columns: "user_id"},
	}
}

func workspaceIndex(table string) IndexSpec {
	return IndexSpec{Name: "idx_" + table + "_workspace", Table: table, Columns: "workspace_id"}
}

// nameIndex enforces (owner, workspace, name) uniqueness; legacy rows with no
// workspace share the 0 bucket.
func nameIndex(table string) IndexSpec {
	return IndexSpec{
		Name:    "ux_" + table + "_owner_workspace_name",
		Table:   table,
		Unique:  true,
		Columns: "user_id, IFNULL(workspace_id, 0), name",
	}
}

func membersTable() TableSpec {
	return TableSpec{
		Name: TableMembers,
		Columns: []ColumnSpec{
			idColumn,
			{"workspace_id", "INTEGER NOT NULL DEFAULT 0"},
			{"user_id", "INTEGER NOT NULL DEFAULT 0"},
			{"role", "TEXT NOT NULL DEFAULT 'viewer' " + roleCheck},
			{"invited_by", "INTEGER"},
			{"joined_at", "DATETIME"},
		},
		Create: map[string]string{
			"workspace_id": "INTEGER NOT NULL",
			"user_id":      "INTEGER NOT NULL",
			"role":         "TEXT NOT NULL " + roleCheck,
			"joined_at":    "DATETIME DEFAULT CURRENT_TIMESTAMP",
		},
	}
}

// memberIndexes keep one membership per user and workspace
func memberIndexes() []IndexSpec {
	return []IndexSpec{
		{Name: "ux_workspace_members_workspace_user", Table: TableMembers, Unique: true, Columns: "workspace_id, user_id"},
		{Name: "idx_workspace_members_user", Table: TableMembers, Columns: "user_id"},
	}
}
