package migration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// tableColumns lists a table's columns in declaration order.
// Migrator().HasColumn is not used: the sqlite driver matches it with LIKE.
func tableColumns(tx *gorm.DB, table string) ([]string, error) {
	var names []string
	if err := tx.Raw("SELECT name FROM pragma_table_info(?) ORDER BY cid", table).Scan(&names).Error; err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return names, nil
}

func hasTable(tx *gorm.DB, table string) (bool, error) {
	var n int64
	err := tx.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n).Error
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", table, err)
	}
	return n > 0, nil
}

func hasColumn(tx *gorm.DB, table, column string) (bool, error) {
	cols, err := tableColumns(tx, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if strings.EqualFold(c, column) {
			return true, nil
		}
	}
	return false, nil
}

func hasIndex(tx *gorm.DB, name string) (bool, error) {
	var n int64
	err := tx.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = ?", name).Scan(&n).Error
	if err != nil {
		return false, fmt.Errorf("look up index %s: %w", name, err)
	}
	return n > 0, nil
}

// tableSQL returns the CREATE statement SQLite stored for table
func tableSQL(tx *gorm.DB, table string) (string, error) {
	var stmt string
	err := tx.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&stmt).Error
	if err != nil {
		return "", fmt.Errorf("read definition of %s: %w", table, err)
	}
	return stmt, nil
}

// hasAutoIndex reports whether table still carries an inline UNIQUE constraint
func hasAutoIndex(tx *gorm.DB, table string) (bool, error) {
	var n int64
	err := tx.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name LIKE 'sqlite_autoindex_%'", table).
		Scan(&n).Error
	if err != nil {
		return false, fmt.Errorf("look up constraints of %s: %w", table, err)
	}
	return n > 0, nil
}

// constraintDrift compares the stored definition of an existing table with
// spec and describes the first constraint that differs, "" when none does.
func constraintDrift(tx *gorm.DB, spec TableSpec) (string, error) {
	stmt, err := tableSQL(tx, spec.Name)
	if err != nil {
		return "", err
	}
	for _, check := range spec.Checks() {
		if !strings.Contains(stmt, check) {
			return "missing " + check, nil
		}
	}
	if spec.DeclaresUnique() {
		return "", nil
	}
	inline, err := hasAutoIndex(tx, spec.Name)
	if err != nil || !inline {
		return "", err
	}
	return "inline UNIQUE", nil
}

// ensureColumn adds column to table when it is missing and reports whether it did
func ensureColumn(tx *gorm.DB, table string, col ColumnSpec) (bool, error) {
	ok, err := hasColumn(tx, table, col.Name)
	if err != nil || ok {
		return false, err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), quoteIdent(col.Name), col.Def)
	if err := tx.Exec(stmt).Error; err != nil {
		return false, fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
	}
	return true, nil
}

// ensureTable creates the table when missing and reports whether it did
func ensureTable(tx *gorm.DB, spec TableSpec) (bool, error) {
	ok, err := hasTable(tx, spec.Name)
	if err != nil || ok {
		return false, err
	}
	if err := tx.Exec(spec.CreateSQL(spec.Name)).Error; err != nil {
		return false, fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return true, nil
}

// ensureIndex creates the index when missing and reports whether it did
func ensureIndex(tx *gorm.DB, spec IndexSpec) (bool, error) {
	ok, err := hasIndex(tx, spec.Name)
	if err != nil || ok {
		return false, err
	}
	if err := tx.Exec(spec.CreateSQL()).Error; err != nil {
		return false, fmt.Errorf("create index %s: %w", spec.Name, err)
	}
	return true, nil
}

// rebuildTable recreates table from spec and copies every row across. Only
// columns present on both sides are copied; indexes on the old table are
// dropped with it and must be recreated by the caller.
func rebuildTable(tx *gorm.DB, spec TableSpec) error {
	tmp := spec.Name + "_rebuild"
	if err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(tmp)).Error; err != nil {
		return fmt.Errorf("drop leftover %s: %w", tmp, err)
	}
	if err := tx.Exec(spec.CreateSQL(tmp)).Error; err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	oldCols, err := tableColumns(tx, spec.Name)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(oldCols))
	for _, c := range oldCols {
		present[strings.ToLower(c)] = true
	}
	var common []string
	for _, c := range spec.ColumnNames() {
		if present[strings.ToLower(c)] {
			common = append(common, quoteIdent(c))
		}
	}
	cols := strings.Join(common, ", ")

	steps := []string{
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", quoteIdent(tmp), cols, cols, quoteIdent(spec.Name)),
		"DROP TABLE " + quoteIdent(spec.Name),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tmp), quoteIdent(spec.Name)),
	}
	for _, stmt := range steps {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("rebuild %s: %w", spec.Name, err)
		}
	}
	return nil
}

// Object is one row of sqlite_master
type Object struct {
	Type  string `gorm:"column:type"`
	Name  string `gorm:"column:name"`
	Table string `gorm:"column:tbl_name"`
	SQL   string `gorm:"column:sql"`
}

// Dump lists the schema objects of the store, internal sqlite tables excluded
func Dump(db *gorm.DB) ([]Object, error) {
	var objs []Object
	err := db.Raw("SELECT type, name, tbl_name, IFNULL(sql, '') AS sql FROM sqlite_master " +
		"WHERE name NOT LIKE 'sqlite_%' ORDER BY type, name").Scan(&objs).Error
	if err != nil {
		return nil, fmt.Errorf("dump schema: %w", err)
	}
	return objs, nil
}
