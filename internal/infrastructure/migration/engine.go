package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MismatchFunc decides what happens when the store records a version newer
// than this binary knows. Returning nil continues without migrating.
type MismatchFunc func(recorded, current int) error

// AllowNewer is a MismatchFunc that accepts stores written by newer releases
func AllowNewer(recorded, current int) error {
	return nil
}

// Report summarizes one Open
type Report struct {
	From    int
	To      int
	Applied []int
	Healed  []string
}

// Engine brings a store up to the registry's current version
type Engine struct {
	registry *Registry
	schema   Schema
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSchema overrides the layout the self-heal pass enforces
func WithSchema(s Schema) Option {
	return func(e *Engine) {
		e.schema = s
	}
}

// NewEngine creates an engine for registry
func NewEngine(registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		schema:   LatestSchema(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("migration")
	return e
}

// CurrentVersion is the registry's current version
func (e *Engine) CurrentVersion() int {
	return e.registry.CurrentVersion()
}

// Open applies every pending step, one transaction each, then runs the
// self-heal pass. Any failure is a MigrationFailure and the store must not be used.
func (e *Engine) Open(ctx context.Context, db *gorm.DB, onMismatch MismatchFunc) (*Report, error) {
	db = db.WithContext(ctx)
	if err := ensureVersionTable(db); err != nil {
		return nil, migrationFailed("prepare version table", err)
	}
	recorded, err := readVersion(db)
	if err != nil {
		return nil, migrationFailed("read schema version", err)
	}

	current := e.registry.CurrentVersion()
	report := &Report{From: recorded, To: recorded}

	if recorded > current {
		e.logger.Warn("Store schema is newer than this release",
			zap.Int("recorded", recorded), zap.Int("current", current))
		if onMismatch == nil {
			return nil, migrationFailed(fmt.Sprintf("store is at version %d, newest known is %d", recorded, current), nil)
		}
		if err := onMismatch(recorded, current); err != nil {
			return nil, migrationFailed("version mismatch rejected", err)
		}
		return report, nil
	}

	pending := e.registry.PendingSteps(recorded)
	if len(pending) == 0 {
		e.logger.Debug("No migrations to apply", zap.Int("version", recorded))
	} else {
		e.logger.Info("Running migrations", zap.Int("from", recorded), zap.Int("to", current))
	}
	for _, step := range pending {
		if err := ctx.Err(); err != nil {
			return nil, migrationFailed("migration cancelled", err)
		}
		started := e.now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step.Apply(tx); err != nil {
				return err
			}
			return writeVersion(tx, step.Version, e.now())
		})
		if err != nil {
			e.logger.Error("Migration step failed",
				zap.Int("version", step.Version), zap.String("step", step.Name), zap.Error(err))
			return nil, migrationFailed(fmt.Sprintf("apply step %d (%s)", step.Version, step.Name), err)
		}
		report.To = step.Version
		report.Applied = append(report.Applied, step.Version)
		e.logger.Info("Applied migration",
			zap.Int("version", step.Version),
			zap.String("step", step.Name),
			zap.Duration("elapsed", e.now().Sub(started)))
	}

	healed, err := e.Heal(ctx, db)
	if err != nil {
		return nil, err
	}
	report.Healed = healed
	return report, nil
}

// Heal creates any table, column or index of the latest schema that is
// missing, whatever version the store records. Tables whose stored
// definition lacks a CHECK of the latest schema, or still carries an inline
// UNIQUE the latest schema dropped, are rebuilt with their rows. It returns
// what it repaired.
func (e *Engine) Heal(ctx context.Context, db *gorm.DB) ([]string, error) {
	var healed []string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range e.schema.Tables {
			created, err := ensureTable(tx, t)
			if err != nil {
				return err
			}
			if created {
				healed = append(healed, "table "+t.Name)
				e.logger.Warn("Self-heal created missing table", zap.String("table", t.Name))
				continue
			}
			drift, err := constraintDrift(tx, t)
			if err != nil {
				return err
			}
			if drift != "" {
				if err := rebuildTable(tx, t); err != nil {
					return err
				}
				healed = append(healed, "constraints "+t.Name)
				e.logger.Warn("Self-heal rebuilt table with stale constraints",
					zap.String("table", t.Name), zap.String("drift", drift))
			}
			for _, c := range t.Columns {
				added, err := ensureColumn(tx, t.Name, c)
				if err != nil {
					return err
				}
				if added {
					healed = append(healed, "column "+t.Name+"."+c.Name)
					e.logger.Warn("Self-heal added missing column",
						zap.String("table", t.Name), zap.String("column", c.Name))
				}
			}
		}
		for _, idx := range e.schema.Indexes {
			created, err := ensureIndex(tx, idx)
			if err != nil {
				return err
			}
			if created {
				healed = append(healed, "index "+idx.Name)
				e.logger.Warn("Self-heal created missing index",
					zap.String("table", idx.Table), zap.String("index", idx.Name))
			}
		}
		return nil
	})
	if err != nil {
		return nil, migrationFailed("self-heal", err)
	}
	return healed, nil
}

// RecordedVersion returns the version stored in db, 0 for a fresh store
func (e *Engine) RecordedVersion(ctx context.Context, db *gorm.DB) (int, error) {
	db = db.WithContext(ctx)
	ok, err := hasTable(db, VersionTable)
	if err != nil || !ok {
		return 0, err
	}
	return readVersion(db)
}

func ensureVersionTable(db *gorm.DB) error {
	return db.Exec(`CREATE TABLE IF NOT EXISTS ` + VersionTable + ` (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
)`).Error
}

func readVersion(db *gorm.DB) (int, error) {
	var versions []int
	if err := db.Raw("SELECT version FROM " + VersionTable + " WHERE id = 1").Scan(&versions).Error; err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[0], nil
}

func writeVersion(tx *gorm.DB, version int, at time.Time) error {
	return tx.Exec(`INSERT INTO `+VersionTable+` (id, version, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`, version, at).Error
}

func migrationFailed(msg string, err error) error {
	if err == nil {
		return shared.NewDomainError(shared.CodeMigrationFailed, msg)
	}
	return shared.WrapDomainError(shared.CodeMigrationFailed, msg, err)
}
