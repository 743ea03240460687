package persistence

import (
	"fmt"

	"github.com/erp/ledgerstore/internal/infrastructure/config"
	"github.com/erp/ledgerstore/internal/infrastructure/logger"
	"github.com/erp/ledgerstore/internal/infrastructure/migration"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence/scope"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// GuardedTables are the tables whose statements must carry a workspace predicate
func GuardedTables() []string {
	return append(append([]string{}, migration.ScopedTables...), migration.TableAuditLog)
}

// OpenFile connects to the store file named by cfg without migrating it
func OpenFile(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	return Connect(sqlite.Open(cfg.DSN()), cfg, log)
}

// Connect opens a gorm handle over dialector with the pool sized from cfg and
// the scope guard installed. Driver errors are translated into gorm's
// sentinels so duplicate names surface as ErrDuplicatedKey.
func Connect(dialector gorm.Dialector, cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewSQLLogger(log, cfg.LogLevel, cfg.SlowThreshold),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, storeIO("open store", err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, storeIO("open store", err)
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := scope.RegisterGuard(db, GuardedTables()...); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("register scope guard: %w", err)
	}
	return db, nil
}

// Disconnect closes the pool behind db
func Disconnect(db *gorm.DB) error {
	pool, err := db.DB()
	if err != nil {
		return storeIO("close store", err)
	}
	if err := pool.Close(); err != nil {
		return storeIO("close store", err)
	}
	return nil
}
