package persistence

import (
	"context"
	"sync"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/infrastructure/config"
	"github.com/erp/ledgerstore/internal/infrastructure/migration"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store is the handle on one store file. It is built by the composition root
// and opened once; every caller of Open shares the outcome of the first.
type Store struct {
	cfg        config.DatabaseConfig
	logger     *zap.Logger
	engine     *migration.Engine
	dialector  gorm.Dialector
	onMismatch migration.MismatchFunc

	once   sync.Once
	db     *gorm.DB
	repos  *Repositories
	report *migration.Report
	err    error
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithDialector replaces the SQLite file dialector
func WithDialector(d gorm.Dialector) StoreOption {
	return func(s *Store) {
		s.dialector = d
	}
}

// WithEngine replaces the migration engine
func WithEngine(e *migration.Engine) StoreOption {
	return func(s *Store) {
		s.engine = e
	}
}

// WithMismatchFunc decides what happens when the store was written by a
// newer release
func WithMismatchFunc(fn migration.MismatchFunc) StoreOption {
	return func(s *Store) {
		s.onMismatch = fn
	}
}

// NewStore creates an unopened store
func NewStore(cfg config.DatabaseConfig, logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{cfg: cfg, logger: logger}
	if cfg.AllowNewerSchema {
		s.onMismatch = migration.AllowNewer
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = migration.NewEngine(migration.DefaultRegistry(), migration.WithLogger(logger))
	}
	if s.dialector == nil {
		s.dialector = sqlite.Open(s.cfg.DSN())
	}
	return s
}

// Open connects and migrates the store on first call. Concurrent and later
// callers block until the first finishes and receive the same result. The
// migration is detached from cancellation of the first caller's ctx.
func (s *Store) Open(ctx context.Context) (*Repositories, error) {
	s.once.Do(func() {
		s.repos, s.err = s.open(context.WithoutCancel(ctx))
	})
	return s.repos, s.err
}

func (s *Store) open(ctx context.Context) (*Repositories, error) {
	db, err := Connect(s.dialector, &s.cfg, s.logger)
	if err != nil {
		return nil, err
	}

	report, err := s.engine.Open(ctx, db, s.onMismatch)
	if err != nil {
		_ = Disconnect(db)
		s.logger.Error("store open failed", zap.String("path", s.cfg.Path), zap.Error(err))
		return nil, err
	}

	s.db = db
	s.report = report
	s.logger.Info("store opened",
		zap.String("path", s.cfg.Path),
		zap.Int("from_version", report.From),
		zap.Int("to_version", report.To),
		zap.Ints("applied", report.Applied),
		zap.Strings("healed", report.Healed),
	)
	return NewRepositories(db, s.logger, s.engine.CurrentVersion()), nil
}

// Report returns what the open did, nil before a successful Open
func (s *Store) Report() *migration.Report {
	if s.repos == nil {
		return nil
	}
	return s.report
}

// DB returns the open connection
func (s *Store) DB() (*gorm.DB, error) {
	if s.db == nil {
		return nil, shared.ErrStoreNotOpen
	}
	return s.db, nil
}

// Engine returns the migration engine the store opens with
func (s *Store) Engine() *migration.Engine {
	return s.engine
}

// Close releases the connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return Disconnect(s.db)
}
