// Package ledger implements the business operations on top of the
// workspace-scoped store: audited CRUD, stock-moving records guarded by the
// product version, and workspace lifecycle.
package ledger

import (
	"context"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/infrastructure/logger"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// Session carries who is acting and which rows they may see
type Session struct {
	Selector shared.Selector
	Actor    audit.Actor
}

// NewSession creates a session for actor in one workspace, legacy rows included
func NewSession(workspaceID int64, actor audit.Actor) Session {
	return Session{Selector: shared.Workspace(workspaceID), Actor: actor}
}

func (s Session) validate() error {
	return s.Selector.Validate()
}

// Service handles ledger business operations. Every mutation commits
// together with its audit entry.
type Service struct {
	repos  *persistence.Repositories
	logger *zap.Logger
}

// NewService creates a new Service
func NewService(repos *persistence.Repositories, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repos: repos, logger: logger}
}

// History lists the audit entries the session may see
func (s *Service) History(ctx context.Context, sess Session, q audit.Query) (shared.Paginated[audit.Entry], error) {
	if err := sess.validate(); err != nil {
		return shared.Paginated[audit.Entry]{}, err
	}
	return s.repos.Audit.List(tag(ctx, sess, "history"), sess.Selector, q)
}

func (s *Service) log(sess Session, op string) *zap.Logger {
	fields := append(tags(sess, op).Fields(), zap.Stringer("selector", sess.Selector))
	return s.logger.With(fields...)
}

// tag marks ctx so statement traces carry the workspace and operation
func tag(ctx context.Context, sess Session, op string) context.Context {
	return logger.Tag(ctx, tags(sess, op))
}

func tags(sess Session, op string) logger.Tags {
	return logger.Tags{Operation: op, WorkspaceID: sess.Selector.WorkspaceRef(), User: sess.Actor.Username}
}

// record appends one audit entry inside tx
func record(ctx context.Context, tx *persistence.Repositories, sess Session, op audit.OperationKind, kind audit.EntityKind, e shared.Scoped, name string, before, after any) error {
	_, err := tx.Audit.Record(ctx, audit.Record{
		Operation:   op,
		Entity:      kind,
		EntityID:    e.GetID(),
		EntityName:  name,
		WorkspaceID: e.Workspace(),
		Old:         audit.StateOf(before),
		New:         audit.StateOf(after),
		Actor:       sess.Actor,
	})
	return err
}
