package persistence

import (
	"context"
	"time"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence/scope"
	"gorm.io/gorm"
)

// AuditRepository appends to and reads the operation log. It exposes no
// update or delete.
type AuditRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditRepository creates an AuditRepository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends one entry describing rec
func (r *AuditRepository) Record(ctx context.Context, rec audit.Record) (*audit.Entry, error) {
	entry, err := audit.NewEntry(rec, r.now())
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, translate(err, "audit entry")
	}
	return entry, nil
}

// List returns a page of entries the selector admits, newest first
func (r *AuditRepository) List(ctx context.Context, sel shared.Selector, q audit.Query) (shared.Paginated[audit.Entry], error) {
	base := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&audit.Entry{}).Scopes(scope.Apply(sel))
		if q.Operation != "" {
			query = query.Where("operation_type = ?", q.Operation)
		}
		if q.Entity != "" {
			query = query.Where("entity_type = ?", q.Entity)
		}
		if !q.From.IsZero() {
			query = query.Where("operation_time >= ?", q.From.UTC())
		}
		if !q.To.IsZero() {
			query = query.Where("operation_time <= ?", q.To.UTC())
		}
		if q.Search != "" {
			keyword := "%" + q.Search + "%"
			query = query.Where("entity_name LIKE ? OR note LIKE ?", keyword, keyword)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return shared.Paginated[audit.Entry]{}, translate(err, "audit entry")
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	entries := make([]audit.Entry, 0)
	if err := base().
		Order("operation_time DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&entries).Error; err != nil {
		return shared.Paginated[audit.Entry]{}, translate(err, "audit entry")
	}
	return shared.NewPaginated(entries, total, page, size), nil
}
