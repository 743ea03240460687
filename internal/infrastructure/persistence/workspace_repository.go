package persistence

import (
	"context"
	"fmt"

	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/finance"
	"github.com/erp/ledgerstore/internal/domain/partner"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence/scope"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type tabler interface {
	TableName() string
}

// scopedModels lists one model per partitioned table, dependents first
func scopedModels() []tabler {
	return []tabler{
		&finance.Remittance{},
		&finance.Income{},
		&trade.Return{},
		&trade.Sale{},
		&trade.Purchase{},
		&catalog.Product{},
		&partner.Employee{},
		&partner.Customer{},
		&partner.Supplier{},
	}
}

// WorkspaceRepository stores workspaces. Workspaces are not themselves
// partitioned, so no selector applies.
type WorkspaceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWorkspaceRepository creates a WorkspaceRepository
func NewWorkspaceRepository(db *gorm.DB, logger *zap.Logger) *WorkspaceRepository {
	return &WorkspaceRepository{db: db, logger: logger}
}

// Create stores a new workspace
func (r *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace) error {
	ws.Name = shared.NormalizeName(ws.Name)
	if err := ws.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(ws).Error; err != nil {
		return translate(err, "workspace")
	}
	return nil
}

// FindByID finds a workspace by its ID
func (r *WorkspaceRepository) FindByID(ctx context.Context, id int64) (*workspace.Workspace, error) {
	var ws workspace.Workspace
	if err := r.db.WithContext(ctx).First(&ws, id).Error; err != nil {
		return nil, translate(err, "workspace")
	}
	return &ws, nil
}

// FindAccessible lists the workspaces userID owns or is a member of. A
// membership only counts while its workspace is shared.
func (r *WorkspaceRepository) FindAccessible(ctx context.Context, userID int64, filter shared.Filter) ([]workspace.Workspace, error) {
	member := r.db.Model(&workspace.Member{}).Select("workspace_id").Where("user_id = ?", userID)
	visible := r.db.Where("owner_id = ?", userID).Or("is_shared = ? AND id IN (?)", true, member)
	query := r.db.WithContext(ctx).Model(&workspace.Workspace{}).Where(visible)
	if filter.Search != "" {
		keyword := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", keyword, keyword)
	}

	query = ordered(query, workspaceOrder, filter)
	if !filter.Unpaged() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	workspaces := make([]workspace.Workspace, 0)
	if err := query.Find(&workspaces).Error; err != nil {
		return nil, translate(err, "workspace")
	}
	return workspaces, nil
}

// Update changes the editable workspace fields
func (r *WorkspaceRepository) Update(ctx context.Context, id int64, patch map[string]any) (*workspace.Workspace, error) {
	allowed := map[string]bool{"name": true, "description": true, "storage_type": true, "is_shared": true}
	clean := make(map[string]any, len(patch))
	for k, v := range patch {
		if !allowed[k] {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "workspace field cannot be updated: "+k)
		}
		if s, ok := v.(string); ok && k == "name" {
			v = shared.NormalizeName(s)
		}
		clean[k] = v
	}

	var out workspace.Workspace
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur workspace.Workspace
		if err := tx.First(&cur, id).Error; err != nil {
			return translate(err, "workspace")
		}
		if len(clean) > 0 {
			if err := tx.Model(&cur).Updates(clean).Error; err != nil {
				return translate(err, "workspace")
			}
		}
		if err := tx.First(&out, id).Error; err != nil {
			return translate(err, "workspace")
		}
		return out.Validate()
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the workspace, its memberships and every row partitioned
// under it in one transaction. It returns the number of rows removed per
// table. Audit entries are kept.
func (r *WorkspaceRepository) Delete(ctx context.Context, id int64) (map[string]int64, error) {
	removed := make(map[string]int64)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ws workspace.Workspace
		if err := tx.First(&ws, id).Error; err != nil {
			return translate(err, "workspace")
		}
		n, err := purgeWorkspace(tx, id)
		if err != nil {
			return err
		}
		for k, v := range n {
			removed[k] = v
		}
		members := tx.Where("workspace_id = ?", id).Delete(&workspace.Member{})
		if members.Error != nil {
			return translate(members.Error, "workspace member")
		}
		removed[workspace.Member{}.TableName()] = members.RowsAffected
		if err := tx.Delete(&workspace.Workspace{}, id).Error; err != nil {
			return translate(err, "workspace")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("workspace deleted",
		zap.Int64("workspace_id", id),
		zap.Any("removed", removed),
	)
	return removed, nil
}

// purgeWorkspace deletes every partitioned row of one workspace. Legacy rows
// with no workspace are never touched.
func purgeWorkspace(tx *gorm.DB, workspaceID int64) (map[string]int64, error) {
	removed := make(map[string]int64)
	for _, m := range scopedModels() {
		result := tx.Scopes(scope.Workspace(workspaceID)).Delete(m)
		if result.Error != nil {
			return nil, translate(result.Error, fmt.Sprintf("purge %s", m.TableName()))
		}
		removed[m.TableName()] = result.RowsAffected
	}
	return removed, nil
}
