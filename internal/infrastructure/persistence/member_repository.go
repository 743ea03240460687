package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkspaceMemberRepository stores the roles granted to users other than a
// workspace's owner
type WorkspaceMemberRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWorkspaceMemberRepository creates a WorkspaceMemberRepository
func NewWorkspaceMemberRepository(db *gorm.DB, logger *zap.Logger) *WorkspaceMemberRepository {
	return &WorkspaceMemberRepository{db: db, logger: logger}
}

// Add stores a new membership. A user holds at most one role per workspace.
func (r *WorkspaceMemberRepository) Add(ctx context.Context, m *workspace.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	var n int64
	err := db.Model(&workspace.Member{}).
		Where("workspace_id = ? AND user_id = ?", m.WorkspaceID, m.UserID).
		Count(&n).Error
	if err != nil {
		return translate(err, "workspace member")
	}
	if n > 0 {
		return shared.NewDomainError(shared.CodeDuplicateName,
			fmt.Sprintf("user %d is already a member of workspace %d", m.UserID, m.WorkspaceID))
	}
	if err := db.Create(m).Error; err != nil {
		return translate(err, "workspace member")
	}
	r.logger.Info("workspace member added",
		zap.Int64("workspace_id", m.WorkspaceID),
		zap.Int64("user_id", m.UserID),
		zap.String("role", string(m.Role)),
	)
	return nil
}

// Find returns the membership of userID in workspaceID
func (r *WorkspaceMemberRepository) Find(ctx context.Context, workspaceID, userID int64) (*workspace.Member, error) {
	var m workspace.Member
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&m).Error
	if err != nil {
		return nil, translate(err, "workspace member")
	}
	return &m, nil
}

// RoleOf returns the stored role of userID in workspaceID, or false when the
// user is not a member
func (r *WorkspaceMemberRepository) RoleOf(ctx context.Context, workspaceID, userID int64) (workspace.Role, bool, error) {
	m, err := r.Find(ctx, workspaceID, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Role, true, nil
}

// List returns the members of a workspace in the order they joined
func (r *WorkspaceMemberRepository) List(ctx context.Context, workspaceID int64) ([]workspace.Member, error) {
	members := make([]workspace.Member, 0)
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("id").
		Find(&members).Error
	if err != nil {
		return nil, translate(err, "workspace member")
	}
	return members, nil
}

// WorkspaceIDs lists the workspaces userID is a member of
func (r *WorkspaceMemberRepository) WorkspaceIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&workspace.Member{}).
		Where("user_id = ?", userID).
		Order("workspace_id").
		Pluck("workspace_id", &ids).Error
	if err != nil {
		return nil, translate(err, "workspace member")
	}
	return ids, nil
}

// UpdateRole changes the role of an existing member
func (r *WorkspaceMemberRepository) UpdateRole(ctx context.Context, workspaceID, userID int64, role workspace.Role) (*workspace.Member, error) {
	var out *workspace.Member
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m workspace.Member
		if err := tx.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&m).Error; err != nil {
			return translate(err, "workspace member")
		}
		m.Role = role
		if err := m.Validate(); err != nil {
			return err
		}
		if err := tx.Model(&m).Update("role", role).Error; err != nil {
			return translate(err, "workspace member")
		}
		out = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes the membership of userID in workspaceID
func (r *WorkspaceMemberRepository) Remove(ctx context.Context, workspaceID, userID int64) error {
	result := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&workspace.Member{})
	if result.Error != nil {
		return translate(result.Error, "workspace member")
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeNotFound, "workspace member not found")
	}
	r.logger.Info("workspace member removed",
		zap.Int64("workspace_id", workspaceID),
		zap.Int64("user_id", userID),
	)
	return nil
}
