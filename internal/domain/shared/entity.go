package shared

import "time"

// BaseEntity holds the columns every table row carries
type BaseEntity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// GetID returns the entity identity
func (e *BaseEntity) GetID() int64 {
	return e.ID
}

// ScopedEntity is a BaseEntity owned by a user and partitioned by workspace.
// A nil WorkspaceID marks a row that predates workspace support.
type ScopedEntity struct {
	BaseEntity
	UserID      int64  `gorm:"column:user_id;not null" json:"user_id"`
	WorkspaceID *int64 `gorm:"column:workspace_id;index" json:"workspace_id"`
}

// AssignScope stamps the owning user and selector workspace on the entity
func (e *ScopedEntity) AssignScope(userID int64, sel Selector) {
	e.UserID = userID
	e.WorkspaceID = sel.WorkspaceRef()
}

// Owner returns the owning user
func (e *ScopedEntity) Owner() int64 {
	return e.UserID
}

// Workspace returns the owning workspace, nil for legacy rows
func (e *ScopedEntity) Workspace() *int64 {
	return e.WorkspaceID
}

// IsLegacy reports whether the row belongs to no workspace
func (e *ScopedEntity) IsLegacy() bool {
	return e.WorkspaceID == nil
}

// Scoped is implemented by every workspace-partitioned entity
type Scoped interface {
	AssignScope(userID int64, sel Selector)
	Owner() int64
	Workspace() *int64
	GetID() int64
	TableName() string
}
