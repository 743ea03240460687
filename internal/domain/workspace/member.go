package workspace

import (
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
)

// Role is a user's standing in a workspace
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Permission names one kind of action on a workspace
type Permission string

const (
	PermRead           Permission = "read"
	PermCreate         Permission = "create"
	PermUpdate         Permission = "update"
	PermDelete         Permission = "delete"
	PermManageMembers  Permission = "manage_members"
	PermManageSettings Permission = "manage_settings"
)

var grants = map[Role]map[Permission]bool{
	RoleOwner: {
		PermRead: true, PermCreate: true, PermUpdate: true, PermDelete: true,
		PermManageMembers: true, PermManageSettings: true,
	},
	RoleAdmin: {
		PermRead: true, PermCreate: true, PermUpdate: true, PermDelete: true,
		PermManageMembers: true,
	},
	RoleEditor: {PermRead: true, PermCreate: true, PermUpdate: true},
	RoleViewer: {PermRead: true},
}

// Allows reports whether the role grants p
func (r Role) Allows(p Permission) bool {
	return grants[r][p]
}

// Member grants a user other than the owner a role in a workspace. The
// owner is never stored as a member.
type Member struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkspaceID int64     `gorm:"column:workspace_id;not null" json:"workspace_id" validate:"required"`
	UserID      int64     `gorm:"column:user_id;not null" json:"user_id" validate:"required"`
	Role        Role      `gorm:"column:role;not null" json:"role" validate:"required,oneof=admin editor viewer"`
	InvitedBy   *int64    `gorm:"column:invited_by" json:"invited_by,omitempty"`
	JoinedAt    time.Time `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
}

// TableName returns the table name for GORM
func (Member) TableName() string {
	return "workspace_members"
}

// NewMember creates a membership of userID in ws, added by invitedBy
func NewMember(ws *Workspace, userID int64, role Role, invitedBy int64) (*Member, error) {
	if userID == ws.OwnerID {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "the owner cannot be added as a member")
	}
	m := &Member{WorkspaceID: ws.ID, UserID: userID, Role: role}
	if invitedBy != 0 {
		m.InvitedBy = &invitedBy
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks field constraints
func (m *Member) Validate() error {
	return shared.ValidateStruct(m)
}
