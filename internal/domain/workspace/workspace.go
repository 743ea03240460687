package workspace

import (
	"github.com/erp/ledgerstore/internal/domain/shared"
)

// StorageKind tells where a workspace's rows live
type StorageKind string

const (
	StorageLocal  StorageKind = "local"
	StorageServer StorageKind = "server"
)

// Workspace is an isolated ownership scope under which business rows are partitioned
type Workspace struct {
	shared.BaseEntity
	Name        string      `gorm:"column:name;not null" json:"name" validate:"required,max=100"`
	Description string      `gorm:"column:description" json:"description" validate:"max=500"`
	OwnerID     int64       `gorm:"column:owner_id;not null" json:"owner_id" validate:"required"`
	StorageKind StorageKind `gorm:"column:storage_type;not null;default:'local'" json:"storage_type" validate:"required,oneof=local server"`
	IsShared    bool        `gorm:"column:is_shared;not null;default:false" json:"is_shared"`
}

// TableName returns the table name for GORM
func (Workspace) TableName() string {
	return "workspaces"
}

// New creates a workspace owned by ownerID
func New(ownerID int64, name, description string, kind StorageKind) (*Workspace, error) {
	if kind == "" {
		kind = StorageLocal
	}
	ws := &Workspace{
		Name:        shared.NormalizeName(name),
		Description: description,
		OwnerID:     ownerID,
		StorageKind: kind,
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Validate checks field constraints
func (w *Workspace) Validate() error {
	return shared.ValidateStruct(w)
}

// Selector returns the inclusive selector for this workspace
func (w *Workspace) Selector() shared.Selector {
	return shared.Workspace(w.ID)
}

// IsRemote reports whether the workspace is mirrored on a server
func (w *Workspace) IsRemote() bool {
	return w.StorageKind == StorageServer
}

// CheckSharing rejects sharing a workspace whose rows stay on the client
func (w *Workspace) CheckSharing() error {
	if !w.IsRemote() {
		return shared.NewDomainError(shared.CodeInvalidInput,
			"local workspaces cannot be shared or have members")
	}
	return nil
}
