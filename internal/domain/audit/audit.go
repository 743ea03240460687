// Package audit models the append-only operation log and the per-field diff
// recorded with every mutation.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/ledgerstore/internal/domain/shared"
)

// OperationKind is the kind of mutation an entry records
type OperationKind string

const (
	OperationCreate OperationKind = "CREATE"
	OperationUpdate OperationKind = "UPDATE"
	OperationDelete OperationKind = "DELETE"
	// OperationCover replaces a workspace's data wholesale on import
	OperationCover OperationKind = "COVER"
)

// IsValid reports whether k is a known operation kind
func (k OperationKind) IsValid() bool {
	switch k {
	case OperationCreate, OperationUpdate, OperationDelete, OperationCover:
		return true
	}
	return false
}

// EntityKind names the table an entry refers to
type EntityKind string

const (
	EntityProduct       EntityKind = "product"
	EntityCustomer      EntityKind = "customer"
	EntitySupplier      EntityKind = "supplier"
	EntityEmployee      EntityKind = "employee"
	EntityPurchase      EntityKind = "purchase"
	EntitySale          EntityKind = "sale"
	EntityReturn        EntityKind = "return"
	EntityIncome        EntityKind = "income"
	EntityRemittance    EntityKind = "remittance"
	EntityWorkspace     EntityKind = "workspace"
	EntityWorkspaceData EntityKind = "workspace_data"
	EntityMember        EntityKind = "workspace_member"
)

var entityKinds = map[EntityKind]struct{}{
	EntityProduct: {}, EntityCustomer: {}, EntitySupplier: {}, EntityEmployee: {},
	EntityPurchase: {}, EntitySale: {}, EntityReturn: {}, EntityIncome: {},
	EntityRemittance: {}, EntityWorkspace: {}, EntityWorkspaceData: {}, EntityMember: {},
}

// IsValid reports whether k is a known entity kind
func (k EntityKind) IsValid() bool {
	_, ok := entityKinds[k]
	return ok
}

// Actor identifies who performed an operation and from where
type Actor struct {
	UserID     int64
	Username   string
	IPAddress  string
	DeviceInfo string
}

// Record is the input of a single audit append
type Record struct {
	Operation   OperationKind
	Entity      EntityKind
	EntityID    int64
	EntityName  string
	WorkspaceID *int64
	Old         State
	New         State
	Actor       Actor
	Note        string
}

// Entry is one immutable row of the operation log
type Entry struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64         `gorm:"column:user_id;not null" json:"user_id"`
	Username      string        `gorm:"column:username" json:"username"`
	WorkspaceID   *int64        `gorm:"column:workspace_id" json:"workspace_id"`
	OperationType OperationKind `gorm:"column:operation_type;not null" json:"operation_type"`
	EntityType    EntityKind    `gorm:"column:entity_type;not null" json:"entity_type"`
	EntityID      *int64        `gorm:"column:entity_id" json:"entity_id"`
	EntityName    string        `gorm:"column:entity_name" json:"entity_name"`
	OldData       *string       `gorm:"column:old_data" json:"old_data"`
	NewData       *string       `gorm:"column:new_data" json:"new_data"`
	Changes       *string       `gorm:"column:changes" json:"changes"`
	IPAddress     string        `gorm:"column:ip_address" json:"ip_address"`
	DeviceInfo    string        `gorm:"column:device_info" json:"device_info"`
	OperationTime time.Time     `gorm:"column:operation_time;not null" json:"operation_time"`
	Note          string        `gorm:"column:note" json:"note"`
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "operation_logs"
}

// NewEntry validates rec, computes its diff and serializes both states
func NewEntry(rec Record, now time.Time) (*Entry, error) {
	if !rec.Operation.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown operation kind %q", rec.Operation))
	}
	if !rec.Entity.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown entity kind %q", rec.Entity))
	}

	e := &Entry{
		UserID:        rec.Actor.UserID,
		Username:      rec.Actor.Username,
		WorkspaceID:   rec.WorkspaceID,
		OperationType: rec.Operation,
		EntityType:    rec.Entity,
		EntityName:    rec.EntityName,
		IPAddress:     rec.Actor.IPAddress,
		DeviceInfo:    rec.Actor.DeviceInfo,
		OperationTime: now,
		Note:          rec.Note,
	}
	if rec.EntityID != 0 {
		id := rec.EntityID
		e.EntityID = &id
	}

	var err error
	if e.OldData, err = encode(rec.Old); err != nil {
		return nil, err
	}
	if e.NewData, err = encode(rec.New); err != nil {
		return nil, err
	}
	if rec.Old != nil || rec.New != nil {
		diff := ComputeDiff(rec.Old, rec.New)
		if e.Changes, err = encode(diff); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Diff decodes the stored changes; deltas come back as json.Number
func (e *Entry) Diff() (Diff, error) {
	if e.Changes == nil {
		return Diff{}, nil
	}
	var d Diff
	if err := decode(*e.Changes, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// OldState decodes the stored pre-mutation state
func (e *Entry) OldState() (State, error) {
	return decodeState(e.OldData)
}

// NewState decodes the stored post-mutation state
func (e *Entry) NewState() (State, error) {
	return decodeState(e.NewData)
}

func decodeState(s *string) (State, error) {
	if s == nil {
		return nil, nil
	}
	var st State
	if err := decode(*s, &st); err != nil {
		return nil, err
	}
	return st, nil
}

func encode[T ~map[string]any](m T) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidInput, "encode audit state", err)
	}
	s := string(b)
	return &s, nil
}

func decode(s string, v any) error {
	dec := json.NewDecoder(bytes.NewBufferString(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode audit data: %w", err)
	}
	return nil
}

// Query filters a page of the operation log
type Query struct {
	Operation OperationKind
	Entity    EntityKind
	From      time.Time
	To        time.Time
	// Search matches entity name or note
	Search   string
	Page     int
	PageSize int
}
