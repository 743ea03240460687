package shared

import "fmt"

// ScopeMode controls how a Selector filters the workspace column
type ScopeMode int

const (
	// ScopeInclusive matches the workspace and legacy rows with no workspace
	ScopeInclusive ScopeMode = iota
	// ScopeStrict matches the workspace only
	ScopeStrict
	// ScopeLegacy matches rows with no workspace only
	ScopeLegacy
)

func (m ScopeMode) String() string {
	switch m {
	case ScopeInclusive:
		return "inclusive"
	case ScopeStrict:
		return "strict"
	case ScopeLegacy:
		return "unscoped"
	default:
		return fmt.Sprintf("ScopeMode(%d)", int(m))
	}
}

// Selector is the explicit workspace argument of every store operation
type Selector struct {
	WorkspaceID int64
	Mode        ScopeMode
}

// Workspace selects a workspace plus legacy rows
func Workspace(id int64) Selector {
	return Selector{WorkspaceID: id, Mode: ScopeInclusive}
}

// StrictWorkspace selects a workspace without legacy rows
func StrictWorkspace(id int64) Selector {
	return Selector{WorkspaceID: id, Mode: ScopeStrict}
}

// Unscoped selects legacy rows that belong to no workspace
func Unscoped() Selector {
	return Selector{Mode: ScopeLegacy}
}

// Validate checks the selector is well formed
func (s Selector) Validate() error {
	switch s.Mode {
	case ScopeInclusive, ScopeStrict:
		if s.WorkspaceID <= 0 {
			return WrapDomainError(CodeInvalidSelector, "workspace id must be positive",
				fmt.Errorf("got %d", s.WorkspaceID))
		}
	case ScopeLegacy:
		if s.WorkspaceID != 0 {
			return NewDomainError(CodeInvalidSelector, "unscoped selector cannot carry a workspace id")
		}
	default:
		return ErrInvalidSelector
	}
	return nil
}

// WorkspaceRef returns the value stored in workspace_id on insert
func (s Selector) WorkspaceRef() *int64 {
	if s.Mode == ScopeLegacy {
		return nil
	}
	id := s.WorkspaceID
	return &id
}

// Admits reports whether a row with the given workspace is visible to the selector
func (s Selector) Admits(workspaceID *int64) bool {
	switch s.Mode {
	case ScopeInclusive:
		return workspaceID == nil || *workspaceID == s.WorkspaceID
	case ScopeStrict:
		return workspaceID != nil && *workspaceID == s.WorkspaceID
	case ScopeLegacy:
		return workspaceID == nil
	}
	return false
}

func (s Selector) String() string {
	if s.Mode == ScopeLegacy {
		return s.Mode.String()
	}
	return fmt.Sprintf("%s:%d", s.Mode, s.WorkspaceID)
}
