package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// CreateWorkspace stores ws owned by actor
func (s *Service) CreateWorkspace(ctx context.Context, actor audit.Actor, ws *workspace.Workspace) error {
	ws.OwnerID = actor.UserID
	if ws.IsShared {
		if err := ws.CheckSharing(); err != nil {
			return err
		}
	}
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		if err := tx.Workspaces.Create(ctx, ws); err != nil {
			return err
		}
		return recordWorkspace(ctx, tx, actor, audit.OperationCreate, ws, nil, ws, "")
	})
	if err != nil {
		return err
	}
	s.logger.Info("workspace created", zap.Int64("workspace_id", ws.ID), zap.Int64("owner_id", ws.OwnerID))
	return nil
}

// Workspaces lists the workspaces actor owns or holds a role in
func (s *Service) Workspaces(ctx context.Context, actor audit.Actor, filter shared.Filter) ([]workspace.Workspace, error) {
	return s.repos.Workspaces.FindAccessible(ctx, actor.UserID, filter)
}

// Authorize returns actor's role in workspace id when it grants every perm
func (s *Service) Authorize(ctx context.Context, actor audit.Actor, id int64, perms ...workspace.Permission) (workspace.Role, error) {
	_, role, err := authorize(ctx, s.repos, actor, id, perms...)
	return role, err
}

// UpdateWorkspace patches the settings of a workspace. Only the owner may.
func (s *Service) UpdateWorkspace(ctx context.Context, actor audit.Actor, id int64, patch map[string]any) (*workspace.Workspace, error) {
	var out *workspace.Workspace
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		before, _, err := authorize(ctx, tx, actor, id, workspace.PermManageSettings)
		if err != nil {
			return err
		}
		out, err = tx.Workspaces.Update(ctx, id, patch)
		if err != nil {
			return err
		}
		if out.IsShared {
			if err := out.CheckSharing(); err != nil {
				return err
			}
		}
		return recordWorkspace(ctx, tx, actor, audit.OperationUpdate, out, before, out, "")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWorkspace removes a workspace actor owns together with its
// memberships and every row partitioned under it. Legacy rows and audit
// entries are kept.
func (s *Service) DeleteWorkspace(ctx context.Context, actor audit.Actor, id int64) (map[string]int64, error) {
	var removed map[string]int64
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		ws, _, err := authorize(ctx, tx, actor, id, workspace.PermManageSettings)
		if err != nil {
			return err
		}
		removed, err = tx.Workspaces.Delete(ctx, id)
		if err != nil {
			return err
		}
		return recordWorkspace(ctx, tx, actor, audit.OperationDelete, ws, ws, nil, fmt.Sprintf("removed %v", removed))
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ImportWorkspace overwrites the data of a workspace. The caller's role
// must allow creating and deleting rows.
func (s *Service) ImportWorkspace(ctx context.Context, actor audit.Actor, id int64, data *persistence.WorkspaceData) (*persistence.ImportResult, error) {
	if _, _, err := authorize(ctx, s.repos, actor, id, workspace.PermCreate, workspace.PermDelete); err != nil {
		return nil, err
	}
	return s.repos.Snapshots.ImportWorkspace(ctx, id, data, actor)
}

// Members lists the members of a workspace actor can read
func (s *Service) Members(ctx context.Context, actor audit.Actor, id int64) ([]workspace.Member, error) {
	if _, _, err := authorize(ctx, s.repos, actor, id, workspace.PermRead); err != nil {
		return nil, err
	}
	return s.repos.Members.List(ctx, id)
}

// AddMember grants userID a role in a server workspace and marks it shared
func (s *Service) AddMember(ctx context.Context, actor audit.Actor, id, userID int64, role workspace.Role) (*workspace.Member, error) {
	var m *workspace.Member
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		ws, _, err := authorize(ctx, tx, actor, id, workspace.PermManageMembers)
		if err != nil {
			return err
		}
		if err := ws.CheckSharing(); err != nil {
			return err
		}
		m, err = workspace.NewMember(ws, userID, role, actor.UserID)
		if err != nil {
			return err
		}
		if err := tx.Members.Add(ctx, m); err != nil {
			return err
		}
		if !ws.IsShared {
			if _, err := tx.Workspaces.Update(ctx, id, map[string]any{"is_shared": true}); err != nil {
				return err
			}
		}
		return recordMember(ctx, tx, actor, audit.OperationCreate, ws, m, nil, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMemberRole changes the role of a member. The owner's role is fixed.
func (s *Service) UpdateMemberRole(ctx context.Context, actor audit.Actor, id, userID int64, role workspace.Role) (*workspace.Member, error) {
	var out *workspace.Member
	err := s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		ws, _, err := authorize(ctx, tx, actor, id, workspace.PermManageMembers)
		if err != nil {
			return err
		}
		if userID == ws.OwnerID {
			return shared.NewDomainError(shared.CodeInvalidInput, "the owner's role cannot be changed")
		}
		before, err := tx.Members.Find(ctx, id, userID)
		if err != nil {
			return err
		}
		out, err = tx.Members.UpdateRole(ctx, id, userID, role)
		if err != nil {
			return err
		}
		return recordMember(ctx, tx, actor, audit.OperationUpdate, ws, out, before, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveMember revokes userID's role in a workspace. A member may always
// leave on their own.
func (s *Service) RemoveMember(ctx context.Context, actor audit.Actor, id, userID int64) error {
	return s.repos.Transaction(ctx, func(tx *persistence.Repositories) error {
		var ws *workspace.Workspace
		var err error
		if userID == actor.UserID {
			ws, err = tx.Workspaces.FindByID(ctx, id)
		} else {
			ws, _, err = authorize(ctx, tx, actor, id, workspace.PermManageMembers)
		}
		if err != nil {
			return err
		}
		m, err := tx.Members.Find(ctx, id, userID)
		if err != nil {
			return err
		}
		if err := tx.Members.Remove(ctx, id, userID); err != nil {
			return err
		}
		return recordMember(ctx, tx, actor, audit.OperationDelete, ws, m, m, nil)
	})
}

// roleOf resolves actor's role in ws. Stored memberships only count while
// the workspace is shared.
func roleOf(ctx context.Context, repos *persistence.Repositories, actor audit.Actor, ws *workspace.Workspace) (workspace.Role, bool, error) {
	if ws.OwnerID == actor.UserID {
		return workspace.RoleOwner, true, nil
	}
	if !ws.IsShared {
		return "", false, nil
	}
	return repos.Members.RoleOf(ctx, ws.ID, actor.UserID)
}

func authorize(ctx context.Context, repos *persistence.Repositories, actor audit.Actor, id int64, perms ...workspace.Permission) (*workspace.Workspace, workspace.Role, error) {
	ws, err := repos.Workspaces.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	role, ok, err := roleOf(ctx, repos, actor, ws)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", shared.NewDomainError(shared.CodeForbidden,
			fmt.Sprintf("workspace %d is not accessible to user %d", id, actor.UserID))
	}
	for _, p := range perms {
		if !role.Allows(p) {
			return nil, "", shared.NewDomainError(shared.CodeForbidden,
				fmt.Sprintf("role %s in workspace %d does not allow %s", role, id, p))
		}
	}
	return ws, role, nil
}

func recordWorkspace(ctx context.Context, tx *persistence.Repositories, actor audit.Actor, op audit.OperationKind, ws *workspace.Workspace, before, after any, note string) error {
	id := ws.ID
	_, err := tx.Audit.Record(ctx, audit.Record{
		Operation:   op,
		Entity:      audit.EntityWorkspace,
		EntityID:    ws.ID,
		EntityName:  ws.Name,
		WorkspaceID: &id,
		Old:         audit.StateOf(before),
		New:         audit.StateOf(after),
		Actor:       actor,
		Note:        note,
	})
	return err
}

func recordMember(ctx context.Context, tx *persistence.Repositories, actor audit.Actor, op audit.OperationKind, ws *workspace.Workspace, m *workspace.Member, before, after any) error {
	id := ws.ID
	_, err := tx.Audit.Record(ctx, audit.Record{
		Operation:   op,
		Entity:      audit.EntityMember,
		EntityID:    m.UserID,
		EntityName:  string(m.Role),
		WorkspaceID: &id,
		Old:         audit.StateOf(before),
		New:         audit.StateOf(after),
		Actor:       actor,
	})
	return err
}
