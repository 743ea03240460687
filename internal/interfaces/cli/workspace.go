package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/erp/ledgerstore/internal/application/ledger"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

func newWorkspaceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}
	cmd.AddCommand(newWorkspaceListCommand(a))
	cmd.AddCommand(newWorkspaceCreateCommand(a))
	cmd.AddCommand(newWorkspaceDeleteCommand(a))
	cmd.AddCommand(newWorkspaceImportCommand(a))
	cmd.AddCommand(newMemberCommand(a))
	return cmd
}

func newWorkspaceListCommand(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workspaces the configured actor owns or is a member of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			list, err := svc.Workspaces(cmd.Context(), a.actor(), shared.Filter{Search: search})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), list, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNAME\tSTORAGE\tSHARED")
				for _, ws := range list {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", ws.ID, ws.Name, ws.StorageKind, ws.IsShared)
				}
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match name or description")
	return cmd
}

func newWorkspaceCreateCommand(a *app) *cobra.Command {
	var description, storage string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace owned by the configured actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.New(a.cfg.Actor.UserID, args[0], description, workspace.StorageKind(storage))
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.CreateWorkspace(cmd.Context(), a.actor(), ws); err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), ws, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "created workspace\t%d\t%s\n", ws.ID, ws.Name)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "workspace description")
	cmd.Flags().StringVar(&storage, "storage", string(workspace.StorageLocal), "storage kind (local|server)")
	return cmd
}

func newWorkspaceDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workspace and every row in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := svc.DeleteWorkspace(cmd.Context(), a.actor(), id)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), map[string]any{"id": id, "removed": removed}, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "deleted workspace\t%d\n", id)
				printCounts(tw, toIntCounts(removed))
			})
		},
	}
}

func newWorkspaceImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <id> <file.json>",
		Short: "Overwrite a workspace with the rows in a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var data persistence.WorkspaceData
			if err := json.Unmarshal(raw, &data); err != nil {
				return shared.WrapDomainError(shared.CodeInvalidInput, "decode import file", err)
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.ImportWorkspace(cmd.Context(), a.actor(), id, &data)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "imported workspace\t%d\n", id)
				printCounts(tw, toIntCounts(res.Imported))
			})
		},
	}
}

func newMemberCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage the members of a server workspace",
	}

	list := &cobra.Command{
		Use:   "list <workspace-id>",
		Short: "List members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			members, err := svc.Members(cmd.Context(), a.actor(), id)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), members, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "USER\tROLE\tJOINED")
				for _, m := range members {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", m.UserID, m.Role, m.JoinedAt.Format(dateLayout))
				}
			})
		},
	}

	var role string
	add := &cobra.Command{
		Use:   "add <workspace-id> <user-id>",
		Short: "Grant a user a role and share the workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.member(cmd, args, func(svc *ledger.Service, id, userID int64) (*workspace.Member, error) {
				return svc.AddMember(cmd.Context(), a.actor(), id, userID, workspace.Role(role))
			})
		},
	}
	add.Flags().StringVar(&role, "role", string(workspace.RoleViewer), "admin, editor or viewer")

	var newRole string
	update := &cobra.Command{
		Use:   "role <workspace-id> <user-id>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.member(cmd, args, func(svc *ledger.Service, id, userID int64) (*workspace.Member, error) {
				return svc.UpdateMemberRole(cmd.Context(), a.actor(), id, userID, workspace.Role(newRole))
			})
		},
	}
	update.Flags().StringVar(&newRole, "role", "", "admin, editor or viewer")
	_ = update.MarkFlagRequired("role")

	remove := &cobra.Command{
		Use:   "remove <workspace-id> <user-id>",
		Short: "Revoke a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.member(cmd, args, func(svc *ledger.Service, id, userID int64) (*workspace.Member, error) {
				return nil, svc.RemoveMember(cmd.Context(), a.actor(), id, userID)
			})
		},
	}

	cmd.AddCommand(list, add, update, remove)
	return cmd
}

// member parses the workspace and user ids of a member command and renders
// the membership fn returns
func (a *app) member(cmd *cobra.Command, args []string, fn func(svc *ledger.Service, id, userID int64) (*workspace.Member, error)) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	userID, err := parseID(args[1])
	if err != nil {
		return err
	}
	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	m, err := fn(svc, id, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return a.render(cmd.OutOrStdout(), map[string]any{"workspace_id": id, "user_id": userID, "removed": true}, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "removed member\t%d\n", userID)
		})
	}
	return a.render(cmd.OutOrStdout(), m, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "member\t%d\t%s\n", m.UserID, m.Role)
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}

func toIntCounts(m map[string]int64) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = int(v)
	}
	return out
}
