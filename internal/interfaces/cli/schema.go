package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/erp/ledgerstore/internal/infrastructure/migration"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

type migrateOutput struct {
	Path    string   `json:"path"`
	From    int      `json:"from"`
	To      int      `json:"to"`
	Applied []int    `json:"applied"`
	Healed  []string `json:"healed"`
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store to the current schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd.Context()); err != nil {
				return err
			}
			r := a.store.Report()
			out := migrateOutput{Path: a.cfg.Database.Path, From: r.From, To: r.To, Applied: r.Applied, Healed: r.Healed}
			return a.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "store\t%s\n", out.Path)
				fmt.Fprintf(tw, "version\t%d -> %d\n", out.From, out.To)
				fmt.Fprintf(tw, "applied\t%v\n", out.Applied)
				if len(out.Healed) > 0 {
					fmt.Fprintf(tw, "healed\t%v\n", out.Healed)
				}
			})
		},
	}
}

type statusOutput struct {
	Path     string   `json:"path"`
	Recorded int      `json:"recorded_version"`
	Current  int      `json:"current_version"`
	Pending  []string `json:"pending"`
	Tables   []string `json:"tables"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorded schema version without migrating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := persistence.OpenFile(&a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			defer persistence.Disconnect(db)

			registry := migration.DefaultRegistry()
			engine := migration.NewEngine(registry, migration.WithLogger(a.logger))
			recorded, err := engine.RecordedVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			objs, err := migration.Dump(db)
			if err != nil {
				return err
			}

			out := statusOutput{
				Path:     a.cfg.Database.Path,
				Recorded: recorded,
				Current:  registry.CurrentVersion(),
				Pending:  []string{},
				Tables:   []string{},
			}
			for _, s := range registry.PendingSteps(recorded) {
				out.Pending = append(out.Pending, fmt.Sprintf("%d %s", s.Version, s.Name))
			}
			for _, o := range objs {
				if o.Type == "table" {
					out.Tables = append(out.Tables, o.Name)
				}
			}
			return a.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "store\t%s\n", out.Path)
				fmt.Fprintf(tw, "recorded\t%d\n", out.Recorded)
				fmt.Fprintf(tw, "current\t%d\n", out.Current)
				for _, p := range out.Pending {
					fmt.Fprintf(tw, "pending\t%s\n", p)
				}
				fmt.Fprintf(tw, "tables\t%d\n", len(out.Tables))
			})
		},
	}
}

func newHealCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "heal",
		Short: "Recreate missing tables, columns and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd.Context()); err != nil {
				return err
			}
			db, err := a.store.DB()
			if err != nil {
				return err
			}
			healed, err := a.store.Engine().Heal(cmd.Context(), db)
			if err != nil {
				return err
			}
			if healed == nil {
				healed = []string{}
			}
			return a.render(cmd.OutOrStdout(), map[string][]string{"healed": healed}, func(tw *tabwriter.Writer) {
				if len(healed) == 0 {
					fmt.Fprintln(tw, "schema complete")
				}
				for _, h := range healed {
					fmt.Fprintf(tw, "healed\t%s\n", h)
				}
			})
		},
	}
}
