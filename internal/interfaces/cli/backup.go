package cli

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/erp/ledgerstore/internal/infrastructure/backup"
	"github.com/spf13/cobra"
)

func (a *app) backupService(ctx context.Context) (*backup.Service, error) {
	repos, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	sinks := []backup.Sink{backup.NewFileSink(a.cfg.Backup.Dir, a.cfg.Backup.MaxCount, a.logger)}
	if a.cfg.Backup.S3.Enabled() {
		s3, err := backup.NewS3Sink(ctx, a.cfg.Backup.S3, backup.WithS3Logger(a.logger))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}
	return backup.NewService(repos.Snapshots, repos.Snapshots, a.cfg.Backup.Compress, a.logger, sinks...)
}

func newBackupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot archive of the whole store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.backupService(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Backup(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "archive\t%s\n", res.Name)
				fmt.Fprintf(tw, "snapshot\t%s\n", res.SnapshotID)
				fmt.Fprintf(tw, "bytes\t%d\n", res.Size)
				fmt.Fprintf(tw, "sinks\t%v\n", res.Sinks)
				printCounts(tw, res.Counts)
			})
		},
	}
}

func newRestoreCommand(a *app) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "restore [archive]",
		Short: "Replace the store contents with a snapshot archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case len(args) == 1:
				path = args[0]
			case latest:
				p, err := backup.NewFileSink(a.cfg.Backup.Dir, 0, a.logger).Latest()
				if err != nil {
					return err
				}
				path = p
			default:
				return fmt.Errorf("an archive path or --latest is required")
			}

			svc, err := a.backupService(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := svc.RestoreFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			counts := snap.Counts()
			out := map[string]any{"archive": path, "snapshot_id": snap.ID, "counts": counts}
			return a.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "restored\t%s\n", path)
				fmt.Fprintf(tw, "snapshot\t%s\n", snap.ID)
				printCounts(tw, counts)
			})
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "restore the newest archive in backup.dir")
	return cmd
}

func printCounts(tw *tabwriter.Writer, counts map[string]int) {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(tw, "  %s\t%d\n", t, counts[t])
	}
}
