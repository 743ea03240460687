// Package cli implements the ledgerctl command tree
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/erp/ledgerstore/internal/application/ledger"
	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/infrastructure/config"
	"github.com/erp/ledgerstore/internal/infrastructure/logger"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ValidFormats are the accepted --format values
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags
type RootOptions struct {
	ConfigFile string
	DBPath     string
	LogLevel   string
	Format     string
}

// app is the per-invocation composition root shared by every command
type app struct {
	opts    *RootOptions
	cfg     *config.Config
	logger  *zap.Logger
	release func()
	store   *persistence.Store
}

// Execute runs ledgerctl with args and releases the store afterwards
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{opts: &RootOptions{}}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCommand(a *app) *cobra.Command {
	opts := a.opts

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Manage a workspace-scoped ledger store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default ./ledger.toml)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "store file, overrides database.path")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newHealCommand(a))
	cmd.AddCommand(newBackupCommand(a))
	cmd.AddCommand(newRestoreCommand(a))
	cmd.AddCommand(newWorkspaceCommand(a))
	cmd.AddCommand(newProductCommand(a))
	cmd.AddCommand(newRecordCommand(a))
	cmd.AddCommand(newHistoryCommand(a))
	return cmd
}

func (a *app) init() error {
	if !isValidFormat(a.opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", a.opts.Format, ValidFormats)
	}
	cfg, err := config.Load(a.opts.ConfigFile)
	if err != nil {
		return err
	}
	if a.opts.DBPath != "" {
		cfg.Database.Path = a.opts.DBPath
	}
	if a.opts.LogLevel != "" {
		cfg.Log.Level = a.opts.LogLevel
	}

	log, release, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = log
	a.release = release
	return nil
}

// open migrates and opens the store on first use
func (a *app) open(ctx context.Context) (*persistence.Repositories, error) {
	if a.store == nil {
		a.store = persistence.NewStore(a.cfg.Database, a.logger)
	}
	return a.store.Open(ctx)
}

func (a *app) service(ctx context.Context) (*ledger.Service, error) {
	repos, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewService(repos, a.logger), nil
}

func (a *app) actor() audit.Actor {
	return audit.Actor{
		UserID:     a.cfg.Actor.UserID,
		Username:   a.cfg.Actor.Username,
		DeviceInfo: a.cfg.Actor.DeviceInfo,
	}
}

func (a *app) session(workspaceID int64) ledger.Session {
	return ledger.NewSession(workspaceID, a.actor())
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
		a.release()
		a.logger = nil
	}
	return err
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
