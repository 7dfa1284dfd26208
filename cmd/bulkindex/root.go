package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkindex/internal/blob"
	"github.com/JonMunkholm/bulkindex/internal/config"
	"github.com/JonMunkholm/bulkindex/internal/core"
	"github.com/JonMunkholm/bulkindex/internal/logging"
	"github.com/JonMunkholm/bulkindex/internal/store/postgres"
	"github.com/JonMunkholm/bulkindex/internal/store/sqlite"
)

// app is the state shared by the subcommands after configuration loads.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "bulkindex",
		Short:         "Sanity check and load curator reference association files",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return withCode(exitUsage, err)
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Debug("configuration loaded", "config", cfg.String())
			a.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(newRunCmd(a), newServeCmd(a), newSnapshotCmd(a))
	return cmd
}

// backend is a core.Backend that can be health checked.
type backend interface {
	core.Backend
	Ping(ctx context.Context) error
}

// openBackend connects the configured reference database. The returned
// function releases it.
func openBackend(ctx context.Context, cfg config.DatabaseConfig) (backend, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres", "":
		s, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// openArchiver returns nil when archiving is disabled.
func openArchiver(ctx context.Context, cfg config.ArchiveConfig) (*blob.Archiver, error) {
	store, err := blob.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if store == nil {
		return nil, nil
	}
	slog.Info("archiving run artifacts", "driver", store.Driver(), "prefix", cfg.Prefix)
	return blob.NewArchiver(store, cfg.Prefix), nil
}
