package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkindex/internal/store/sqlite"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the local SQLite reference snapshot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Import a JSON export of references, users and objects into SQLITE_PATH",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return withCode(exitUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open snapshot: %w", err)
			}
			defer f.Close()

			store, err := sqlite.Open(cmd.Context(), a.cfg.Database.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.ImportSnapshot(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d references, %d users, %d markers, %d strains, %d alleles into %s\n",
				len(snap.References), len(snap.Users), len(snap.Markers), len(snap.Strains), len(snap.Alleles),
				a.cfg.Database.SQLitePath)
			return nil
		},
	})
	return cmd
}
