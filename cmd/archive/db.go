package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/db"
)

func newDBCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd(opts))
	cmd.AddCommand(newDBResetCmd(opts))
	return cmd
}

func newDBInitCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the Archive database",
		Long:  "Migrates all tables and seeds the users listed in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, opts)
		},
	}
}

func runDBInit(cmd *cobra.Command, opts *rootOpts) error {
	out := cmd.OutOrStdout()

	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	fmt.Fprintf(out, "Connected to %s database\n", s.cfg.Database.Driver)

	if err := migrateAndSeed(cmd, s); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nArchive database initialized successfully.")
	return nil
}

func migrateAndSeed(cmd *cobra.Command, s *session) error {
	out := cmd.OutOrStdout()
	if err := db.AutoMigrate(s.db); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedUsers(s.db, s.cfg.Users); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d users:", len(s.cfg.Users))
	for _, u := range s.cfg.Users {
		fmt.Fprintf(out, " %s", u.Username)
	}
	fmt.Fprintln(out)
	return nil
}

func newDBResetCmd(opts *rootOpts) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Archive database",
		Long: `Drops every Archive table, then migrates and seeds again.

All jobs, history, audit entries, photos records and backups are lost.
Photo files on disk are left in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, opts, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, opts *rootOpts, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if !skipConfirm {
		ok, err := confirm(cmd, fmt.Sprintf("WARNING: This will permanently delete all data in the %s database.", s.cfg.Database.Driver))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := db.DropAll(s.db); err != nil {
		return err
	}
	fmt.Fprintln(out, "Dropped all tables")

	if err := migrateAndSeed(cmd, s); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nArchive database reset and re-initialized successfully.")
	return nil
}
