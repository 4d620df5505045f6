package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/backup"
)

func newBackupCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup ledger commands",
	}

	cmd.AddCommand(newBackupAddCmd(opts))
	cmd.AddCommand(newBackupEditCmd(opts))
	cmd.AddCommand(newBackupListCmd(opts))
	cmd.AddCommand(newBackupStatusCmd(opts))
	return cmd
}

func addBackupFlags(cmd *cobra.Command, e *backup.Entry) {
	cmd.Flags().StringVar(&e.BackupDate, "date", "", "backup date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&e.Type, "type", "", "backup type (e.g. full, incremental)")
	cmd.Flags().StringVar(&e.Location, "location", "", "where the backup is stored")
	cmd.Flags().StringVar(&e.Notes, "notes", "", "notes")
}

func newBackupAddCmd(opts *rootOpts) *cobra.Command {
	var e backup.Entry

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a backup",
		Long:  "Records a backup. The next backup falls due one month after its date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupAdd(cmd, opts, e)
		},
	}

	addBackupFlags(cmd, &e)
	return cmd
}

func runBackupAdd(cmd *cobra.Command, opts *rootOpts, e backup.Entry) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.ManageBackups)
	if err != nil {
		return err
	}
	if e.BackupDate == "" {
		e.BackupDate = time.Now().In(s.cfg.Location()).Format(backup.DateLayout)
	}
	row, err := backup.Add(s.db, e, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded backup #%d on %s, next due %s\n", row.ID, row.BackupDate, row.NextDue)
	return nil
}

func newBackupEditCmd(opts *rootOpts) *cobra.Command {
	var e backup.Entry

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a recorded backup",
		Long:  "Changes the given fields of a ledger entry and recomputes its next due date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid backup id %q", args[0])
			}
			return runBackupEdit(cmd, opts, uint(id), e)
		},
	}

	addBackupFlags(cmd, &e)
	return cmd
}

func runBackupEdit(cmd *cobra.Command, opts *rootOpts, id uint, e backup.Entry) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.ManageBackups)
	if err != nil {
		return err
	}
	cur, err := backup.Get(s.db, id)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	merged := backup.Entry{
		BackupDate: cur.BackupDate,
		Type:       cur.BackupType,
		Location:   cur.BackupLocation,
		Notes:      cur.Notes,
	}
	if flags.Changed("date") {
		merged.BackupDate = e.BackupDate
	}
	if flags.Changed("type") {
		merged.Type = e.Type
	}
	if flags.Changed("location") {
		merged.Location = e.Location
	}
	if flags.Changed("notes") {
		merged.Notes = e.Notes
	}

	row, err := backup.Update(s.db, id, merged, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated backup #%d: %s, next due %s\n", row.ID, row.BackupDate, row.NextDue)
	return nil
}

func newBackupListCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupList(cmd, opts)
		},
	}
}

func runBackupList(cmd *cobra.Command, opts *rootOpts) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rows, err := backup.List(s.db)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No backups recorded.")
		return nil
	}
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.BackupDate,
			r.NextDue,
			r.BackupType,
			r.BackupLocation,
			truncate(r.Notes, 40),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "DATE", "NEXT DUE", "TYPE", "LOCATION", "NOTES"},
		data,
		[]columnAlignment{alignRight},
	))
	return nil
}

func newBackupStatusCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the next backup is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupStatus(cmd, opts)
		},
	}
}

func runBackupStatus(cmd *cobra.Command, opts *rootOpts) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	today := time.Now().In(s.cfg.Location())
	st, last, err := backup.Current(s.db, today, s.cfg.Backup.DueSoonDays)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch st.State {
	case backup.StateUnknown:
		fmt.Fprintln(out, "No backup has been recorded yet.")
		return nil
	case backup.StateOverdue:
		fmt.Fprintf(out, "OVERDUE by %d day(s): next backup was due %s\n", -st.DaysUntilDue, st.NextDue)
	case backup.StateDueSoon:
		fmt.Fprintf(out, "Due soon: next backup due %s (%d day(s))\n", st.NextDue, st.DaysUntilDue)
	default:
		fmt.Fprintf(out, "Up to date: next backup due %s (%d day(s))\n", st.NextDue, st.DaysUntilDue)
	}
	fmt.Fprintf(out, "Last backup: %s", last.BackupDate)
	if last.BackupLocation != "" {
		fmt.Fprintf(out, " at %s", last.BackupLocation)
	}
	fmt.Fprintln(out)
	return nil
}
