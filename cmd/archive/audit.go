package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/audit"
)

func newAuditCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Activity log commands",
	}

	cmd.AddCommand(newAuditListCmd(opts))
	cmd.AddCommand(newAuditExportCmd(opts))
	return cmd
}

func addFilterFlags(cmd *cobra.Command, f *audit.Filter) {
	cmd.Flags().StringVar(&f.Date, "date", "", "single day (YYYY-MM-DD); overrides --from/--to")
	cmd.Flags().StringVar(&f.From, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last day, inclusive (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.Limit, "limit", audit.MaxRows, "maximum rows")
}

func newAuditListCmd(opts *rootOpts) *cobra.Command {
	var f audit.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activity log entries",
		Long:  "Lists activity newest first, optionally limited to a day or a day range.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditList(cmd, opts, f)
		},
	}

	addFilterFlags(cmd, &f)
	return cmd
}

func queryAudit(s *session, opts *rootOpts, f audit.Filter) ([]audit.Row, error) {
	if _, err := s.actor(opts, access.ViewAudit); err != nil {
		return nil, err
	}
	f.Location = s.cfg.Location()
	return audit.Query(s.db, f)
}

func runAuditList(cmd *cobra.Command, opts *rootOpts, f audit.Filter) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rows, err := queryAudit(s, opts, f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No activity found.")
		return nil
	}

	loc := s.cfg.Location()
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		at := r.CreatedAt
		data = append(data, []string{
			strconv.FormatUint(uint64(r.ID), 10),
			formatTime(&at, loc),
			r.ActorName,
			r.Action,
			r.JobNo,
			truncate(r.Details, 60),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "AT", "BY", "ACTION", "JOB", "DETAILS"},
		data,
		[]columnAlignment{alignRight},
	))
	return nil
}

func newAuditExportCmd(opts *rootOpts) *cobra.Command {
	var (
		f      audit.Filter
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export activity log entries to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditExport(cmd, opts, f, output)
		},
	}

	addFilterFlags(cmd, &f)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default activity_<today>.xlsx)")
	return cmd
}

func runAuditExport(cmd *cobra.Command, opts *rootOpts, f audit.Filter, output string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rows, err := queryAudit(s, opts, f)
	if err != nil {
		return err
	}
	data, err := audit.ExportXLSX(rows)
	if err != nil {
		return err
	}
	if output == "" {
		output = fmt.Sprintf("activity_%s.xlsx", time.Now().In(s.cfg.Location()).Format("20060102"))
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(rows), output)
	return nil
}
