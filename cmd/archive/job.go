package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/history"
	"github.com/sysfr3ak/archive-sys/internal/job"
	"github.com/sysfr3ak/archive-sys/internal/photo"
	"github.com/sysfr3ak/archive-sys/internal/stage"
)

func newJobCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job management commands",
	}

	cmd.AddCommand(newJobCreateCmd(opts))
	cmd.AddCommand(newJobListCmd(opts))
	cmd.AddCommand(newJobShowCmd(opts))
	cmd.AddCommand(newJobEditCmd(opts))
	cmd.AddCommand(newJobDeleteCmd(opts))
	return cmd
}

// addMetadataFlags registers the general job fields on cmd.
func addMetadataFlags(cmd *cobra.Command, m *job.Metadata) {
	cmd.Flags().StringVar(&m.Name, "name", "", "customer name")
	cmd.Flags().StringVar(&m.Date, "date", "", "job date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&m.Paper, "paper", "", "paper description")
	cmd.Flags().StringVar(&m.Note, "note", "", "free-form note")
	cmd.Flags().StringVar(&m.Price, "price", "", "quoted price")
	cmd.Flags().StringVar(&m.Serial, "serial", "", "serial number range")
}

// addChecklistFlags registers the pre-press checklist on cmd.
func addChecklistFlags(cmd *cobra.Command, c *job.Checklist) {
	cmd.Flags().BoolVar(&c.Plate, "pre-plate", false, "plate is ready")
	cmd.Flags().BoolVar(&c.Die, "pre-die", false, "die is ready")
	cmd.Flags().BoolVar(&c.Paper, "pre-paper", false, "paper is ready")
}

func newJobCreateCmd(opts *rootOpts) *cobra.Command {
	var (
		jobNo     string
		meta      job.Metadata
		stageCode string
		checklist job.Checklist
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new job",
		Long:  "Creates a job at its initial stage and records the first history entry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobCreate(cmd, opts, job.CreateOpts{
				JobNo:     jobNo,
				Metadata:  meta,
				Stage:     stageCode,
				Checklist: checklist,
			})
		},
	}

	cmd.Flags().StringVar(&jobNo, "job-no", "", "job number (required)")
	addMetadataFlags(cmd, &meta)
	cmd.Flags().StringVar(&stageCode, "stage", "", "initial stage code (default first catalog stage)")
	addChecklistFlags(cmd, &checklist)
	cmd.MarkFlagRequired("job-no")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runJobCreate(cmd *cobra.Command, opts *rootOpts, co job.CreateOpts) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.CreateJob)
	if err != nil {
		return err
	}
	if err := s.checkStage(co.Stage); err != nil {
		return err
	}
	co.Actor = actor

	j, err := job.Create(s.db, co)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created job %s (id %d) at %s\n", j.JobNo, j.ID, stage.DisplayLabel(j.Stage))
	return nil
}

// checkStage enforces the catalog when strict stages are configured.
func (s *session) checkStage(code string) error {
	if code == "" || !s.cfg.Tracker.StrictStages {
		return nil
	}
	return stage.Check(code)
}

func newJobListCmd(opts *rootOpts) *cobra.Command {
	var (
		f    job.ListFilters
		mode string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Long:  "Lists jobs newest first, optionally filtered by text, year, month and stage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Mode = job.SearchMode(mode)
			return runJobList(cmd, opts, f)
		},
	}

	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "search text")
	cmd.Flags().StringVar(&mode, "mode", string(job.SearchJob), "search mode (job, customer, keyword)")
	cmd.Flags().StringVar(&f.Year, "year", "", "job date year (YYYY)")
	cmd.Flags().StringVar(&f.Month, "month", "", "job date month (1-12)")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage code")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func runJobList(cmd *cobra.Command, opts *rootOpts, f job.ListFilters) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	jobs, err := job.List(s.db, f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	loc := s.cfg.Location()
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		updated := j.StageUpdatedAt
		rows = append(rows, []string{
			strconv.FormatUint(uint64(j.ID), 10),
			j.JobNo,
			j.Date,
			truncate(j.Name, 32),
			stage.DisplayLabel(j.Stage),
			formatTime(&updated, loc),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "JOB NO", "DATE", "CUSTOMER", "STAGE", "STAGE UPDATED"},
		rows,
		[]columnAlignment{alignRight},
	))
	fmt.Fprintf(out, "%d job(s)\n", len(jobs))
	return nil
}

func newJobShowCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-no>",
		Short: "Show a job with its stage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobShow(cmd, opts, args[0])
		},
	}
}

func runJobShow(cmd *cobra.Command, opts *rootOpts, jobNo string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	j, err := job.GetByNumber(s.db, jobNo)
	if err != nil {
		return err
	}
	entries, err := history.ListFor(s.db, j.ID)
	if err != nil {
		return err
	}
	photos, err := photo.NewStore(s.db, s.cfg.Storage.UploadDir, s.cfg.Storage.MaxPerJob).List(j.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	loc := s.cfg.Location()
	updated := j.StageUpdatedAt
	created := j.CreatedAt

	fmt.Fprintf(out, "Job:       %s (id %d)\n", j.JobNo, j.ID)
	fmt.Fprintf(out, "Customer:  %s\n", j.Name)
	fmt.Fprintf(out, "Date:      %s\n", j.Date)
	fmt.Fprintf(out, "Paper:     %s\n", j.Paper)
	fmt.Fprintf(out, "Price:     %s\n", j.Price)
	fmt.Fprintf(out, "Serial:    %s\n", j.Serial)
	if j.Note != "" {
		fmt.Fprintf(out, "Note:      %s\n", j.Note)
	}
	fmt.Fprintf(out, "Created:   %s\n", formatTime(&created, loc))
	if j.EditedAt != nil {
		fmt.Fprintf(out, "Edited:    %s\n", formatTime(j.EditedAt, loc))
	}
	fmt.Fprintf(out, "Stage:     %s (since %s)\n", stage.DisplayLabel(j.Stage), formatTime(&updated, loc))
	fmt.Fprintf(out, "Pre-press: plate=%t die=%t paper=%t\n", j.PrePlate, j.PreDie, j.PrePaper)
	fmt.Fprintf(out, "Photos:    %d\n", len(photos))

	fmt.Fprintln(out, "\nOutsourcing:")
	fmt.Fprintln(out, renderTable(
		[]string{"EVENT", "AT"},
		[][]string{
			{"Plate sent", formatTime(j.PlateSentAt, loc)},
			{"Plate received", formatTime(j.PlateReceivedAt, loc)},
			{"Die sent", formatTime(j.DieSentAt, loc)},
			{"Die received", formatTime(j.DieReceivedAt, loc)},
			{"Paper sent", formatTime(j.PaperSentAt, loc)},
			{"Paper done", formatTime(j.PaperDoneAt, loc)},
		},
		nil,
	))

	fmt.Fprintln(out, "\nHistory:")
	fmt.Fprintln(out, renderHistory(entries, s))
	return nil
}

func renderHistory(entries []history.Entry, s *session) string {
	loc := s.cfg.Location()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		at := e.UpdatedAt
		rows = append(rows, []string{
			formatTime(&at, loc),
			e.StageLabel,
			e.ActorName,
			fmt.Sprintf("plate=%t die=%t paper=%t", e.PrePlate, e.PreDie, e.PrePaper),
		})
	}
	return renderTable([]string{"AT", "STAGE", "BY", "PRE-PRESS"}, rows, nil)
}

func newJobEditCmd(opts *rootOpts) *cobra.Command {
	var (
		newJobNo string
		meta     job.Metadata
	)

	cmd := &cobra.Command{
		Use:   "edit <job-no>",
		Short: "Edit a job's general fields",
		Long:  "Changes the given fields of a job. Flags that are not set keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobEdit(cmd, opts, args[0], newJobNo, meta)
		},
	}

	cmd.Flags().StringVar(&newJobNo, "job-no", "", "new job number")
	addMetadataFlags(cmd, &meta)
	return cmd
}

func runJobEdit(cmd *cobra.Command, opts *rootOpts, jobNo, newJobNo string, meta job.Metadata) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.EditJob)
	if err != nil {
		return err
	}
	j, err := job.GetByNumber(s.db, jobNo)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	upd := job.MetadataUpdate{
		JobNo: j.JobNo,
		Metadata: job.Metadata{
			Name:   j.Name,
			Date:   j.Date,
			Paper:  j.Paper,
			Note:   j.Note,
			Price:  j.Price,
			Serial: j.Serial,
		},
	}
	if flags.Changed("job-no") {
		upd.JobNo = newJobNo
	}
	for _, f := range []struct {
		flag     string
		dst, val *string
	}{
		{"name", &upd.Name, &meta.Name},
		{"date", &upd.Date, &meta.Date},
		{"paper", &upd.Paper, &meta.Paper},
		{"note", &upd.Note, &meta.Note},
		{"price", &upd.Price, &meta.Price},
		{"serial", &upd.Serial, &meta.Serial},
	} {
		if flags.Changed(f.flag) {
			*f.dst = *f.val
		}
	}

	files := photo.NewStore(s.db, s.cfg.Storage.UploadDir, s.cfg.Storage.MaxPerJob)
	updated, err := job.UpdateMetadata(s.db, j.ID, upd, actor, files)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated job %s\n", updated.JobNo)
	return nil
}

func newJobDeleteCmd(opts *rootOpts) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <job-no>",
		Short: "Delete a job and its photos",
		Long:  "Deletes a job, its photo records and files. Stage history and audit entries are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobDelete(cmd, opts, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runJobDelete(cmd *cobra.Command, opts *rootOpts, jobNo string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.DeleteJob)
	if err != nil {
		return err
	}
	j, err := job.GetByNumber(s.db, jobNo)
	if err != nil {
		return err
	}

	if !skipConfirm {
		ok, err := confirm(cmd, fmt.Sprintf("WARNING: This will delete job %s and its photos.", j.JobNo))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	files := photo.NewStore(s.db, s.cfg.Storage.UploadDir, s.cfg.Storage.MaxPerJob)
	if _, err := job.Delete(s.db, j.ID, actor, files); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted job %s\n", j.JobNo)
	return nil
}
