package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/history"
	"github.com/sysfr3ak/archive-sys/internal/job"
	"github.com/sysfr3ak/archive-sys/internal/stage"
)

func newStageCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage catalog and transitions",
	}

	cmd.AddCommand(newStageListCmd(opts))
	cmd.AddCommand(newStageSetCmd(opts))
	cmd.AddCommand(newStageHistoryCmd(opts))
	return cmd
}

func newStageListCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stage catalog with job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageList(cmd, opts)
		},
	}
}

func runStageList(cmd *cobra.Command, opts *rootOpts) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	counts, err := job.CountByStage(s.db)
	if err != nil {
		return err
	}
	byStage := make(map[string]int64, len(counts))
	for _, c := range counts {
		byStage[c.Stage] = c.Count
	}

	rows := make([][]string, 0, len(stage.All()))
	for _, st := range stage.All() {
		rows = append(rows, []string{st.Code, st.Label, string(st.Group), strconv.FormatInt(byStage[st.Code], 10)})
		delete(byStage, st.Code)
	}
	// Codes stored outside the catalog are listed verbatim.
	for _, c := range counts {
		if _, ok := byStage[c.Stage]; ok {
			rows = append(rows, []string{c.Stage, c.Stage, "-", strconv.FormatInt(c.Count, 10)})
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"CODE", "LABEL", "GROUP", "JOBS"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
	return nil
}

func newStageSetCmd(opts *rootOpts) *cobra.Command {
	var req job.TransitionRequest

	cmd := &cobra.Command{
		Use:   "set <job-no>",
		Short: "Move a job to a stage",
		Long: `Records a stage transition. The pre-press checklist is replaced by the
given flags. Outsourcing flags stamp the event time once; an event that was
already recorded keeps its first time. Without --stage the current stage is
kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageSet(cmd, opts, args[0], req)
		},
	}

	cmd.Flags().StringVar(&req.Stage, "stage", "", "target stage code")
	addChecklistFlags(cmd, &req.Checklist)
	cmd.Flags().BoolVar(&req.Ticks.PlateSent, "plate-sent", false, "plate sent to the outsourcer")
	cmd.Flags().BoolVar(&req.Ticks.PlateReceived, "plate-received", false, "plate received back")
	cmd.Flags().BoolVar(&req.Ticks.DieSent, "die-sent", false, "die sent to the outsourcer")
	cmd.Flags().BoolVar(&req.Ticks.DieReceived, "die-received", false, "die received back")
	cmd.Flags().BoolVar(&req.Ticks.PaperSent, "paper-sent", false, "paper sent for cutting")
	cmd.Flags().BoolVar(&req.Ticks.PaperDone, "paper-done", false, "paper cutting done")
	return cmd
}

func runStageSet(cmd *cobra.Command, opts *rootOpts, jobNo string, req job.TransitionRequest) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	actor, err := s.actor(opts, access.UpdateStage)
	if err != nil {
		return err
	}
	if err := s.checkStage(req.Stage); err != nil {
		return err
	}
	j, err := job.GetByNumber(s.db, jobNo)
	if err != nil {
		return err
	}

	req.Actor = actor
	req.Now = time.Now()
	res, err := job.ApplyTransition(s.db, j.ID, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s now at %s\n", res.Job.JobNo, stage.DisplayLabel(res.Job.Stage))
	if len(res.Recorded) > 0 {
		fmt.Fprintf(out, "Recorded: %s\n", strings.Join(res.Recorded, ", "))
	}
	return nil
}

func newStageHistoryCmd(opts *rootOpts) *cobra.Command {
	var jobID uint

	cmd := &cobra.Command{
		Use:   "history [job-no]",
		Short: "Show a job's stage history",
		Long:  "Shows the stage ledger oldest first. Use --id for jobs that were deleted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobNo := ""
			if len(args) == 1 {
				jobNo = args[0]
			}
			return runStageHistory(cmd, opts, jobNo, jobID)
		},
	}

	cmd.Flags().UintVar(&jobID, "id", 0, "job id (works after deletion)")
	return cmd
}

func runStageHistory(cmd *cobra.Command, opts *rootOpts, jobNo string, jobID uint) error {
	if (jobNo == "") == (jobID == 0) {
		return fmt.Errorf("give either a job number or --id")
	}

	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if jobNo != "" {
		j, err := job.GetByNumber(s.db, jobNo)
		if err != nil {
			return err
		}
		jobID = j.ID
	}

	entries, err := history.ListFor(s.db, jobID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history recorded.")
		return nil
	}
	fmt.Fprintln(out, renderHistory(entries, s))
	return nil
}
