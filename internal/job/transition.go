package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/audit"
	"github.com/sysfr3ak/archive-sys/internal/history"
	"github.com/sysfr3ak/archive-sys/internal/metrics"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"github.com/sysfr3ak/archive-sys/internal/stage"
	"gorm.io/gorm"
)

// Ticks marks the outsourcing events observed with a transition. An
// unticked field means "no change", never "clear".
type Ticks struct {
	PlateSent     bool
	PlateReceived bool
	DieSent       bool
	DieReceived   bool
	PaperSent     bool
	PaperDone     bool
}

// TransitionRequest is one stage update. An empty Stage keeps the job's
// current stage.
type TransitionRequest struct {
	Stage     string
	Checklist Checklist
	Ticks     Ticks
	Actor     access.Actor
	Now       time.Time // defaults to time.Now
}

// TransitionResult is the state after a transition was applied.
type TransitionResult struct {
	Job   *models.Job
	Entry models.StageHistory
	// Recorded lists the outsourcing columns this transition set for the
	// first time.
	Recorded []string
}

type outsourcingField struct {
	column string
	ticked func(Ticks) bool
	value  func(*models.Job) *time.Time
}

var outsourcingFields = []outsourcingField{
	{"plate_sent_at", func(t Ticks) bool { return t.PlateSent }, func(j *models.Job) *time.Time { return j.PlateSentAt }},
	{"plate_received_at", func(t Ticks) bool { return t.PlateReceived }, func(j *models.Job) *time.Time { return j.PlateReceivedAt }},
	{"die_sent_at", func(t Ticks) bool { return t.DieSent }, func(j *models.Job) *time.Time { return j.DieSentAt }},
	{"die_received_at", func(t Ticks) bool { return t.DieReceived }, func(j *models.Job) *time.Time { return j.DieReceivedAt }},
	{"paper_sent_at", func(t Ticks) bool { return t.PaperSent }, func(j *models.Job) *time.Time { return j.PaperSentAt }},
	{"paper_done_at", func(t Ticks) bool { return t.PaperDone }, func(j *models.Job) *time.Time { return j.PaperDoneAt }},
}

// ApplyTransition sets a job's stage and checklist, records any newly
// ticked outsourcing events, appends one history entry and one
// UPDATE_STAGE audit entry. All writes share one transaction.
//
// Outsourcing timestamps are write-once: the update is expressed as
// COALESCE(column, now) so a value that is already set, including one set
// by a concurrent transition, is never replaced.
//
// Stage codes are stored as given; callers that want to reject unknown
// codes check them with stage.Check first.
func ApplyTransition(db *gorm.DB, jobID uint, req TransitionRequest) (*TransitionResult, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var res TransitionResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var before models.Job
		if err := tx.Where("id = ?", jobID).First(&before).Error; err != nil {
			return lookupErr(fmt.Sprintf("id %d", jobID), err)
		}

		effective := resolveStage(req.Stage, before.Stage)
		updates := map[string]interface{}{
			"stage":            effective,
			"stage_updated_by": req.Actor.ID,
			"stage_updated_at": now,
			"pre_plate":        req.Checklist.Plate,
			"pre_die":          req.Checklist.Die,
			"pre_paper":        req.Checklist.Paper,
		}
		for _, f := range outsourcingFields {
			if f.ticked(req.Ticks) {
				updates[f.column] = gorm.Expr("COALESCE("+f.column+", ?)", now)
			}
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
			return fmt.Errorf("job: transition %d: %w", jobID, err)
		}

		var after models.Job
		if err := tx.Where("id = ?", jobID).First(&after).Error; err != nil {
			return fmt.Errorf("job: reload %d: %w", jobID, err)
		}
		for _, f := range outsourcingFields {
			if f.ticked(req.Ticks) && f.value(&before) == nil && f.value(&after) != nil {
				res.Recorded = append(res.Recorded, f.column)
			}
		}

		entry := models.StageHistory{
			JobID:     after.ID,
			JobNo:     after.JobNo,
			Stage:     effective,
			UpdatedBy: req.Actor.ID,
			UpdatedAt: now,
			PrePlate:  req.Checklist.Plate,
			PreDie:    req.Checklist.Die,
			PrePaper:  req.Checklist.Paper,
		}
		if err := history.Append(tx, &entry); err != nil {
			return err
		}

		_, err := audit.Append(tx, audit.Entry{
			UserID:  req.Actor.ID,
			Action:  audit.ActionUpdateStage,
			JobID:   &after.ID,
			JobNo:   after.JobNo,
			Details: transitionDetails(effective, req.Checklist),
			At:      now,
		})
		if err != nil {
			return err
		}

		res.Job = &after
		res.Entry = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StageTransitions.WithLabelValues(metricStage(res.Entry.Stage)).Inc()
	for _, col := range res.Recorded {
		metrics.OutsourcingEvents.WithLabelValues(col).Inc()
	}
	return &res, nil
}

// resolveStage picks the requested stage, then the current one, then the
// first catalog stage.
func resolveStage(requested, current string) string {
	if s := strings.TrimSpace(requested); s != "" {
		return s
	}
	if current != "" {
		return current
	}
	return stage.First()
}

func transitionDetails(code string, c Checklist) string {
	return fmt.Sprintf("Stage set to %s; Pre-press: Plate=%t, Die=%t, Paper=%t",
		stage.DisplayLabel(code), c.Plate, c.Die, c.Paper)
}

// metricStage bounds the label cardinality to the catalog.
func metricStage(code string) string {
	if stage.Known(code) {
		return code
	}
	return "other"
}
