// Package history is the append-only ledger of stage transitions. Each job
// accumulates one entry per transition; entries are never changed and are
// kept after the job itself is deleted.
package history

import (
	"fmt"

	"github.com/sysfr3ak/archive-sys/internal/models"
	"github.com/sysfr3ak/archive-sys/internal/stage"
	"gorm.io/gorm"
)

// Entry is a ledger row with display fields resolved.
type Entry struct {
	models.StageHistory
	StageLabel string
	ActorName  string // empty when the user no longer exists
}

// Append inserts e. It only checks that the required fields are present.
func Append(db *gorm.DB, e *models.StageHistory) error {
	if e.JobID == 0 {
		return fmt.Errorf("history: job id is required")
	}
	if e.Stage == "" {
		return fmt.Errorf("history: stage is required")
	}
	if e.UpdatedAt.IsZero() {
		return fmt.Errorf("history: timestamp is required")
	}
	if err := db.Create(e).Error; err != nil {
		return fmt.Errorf("history: append for job %d: %w", e.JobID, err)
	}
	return nil
}

// ListFor returns the ledger for a job in timestamp order, oldest first.
// Entries sharing a timestamp keep insertion order.
func ListFor(db *gorm.DB, jobID uint) ([]Entry, error) {
	var rows []models.StageHistory
	if err := db.Where("job_id = ?", jobID).Order("updated_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: list for job %d: %w", jobID, err)
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UpdatedBy)
	}
	names := make(map[uint]string)
	if len(ids) > 0 {
		var users []models.User
		if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("history: resolve actors: %w", err)
		}
		for _, u := range users {
			names[u.ID] = u.FullName
		}
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			StageHistory: r,
			StageLabel:   stage.DisplayLabel(r.Stage),
			ActorName:    names[r.UpdatedBy],
		}
	}
	return entries, nil
}

// Count returns the number of ledger entries for a job.
func Count(db *gorm.DB, jobID uint) (int64, error) {
	var n int64
	if err := db.Model(&models.StageHistory{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("history: count for job %d: %w", jobID, err)
	}
	return n, nil
}
