// Package job provides the job record store and the stage transition
// engine that moves jobs through production.
package job

import (
	"errors"
	"fmt"
	"log/slog"
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

var (
	// ErrNotFound is returned when no job has the requested id or number.
	ErrNotFound = errors.New("job: not found")
	// ErrDuplicateJobNumber is returned when a job number is already taken.
	ErrDuplicateJobNumber = errors.New("job: duplicate job number")
	// ErrInvalid is returned when a required field is missing.
	ErrInvalid = errors.New("job: invalid input")
)

// Metadata holds the general, freely editable job fields.
type Metadata struct {
	Name   string
	Date   string // YYYY-MM-DD
	Paper  string
	Note   string
	Price  string
	Serial string
}

func (m Metadata) trimmed() Metadata {
	return Metadata{
		Name:   strings.TrimSpace(m.Name),
		Date:   strings.TrimSpace(m.Date),
		Paper:  strings.TrimSpace(m.Paper),
		Note:   strings.TrimSpace(m.Note),
		Price:  strings.TrimSpace(m.Price),
		Serial: strings.TrimSpace(m.Serial),
	}
}

// Checklist is the pre-press readiness state. It is replaced wholesale on
// every transition.
type Checklist struct {
	Plate bool
	Die   bool
	Paper bool
}

// Attachments is the file store that keeps a job's photos, keyed by job
// number.
type Attachments interface {
	Rename(oldJobNo, newJobNo string) error
	Purge(jobNo string) error
}

// CreateOpts holds parameters for creating a job.
type CreateOpts struct {
	JobNo string
	Metadata
	Stage     string // defaults to the first catalog stage
	Checklist Checklist
	Actor     access.Actor
	Now       time.Time // defaults to time.Now
}

// MetadataUpdate is the full replacement set for UpdateMetadata.
type MetadataUpdate struct {
	JobNo string
	Metadata
}

// Create inserts a job and records its initial stage in the history ledger
// and a CREATE_JOB entry in the audit log, all in one transaction.
func Create(db *gorm.DB, opts CreateOpts) (*models.Job, error) {
	jobNo := strings.TrimSpace(opts.JobNo)
	meta := opts.Metadata.trimmed()
	if jobNo == "" {
		return nil, fmt.Errorf("%w: job number is required", ErrInvalid)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalid)
	}

	st := strings.TrimSpace(opts.Stage)
	if st == "" {
		st = stage.First()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	j := models.Job{
		JobNo:          jobNo,
		Name:           meta.Name,
		Date:           meta.Date,
		Paper:          meta.Paper,
		Note:           meta.Note,
		Price:          meta.Price,
		Serial:         meta.Serial,
		CreatedBy:      opts.Actor.ID,
		CreatedAt:      now,
		Stage:          st,
		StageUpdatedBy: opts.Actor.ID,
		StageUpdatedAt: now,
		PrePlate:       opts.Checklist.Plate,
		PreDie:         opts.Checklist.Die,
		PrePaper:       opts.Checklist.Paper,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, jobNo, 0); err != nil {
			return err
		}
		if err := tx.Create(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrDuplicateJobNumber, jobNo)
			}
			return fmt.Errorf("job: create %s: %w", jobNo, err)
		}

		entry := models.StageHistory{
			JobID:     j.ID,
			JobNo:     j.JobNo,
			Stage:     j.Stage,
			UpdatedBy: opts.Actor.ID,
			UpdatedAt: now,
			PrePlate:  j.PrePlate,
			PreDie:    j.PreDie,
			PrePaper:  j.PrePaper,
		}
		if err := history.Append(tx, &entry); err != nil {
			return err
		}

		_, err := audit.Append(tx, audit.Entry{
			UserID: opts.Actor.ID,
			Action: audit.ActionCreateJob,
			JobID:  &j.ID,
			JobNo:  j.JobNo,
			At:     now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.JobsCreated.Inc()
	return &j, nil
}

// Get retrieves a job by id.
func Get(db *gorm.DB, id uint) (*models.Job, error) {
	var j models.Job
	if err := db.Where("id = ?", id).First(&j).Error; err != nil {
		return nil, lookupErr(fmt.Sprintf("id %d", id), err)
	}
	return &j, nil
}

// GetByNumber retrieves a job by its job number.
func GetByNumber(db *gorm.DB, jobNo string) (*models.Job, error) {
	var j models.Job
	if err := db.Where("job_no = ?", jobNo).First(&j).Error; err != nil {
		return nil, lookupErr(fmt.Sprintf("number %q", jobNo), err)
	}
	return &j, nil
}

// UpdateMetadata replaces the general fields of a job. Stage, checklist and
// outsourcing timestamps are never touched, and no history entry is
// written. When the job number changes the attachment folder follows it.
func UpdateMetadata(db *gorm.DB, id uint, upd MetadataUpdate, actor access.Actor, files Attachments) (*models.Job, error) {
	jobNo := strings.TrimSpace(upd.JobNo)
	meta := upd.Metadata.trimmed()
	if jobNo == "" {
		return nil, fmt.Errorf("%w: job number is required", ErrInvalid)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalid)
	}

	now := time.Now().UTC()
	var oldJobNo string
	var updated models.Job

	err := db.Transaction(func(tx *gorm.DB) error {
		var current models.Job
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			return lookupErr(fmt.Sprintf("id %d", id), err)
		}
		oldJobNo = current.JobNo

		if err := checkUnique(tx, jobNo, id); err != nil {
			return err
		}

		err := tx.Model(&models.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
			"job_no":    jobNo,
			"name":      meta.Name,
			"date":      meta.Date,
			"paper":     meta.Paper,
			"note":      meta.Note,
			"price":     meta.Price,
			"serial":    meta.Serial,
			"edited_by": actor.ID,
			"edited_at": now,
		}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrDuplicateJobNumber, jobNo)
			}
			return fmt.Errorf("job: update %d: %w", id, err)
		}

		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			return fmt.Errorf("job: reload %d: %w", id, err)
		}

		_, err = audit.Append(tx, audit.Entry{
			UserID: actor.ID,
			Action: audit.ActionEditJob,
			JobID:  &updated.ID,
			JobNo:  updated.JobNo,
			At:     now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if files != nil && oldJobNo != updated.JobNo {
		if err := files.Rename(oldJobNo, updated.JobNo); err != nil {
			slog.Warn("rename attachment folder", "job_id", id, "from", oldJobNo, "to", updated.JobNo, "error", err)
		}
	}
	return &updated, nil
}

// Delete removes a job and its photo rows, then purges its files. History
// and audit entries are left in place and keep referring to the old id.
func Delete(db *gorm.DB, id uint, actor access.Actor, files Attachments) (*models.Job, error) {
	var deleted models.Job

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&deleted).Error; err != nil {
			return lookupErr(fmt.Sprintf("id %d", id), err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&models.Photo{}).Error; err != nil {
			return fmt.Errorf("job: delete photos of %d: %w", id, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Job{}).Error; err != nil {
			return fmt.Errorf("job: delete %d: %w", id, err)
		}
		_, err := audit.Append(tx, audit.Entry{
			UserID: actor.ID,
			Action: audit.ActionDeleteJob,
			JobID:  &id,
			JobNo:  deleted.JobNo,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.JobsDeleted.Inc()
	if files != nil {
		if err := files.Purge(deleted.JobNo); err != nil {
			slog.Warn("purge attachments", "job_id", id, "job_no", deleted.JobNo, "error", err)
		}
	}
	return &deleted, nil
}

// checkUnique fails with ErrDuplicateJobNumber when another job (other
// than exceptID) already uses jobNo.
func checkUnique(tx *gorm.DB, jobNo string, exceptID uint) error {
	q := tx.Model(&models.Job{}).Where("job_no = ?", jobNo)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("job: check job number %s: %w", jobNo, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateJobNumber, jobNo)
	}
	return nil
}

func lookupErr(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("job: get %s: %w", what, err)
}
