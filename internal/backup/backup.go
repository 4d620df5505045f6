// Package backup keeps the ledger of manual data backups and works out
// when the next one is due.
package backup

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/audit"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
)

// DateLayout is the format of backup and due dates.
const DateLayout = "2006-01-02"

// ListLimit caps List results.
const ListLimit = 200

// DefaultDueSoonDays is the window before the due date that counts as
// due soon.
const DefaultDueSoonDays = 5

var (
	ErrNotFound = errors.New("backup: not found")
	ErrInvalid  = errors.New("backup: invalid input")
)

// State is the health of the backup schedule.
type State string

const (
	StateUpToDate State = "up_to_date"
	StateDueSoon  State = "due_soon"
	StateOverdue  State = "overdue"
	StateUnknown  State = "unknown"
)

// Status describes how far away the next backup is. DaysUntilDue is
// negative when overdue and meaningless when State is unknown.
type Status struct {
	State        State  `json:"state"`
	DaysUntilDue int    `json:"days_until_due"`
	NextDue      string `json:"next_due,omitempty"`
}

// AddOneMonth returns the date one calendar month after date, clamping the
// day to the last day of the target month.
func AddOneMonth(date string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalid, date)
	}
	y, m := d.Year(), d.Month()+1
	if m > time.December {
		y, m = y+1, time.January
	}
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Format(DateLayout), nil
}

// StatusOf classifies nextDue relative to today. Only the calendar dates
// are compared.
func StatusOf(nextDue string, today time.Time, dueSoonDays int) Status {
	due, err := time.Parse(DateLayout, nextDue)
	if err != nil {
		return Status{State: StateUnknown, NextDue: nextDue}
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	delta := int(due.Sub(day).Hours() / 24)

	st := Status{DaysUntilDue: delta, NextDue: nextDue}
	switch {
	case delta < 0:
		st.State = StateOverdue
	case delta <= dueSoonDays:
		st.State = StateDueSoon
	default:
		st.State = StateUpToDate
	}
	return st
}

// Entry is the editable part of a ledger row.
type Entry struct {
	BackupDate string
	Type       string
	Location   string
	Notes      string
}

func (e Entry) normalized() (Entry, string, error) {
	e.BackupDate = strings.TrimSpace(e.BackupDate)
	e.Type = strings.TrimSpace(e.Type)
	e.Location = strings.TrimSpace(e.Location)
	e.Notes = strings.TrimSpace(e.Notes)
	if e.BackupDate == "" {
		return e, "", fmt.Errorf("%w: backup date is required", ErrInvalid)
	}
	next, err := AddOneMonth(e.BackupDate)
	if err != nil {
		return e, "", err
	}
	return e, next, nil
}

// Add records a backup and writes a BACKUP_ADDED audit entry.
func Add(db *gorm.DB, e Entry, actor access.Actor) (*models.BackupLog, error) {
	e, next, err := e.normalized()
	if err != nil {
		return nil, err
	}
	row := models.BackupLog{
		BackupDate:     e.BackupDate,
		NextDue:        next,
		BackupType:     e.Type,
		BackupLocation: e.Location,
		Notes:          e.Notes,
		CreatedBy:      actor.ID,
		CreatedAt:      time.Now().UTC(),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("backup: add: %w", err)
		}
		_, err := audit.Append(tx, audit.Entry{
			UserID:  actor.ID,
			Action:  audit.ActionBackupAdd,
			Details: fmt.Sprintf("Backup on %s, next due %s", row.BackupDate, row.NextDue),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Update replaces a ledger row's fields, recomputes the due date and
// writes a BACKUP_EDITED audit entry.
func Update(db *gorm.DB, id uint, e Entry, actor access.Actor) (*models.BackupLog, error) {
	e, next, err := e.normalized()
	if err != nil {
		return nil, err
	}
	var row models.BackupLog
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return fmt.Errorf("backup: get %d: %w", id, err)
		}
		err := tx.Model(&row).Updates(map[string]interface{}{
			"backup_date":     e.BackupDate,
			"next_due":        next,
			"backup_type":     e.Type,
			"backup_location": e.Location,
			"notes":           e.Notes,
		}).Error
		if err != nil {
			return fmt.Errorf("backup: update %d: %w", id, err)
		}
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return fmt.Errorf("backup: reload %d: %w", id, err)
		}
		_, err = audit.Append(tx, audit.Entry{
			UserID:  actor.ID,
			Action:  audit.ActionBackupEdit,
			Details: fmt.Sprintf("Backup #%d updated: %s, next due %s", id, e.BackupDate, next),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Get retrieves a ledger row by id.
func Get(db *gorm.DB, id uint) (*models.BackupLog, error) {
	var row models.BackupLog
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("backup: get %d: %w", id, err)
	}
	return &row, nil
}

// List returns the most recent ledger rows, newest backup date first.
func List(db *gorm.DB) ([]models.BackupLog, error) {
	var rows []models.BackupLog
	if err := db.Order("backup_date DESC, id DESC").Limit(ListLimit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	return rows, nil
}

// Latest returns the newest ledger row, or nil when the ledger is empty.
func Latest(db *gorm.DB) (*models.BackupLog, error) {
	var rows []models.BackupLog
	if err := db.Order("backup_date DESC, id DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("backup: latest: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Current reports the schedule status from the newest ledger row. An empty
// ledger is unknown.
func Current(db *gorm.DB, today time.Time, dueSoonDays int) (Status, *models.BackupLog, error) {
	last, err := Latest(db)
	if err != nil {
		return Status{}, nil, err
	}
	if last == nil {
		return Status{State: StateUnknown}, nil, nil
	}
	return StatusOf(last.NextDue, today, dueSoonDays), last, nil
}
