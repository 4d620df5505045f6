// Package audit is the system-wide, append-only record of state-changing
// actions. Entries are never updated or deleted, and deleting a job or
// user leaves its entries in place.
package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/sysfr3ak/archive-sys/internal/metrics"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
)

// Action is the kind of change an entry records.
type Action string

const (
	ActionCreateJob   Action = "CREATE_JOB"
	ActionEditJob     Action = "EDIT_JOB"
	ActionDeleteJob   Action = "DELETE_JOB"
	ActionUpdateStage Action = "UPDATE_STAGE"
	ActionDeletePhoto Action = "DELETE_PHOTO"
	ActionCreateUser  Action = "CREATE_USER"
	ActionDeleteUser  Action = "DELETE_USER"
	ActionBackupAdd   Action = "BACKUP_ADDED"
	ActionBackupEdit  Action = "BACKUP_EDITED"
)

// MaxRows caps every query result. There is no cursor; narrow the filter
// to see older rows.
const MaxRows = 500

// DateLayout is the date-only format accepted by Filter.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for filter dates not in DateLayout.
var ErrInvalidDate = errors.New("audit: invalid date")

// Entry is the input to Append.
type Entry struct {
	UserID  uint
	Action  Action
	JobID   *uint
	JobNo   string
	Details string
	At      time.Time // defaults to now
}

// Row is a query result with the actor's display name resolved. ActorName
// is empty when the user no longer exists.
type Row struct {
	models.ActivityLog
	ActorName string
}

// Filter selects entries by calendar day. A non-empty Date takes precedence
// over From/To, which are then ignored entirely.
type Filter struct {
	Date     string
	From     string
	To       string
	Limit    int
	Location *time.Location // day boundaries; defaults to time.Local
}

// Append writes one entry. Timestamps are stored in UTC.
func Append(db *gorm.DB, e Entry) (*models.ActivityLog, error) {
	if e.Action == "" {
		return nil, fmt.Errorf("audit: action is required")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	row := models.ActivityLog{
		UserID:    e.UserID,
		Action:    string(e.Action),
		JobID:     e.JobID,
		JobNo:     e.JobNo,
		Details:   e.Details,
		CreatedAt: at.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("audit: append %s: %w", e.Action, err)
	}
	metrics.AuditEntries.WithLabelValues(string(e.Action)).Inc()
	return &row, nil
}

// Query returns entries matching f, newest first, at most MaxRows.
func Query(db *gorm.DB, f Filter) ([]Row, error) {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}

	q := db.Model(&models.ActivityLog{})
	if f.Date != "" {
		day, err := parseDay(f.Date, loc)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at >= ? AND created_at < ?", day.UTC(), day.AddDate(0, 0, 1).UTC())
	} else {
		if f.From != "" {
			from, err := parseDay(f.From, loc)
			if err != nil {
				return nil, err
			}
			q = q.Where("created_at >= ?", from.UTC())
		}
		if f.To != "" {
			to, err := parseDay(f.To, loc)
			if err != nil {
				return nil, err
			}
			q = q.Where("created_at < ?", to.AddDate(0, 0, 1).UTC())
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxRows {
		limit = MaxRows
	}

	var logs []models.ActivityLog
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}

	ids := make([]uint, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.UserID)
	}
	names, err := actorNames(db, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(logs))
	for i, l := range logs {
		rows[i] = Row{ActivityLog: l, ActorName: names[l.UserID]}
	}
	return rows, nil
}

// ForJob returns every entry that references jobID, oldest first.
func ForJob(db *gorm.DB, jobID uint) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	if err := db.Where("job_id = ?", jobID).Order("created_at ASC, id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit: entries for job %d: %w", jobID, err)
	}
	return logs, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// actorNames maps user IDs to full names, skipping users that are gone.
func actorNames(db *gorm.DB, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string)
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("audit: resolve actors: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names, nil
}
