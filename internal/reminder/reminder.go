// Package reminder checks the backup ledger on a schedule and nudges people
// through chat when the next backup is due or overdue.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sysfr3ak/archive-sys/internal/backup"
	"github.com/sysfr3ak/archive-sys/internal/metrics"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
)

// DefaultSchedule runs the check every morning at 08:00.
const DefaultSchedule = "0 8 * * *"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("reminder: schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Field is a key-value pair shown alongside the reminder text.
type Field struct {
	Name  string
	Value string
}

// Message is a reminder ready for delivery.
type Message struct {
	Title    string
	Text     string
	Severity string // "warning" or "error"
	Fields   []Field
}

// Notifier delivers reminders to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes reminders to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Name() string { return "log" }

func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"title", msg.Title, "severity", msg.Severity}
	for _, f := range msg.Fields {
		args = append(args, f.Name, f.Value)
	}
	logger.Warn(msg.Text, args...)
	return nil
}

// Checker evaluates the backup schedule and fans reminders out to its
// notifiers.
type Checker struct {
	DB          *gorm.DB
	DueSoonDays int
	Notifiers   []Notifier
	Logger      *slog.Logger
	Now         func() time.Time // defaults to time.Now
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// CheckOnce reads the latest backup and sends a reminder when one is due
// soon, overdue or was never recorded. It reports whether a reminder went
// out. Delivery errors from individual notifiers are joined.
func (c *Checker) CheckOnce(ctx context.Context) (backup.Status, bool, error) {
	days := c.DueSoonDays
	if days <= 0 {
		days = backup.DefaultDueSoonDays
	}
	st, last, err := backup.Current(c.DB.WithContext(ctx), c.now(), days)
	if err != nil {
		return st, false, err
	}
	if st.State != backup.StateUnknown {
		metrics.BackupDaysUntilDue.Set(float64(st.DaysUntilDue))
	}
	if st.State == backup.StateUpToDate {
		return st, false, nil
	}

	msg := Compose(st, last)
	var errs []error
	for _, n := range c.Notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return st, true, errors.Join(errs...)
}

// Run performs a check at every fire time of schedule until ctx is
// cancelled. Check failures are logged and do not stop the loop.
func (c *Checker) Run(ctx context.Context, schedule string) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	log := c.logger()
	for {
		next := sched.Next(c.now())
		log.Debug("next backup check", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		st, sent, err := c.CheckOnce(ctx)
		if err != nil {
			log.Warn("backup check", "error", err)
			continue
		}
		log.Info("backup check", "state", st.State, "days_until_due", st.DaysUntilDue, "reminded", sent)
	}
}

// Compose builds the reminder text for a non-current status.
func Compose(st backup.Status, last *models.BackupLog) Message {
	msg := Message{Title: "Backup reminder", Severity: "warning"}
	switch st.State {
	case backup.StateOverdue:
		msg.Severity = "error"
		msg.Text = fmt.Sprintf("Backup is overdue by %d day(s), it was due %s.", -st.DaysUntilDue, st.NextDue)
	case backup.StateDueSoon:
		if st.DaysUntilDue == 0 {
			msg.Text = "Backup is due today."
		} else {
			msg.Text = fmt.Sprintf("Backup is due in %d day(s), on %s.", st.DaysUntilDue, st.NextDue)
		}
	default:
		msg.Text = "No backup has been recorded yet."
	}
	if last != nil {
		msg.Fields = append(msg.Fields, Field{Name: "last_backup", Value: last.BackupDate})
		if last.BackupLocation != "" {
			msg.Fields = append(msg.Fields, Field{Name: "location", Value: last.BackupLocation})
		}
	}
	return msg
}
