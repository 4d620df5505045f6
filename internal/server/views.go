package server

import (
	"time"

	"github.com/sysfr3ak/archive-sys/internal/audit"
	"github.com/sysfr3ak/archive-sys/internal/history"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"github.com/sysfr3ak/archive-sys/internal/stage"
)

type outsourcingView struct {
	PlateSentAt     *time.Time `json:"plate_sent_at"`
	PlateReceivedAt *time.Time `json:"plate_received_at"`
	DieSentAt       *time.Time `json:"die_sent_at"`
	DieReceivedAt   *time.Time `json:"die_received_at"`
	PaperSentAt     *time.Time `json:"paper_sent_at"`
	PaperDoneAt     *time.Time `json:"paper_done_at"`
}

type checklistView struct {
	Plate bool `json:"plate"`
	Die   bool `json:"die"`
	Paper bool `json:"paper"`
}

type jobView struct {
	ID             uint            `json:"id"`
	JobNo          string          `json:"job_no"`
	Name           string          `json:"name"`
	Date           string          `json:"date"`
	Paper          string          `json:"paper"`
	Note           string          `json:"note"`
	Price          string          `json:"price"`
	Serial         string          `json:"serial"`
	Stage          string          `json:"stage"`
	StageLabel     string          `json:"stage_label"`
	StageUpdatedBy uint            `json:"stage_updated_by"`
	StageUpdatedAt time.Time       `json:"stage_updated_at"`
	Checklist      checklistView   `json:"checklist"`
	Outsourcing    outsourcingView `json:"outsourcing"`
	CreatedBy      uint            `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	EditedBy       *uint           `json:"edited_by,omitempty"`
	EditedAt       *time.Time      `json:"edited_at,omitempty"`
}

func newJobView(j *models.Job) jobView {
	return jobView{
		ID:             j.ID,
		JobNo:          j.JobNo,
		Name:           j.Name,
		Date:           j.Date,
		Paper:          j.Paper,
		Note:           j.Note,
		Price:          j.Price,
		Serial:         j.Serial,
		Stage:          j.Stage,
		StageLabel:     stage.DisplayLabel(j.Stage),
		StageUpdatedBy: j.StageUpdatedBy,
		StageUpdatedAt: j.StageUpdatedAt,
		Checklist:      checklistView{Plate: j.PrePlate, Die: j.PreDie, Paper: j.PrePaper},
		Outsourcing: outsourcingView{
			PlateSentAt:     j.PlateSentAt,
			PlateReceivedAt: j.PlateReceivedAt,
			DieSentAt:       j.DieSentAt,
			DieReceivedAt:   j.DieReceivedAt,
			PaperSentAt:     j.PaperSentAt,
			PaperDoneAt:     j.PaperDoneAt,
		},
		CreatedBy: j.CreatedBy,
		CreatedAt: j.CreatedAt,
		EditedBy:  j.EditedBy,
		EditedAt:  j.EditedAt,
	}
}

func newJobViews(jobs []models.Job) []jobView {
	out := make([]jobView, 0, len(jobs))
	for i := range jobs {
		out = append(out, newJobView(&jobs[i]))
	}
	return out
}

// transitionView lists the outsourcing columns first recorded by the
// transition alongside the updated job.
type transitionView struct {
	Job      jobView  `json:"job"`
	Recorded []string `json:"recorded"`
}

type historyView struct {
	ID         uint          `json:"id"`
	JobID      uint          `json:"job_id"`
	JobNo      string        `json:"job_no"`
	Stage      string        `json:"stage"`
	StageLabel string        `json:"stage_label"`
	UpdatedBy  uint          `json:"updated_by"`
	ActorName  string        `json:"actor_name"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Checklist  checklistView `json:"checklist"`
}

func newHistoryViews(entries []history.Entry) []historyView {
	out := make([]historyView, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyView{
			ID:         e.ID,
			JobID:      e.JobID,
			JobNo:      e.JobNo,
			Stage:      e.Stage,
			StageLabel: e.StageLabel,
			UpdatedBy:  e.UpdatedBy,
			ActorName:  e.ActorName,
			UpdatedAt:  e.UpdatedAt,
			Checklist:  checklistView{Plate: e.PrePlate, Die: e.PreDie, Paper: e.PrePaper},
		})
	}
	return out
}

type activityView struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	JobID     *uint     `json:"job_id"`
	JobNo     string    `json:"job_no"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

func newActivityViews(rows []audit.Row) []activityView {
	out := make([]activityView, 0, len(rows))
	for _, r := range rows {
		out = append(out, activityView{
			ID:        r.ID,
			UserID:    r.UserID,
			ActorName: r.ActorName,
			Action:    r.Action,
			JobID:     r.JobID,
			JobNo:     r.JobNo,
			Details:   r.Details,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

type photoView struct {
	ID         uint      `json:"id"`
	JobID      uint      `json:"job_id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func newPhotoView(p *models.Photo) photoView {
	return photoView{ID: p.ID, JobID: p.JobID, Filename: p.Filename, UploadedAt: p.UploadedAt}
}

type backupView struct {
	ID         uint      `json:"id"`
	BackupDate string    `json:"backup_date"`
	NextDue    string    `json:"next_due"`
	Type       string    `json:"backup_type"`
	Location   string    `json:"backup_location"`
	Notes      string    `json:"notes"`
	CreatedBy  uint      `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func newBackupView(b *models.BackupLog) backupView {
	return backupView{
		ID:         b.ID,
		BackupDate: b.BackupDate,
		NextDue:    b.NextDue,
		Type:       b.BackupType,
		Location:   b.BackupLocation,
		Notes:      b.Notes,
		CreatedBy:  b.CreatedBy,
		CreatedAt:  b.CreatedAt,
	}
}

type userView struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID, FullName: u.FullName, Username: u.Username, Role: u.Role}
}
