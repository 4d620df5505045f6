package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	requirex "github.com/stretchr/testify/require"
	"github.com/sysfr3ak/archive-sys/internal/config"
	"github.com/sysfr3ak/archive-sys/internal/db"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"github.com/sysfr3ak/archive-sys/internal/stage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db      *gorm.DB
	handler http.Handler
	cfg     *config.Config
	users   map[string]uint
}

func newFixture(t *testing.T, yamlCfg string) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	requirex.NoError(t, err)
	sqlDB, err := gdb.DB()
	requirex.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	requirex.NoError(t, db.AutoMigrate(gdb))

	cfg, err := config.Parse([]byte(yamlCfg), config.FormatYAML)
	requirex.NoError(t, err)
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Tracker.Timezone = "UTC"

	users := map[string]uint{}
	for _, role := range []string{"superadmin", "admin", "staff", "viewer"} {
		u := models.User{Username: role, FullName: strings.ToUpper(role[:1]) + role[1:], Role: role}
		requirex.NoError(t, gdb.Create(&u).Error)
		users[role] = u.ID
	}

	s, err := New(Options{DB: gdb, Config: cfg})
	requirex.NoError(t, err)
	return &fixture{db: gdb, handler: s.Handler(), cfg: cfg, users: users}
}

func (f *fixture) do(t *testing.T, as, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		requirex.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set(headerActorID, fmt.Sprint(f.users[as]))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	requirex.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) createJob(t *testing.T, jobNo string) jobView {
	t.Helper()
	rec := f.do(t, "staff", http.MethodPost, "/jobs", map[string]any{
		"job_no": jobNo,
		"name":   "Acme Ltd",
		"date":   "2024-03-05",
	})
	requirex.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[jobView](t, rec)
}

func TestNew_NilDB(t *testing.T) {
	_, err := New(Options{})
	requirex.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	requirex.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}

func TestHealthz_NoActor(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestMetrics_NoActor(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archive_")
}

func TestAuth_MissingAndUnknownActor(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, "", http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set(headerActorID, "9999")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
}

func TestStages(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, "viewer", http.MethodGet, "/stages", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]stage.Stage](t, rec)
	assert.Equal(t, stage.All(), got)
}

func TestJobs_CreateGetList(t *testing.T) {
	f := newFixture(t, "")
	created := f.createJob(t, "J-100")
	assert.Equal(t, stage.First(), created.Stage)
	assert.Equal(t, "Pre-Press: Designing", created.StageLabel)

	rec := f.do(t, "viewer", http.MethodGet, fmt.Sprintf("/jobs/%d", created.ID), nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "J-100", decode[jobView](t, rec).JobNo)

	f.createJob(t, "J-200")
	rec = f.do(t, "viewer", http.MethodGet, "/jobs?q=J-2", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]jobView](t, rec)
	requirex.Len(t, list, 1)
	assert.Equal(t, "J-200", list[0].JobNo)

	rec = f.do(t, "viewer", http.MethodGet, "/jobs/years", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024"}, decode[[]string](t, rec))
}

func TestJobs_Errors(t *testing.T) {
	f := newFixture(t, "")
	f.createJob(t, "J-1")

	rec := f.do(t, "staff", http.MethodPost, "/jobs", map[string]any{"job_no": "J-1", "name": "X"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "staff", http.MethodPost, "/jobs", map[string]any{"job_no": "J-2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "viewer", http.MethodPost, "/jobs", map[string]any{"job_no": "J-3", "name": "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "viewer", http.MethodGet, "/jobs/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not found")

	rec = f.do(t, "viewer", http.MethodGet, "/jobs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "viewer", http.MethodGet, "/jobs?mode=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobs_UpdateAndDelete(t *testing.T) {
	f := newFixture(t, "")
	j := f.createJob(t, "J-1")
	path := fmt.Sprintf("/jobs/%d", j.ID)

	rec := f.do(t, "staff", http.MethodPut, path, map[string]any{"job_no": "J-1", "name": "New"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "admin", http.MethodPut, path, map[string]any{"job_no": "J-1b", "name": "New"})
	requirex.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[jobView](t, rec)
	assert.Equal(t, "J-1b", updated.JobNo)
	requirex.NotNil(t, updated.EditedBy)
	assert.Equal(t, f.users["admin"], *updated.EditedBy)

	rec = f.do(t, "admin", http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, "admin", http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransition_AndHistory(t *testing.T) {
	f := newFixture(t, "")
	j := f.createJob(t, "J-1")

	rec := f.do(t, "staff", http.MethodPost, fmt.Sprintf("/jobs/%d/stage", j.ID), map[string]any{
		"stage":     stage.Printing,
		"checklist": map[string]bool{"plate": true},
		"ticks":     map[string]bool{"plate_sent": true},
	})
	requirex.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[transitionView](t, rec)
	assert.Equal(t, stage.Printing, res.Job.Stage)
	assert.True(t, res.Job.Checklist.Plate)
	requirex.NotNil(t, res.Job.Outsourcing.PlateSentAt)
	assert.Len(t, res.Recorded, 1)
	first := *res.Job.Outsourcing.PlateSentAt

	rec = f.do(t, "staff", http.MethodPost, fmt.Sprintf("/jobs/%d/stage", j.ID), map[string]any{
		"ticks": map[string]bool{"plate_sent": true},
	})
	requirex.Equal(t, http.StatusOK, rec.Code)
	res = decode[transitionView](t, rec)
	assert.Equal(t, stage.Printing, res.Job.Stage)
	assert.False(t, res.Job.Checklist.Plate)
	assert.True(t, first.Equal(*res.Job.Outsourcing.PlateSentAt))
	assert.Empty(t, res.Recorded)

	rec = f.do(t, "admin", http.MethodDelete, fmt.Sprintf("/jobs/%d", j.ID), nil)
	requirex.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "viewer", http.MethodGet, fmt.Sprintf("/jobs/%d/history", j.ID), nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]historyView](t, rec)
	requirex.Len(t, entries, 3)
	assert.Equal(t, stage.First(), entries[0].Stage)
	assert.Equal(t, "Staff", entries[1].ActorName)
	assert.Equal(t, "Press: Printing", entries[2].StageLabel)
}

func TestTransition_StrictStages(t *testing.T) {
	f := newFixture(t, "tracker:\n  strict_stages: true\n")
	j := f.createJob(t, "J-1")

	rec := f.do(t, "staff", http.MethodPost, fmt.Sprintf("/jobs/%d/stage", j.ID), map[string]any{"stage": "NOPE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	lax := newFixture(t, "")
	j = lax.createJob(t, "J-1")
	rec = lax.do(t, "staff", http.MethodPost, fmt.Sprintf("/jobs/%d/stage", j.ID), map[string]any{"stage": "NOPE"})
	requirex.Equal(t, http.StatusOK, rec.Code)
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(t, "staff", http.MethodPost, "/jobs/77/stage", map[string]any{"stage": stage.Printing})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadRequest(t *testing.T, f *fixture, as string, jobID uint, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("photos", name)
		requirex.NoError(t, err)
		_, err = part.Write([]byte(content))
		requirex.NoError(t, err)
	}
	requirex.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/jobs/%d/photos", jobID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(headerActorID, fmt.Sprint(f.users[as]))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestPhotos_UploadListServeDelete(t *testing.T) {
	f := newFixture(t, "")
	j := f.createJob(t, "J-1")

	rec := uploadRequest(t, f, "staff", j.ID, map[string]string{
		"proof.png": "png-bytes",
		"notes.txt": "text",
	})
	requirex.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up struct {
		Saved   []photoView   `json:"saved"`
		Skipped []skippedFile `json:"skipped"`
	}
	requirex.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	requirex.Len(t, up.Saved, 1)
	requirex.Len(t, up.Skipped, 1)
	assert.Equal(t, "notes.txt", up.Skipped[0].Filename)

	rec = f.do(t, "viewer", http.MethodGet, fmt.Sprintf("/jobs/%d/photos", j.ID), nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]photoView](t, rec), 1)

	rec = f.do(t, "viewer", http.MethodGet, fmt.Sprintf("/photos/%d/file", up.Saved[0].ID), nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = f.do(t, "staff", http.MethodDelete, fmt.Sprintf("/photos/%d", up.Saved[0].ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "admin", http.MethodDelete, fmt.Sprintf("/photos/%d", up.Saved[0].ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "viewer", http.MethodGet, fmt.Sprintf("/photos/%d/file", up.Saved[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPhotos_UnknownJob(t *testing.T) {
	f := newFixture(t, "")
	rec := uploadRequest(t, f, "staff", 42, map[string]string{"a.png": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivity_QueryAndExport(t *testing.T) {
	f := newFixture(t, "")
	f.createJob(t, "J-1")

	rec := f.do(t, "staff", http.MethodGet, "/activity", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "admin", http.MethodGet, "/activity", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]activityView](t, rec)
	requirex.Len(t, rows, 1)
	assert.Equal(t, "CREATE_JOB", rows[0].Action)
	assert.Equal(t, "Staff", rows[0].ActorName)

	rec = f.do(t, "admin", http.MethodGet, "/activity?date=05-03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "admin", http.MethodGet, "/activity/export", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestBackups(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, "viewer", http.MethodGet, "/backups/status", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unknown"`)

	rec = f.do(t, "viewer", http.MethodPost, "/backups", map[string]any{"backup_date": "2024-01-31"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "staff", http.MethodPost, "/backups", map[string]any{"backup_date": "2024-01-31", "backup_type": "full"})
	requirex.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[backupView](t, rec)
	assert.Equal(t, "2024-02-29", b.NextDue)

	rec = f.do(t, "staff", http.MethodPut, fmt.Sprintf("/backups/%d", b.ID), map[string]any{"backup_date": "2024-03-15"})
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-04-15", decode[backupView](t, rec).NextDue)

	rec = f.do(t, "staff", http.MethodPost, "/backups", map[string]any{"backup_date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "viewer", http.MethodGet, "/backups", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]backupView](t, rec), 1)

	rec = f.do(t, "staff", http.MethodPut, "/backups/99", map[string]any{"backup_date": "2024-03-15"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, "admin", http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "superadmin", http.MethodPost, "/users", map[string]any{"username": "ana", "full_name": "Ana"})
	requirex.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[userView](t, rec)
	assert.Equal(t, "staff", u.Role)

	rec = f.do(t, "superadmin", http.MethodPost, "/users", map[string]any{"username": "ana"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "superadmin", http.MethodPost, "/users", map[string]any{"username": "bob", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "superadmin", http.MethodGet, "/users", nil)
	requirex.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]userView](t, rec), 5)

	rec = f.do(t, "superadmin", http.MethodDelete, fmt.Sprintf("/users/%d", f.users["superadmin"]), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "superadmin", http.MethodDelete, fmt.Sprintf("/users/%d", u.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStatusFor_Default(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: x", errBadRequest)))
}
