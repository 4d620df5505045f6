package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv is an initialized sqlite-backed workspace.
type testEnv struct {
	dir     string
	cfgPath string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	t.Setenv("ARCHIVE_USER", "")
	dir := t.TempDir()
	cfg := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
storage:
  upload_dir: %s
backup:
  lock_file: %s
log:
  level: error
users:
  - username: root
    full_name: Shop Owner
    role: superadmin
  - username: dara
    full_name: Dara Sok
    role: staff
  - username: vic
    full_name: Vic Viewer
    role: viewer
%s`, filepath.Join(dir, "archive.db"), filepath.Join(dir, "uploads"), filepath.Join(dir, "reminder.lock"), extra)

	path := filepath.Join(dir, "archive.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := &testEnv{dir: dir, cfgPath: path}
	env.mustRun(t, "db", "init")
	return env
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	if err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDBInit_SeedsUsers(t *testing.T) {
	env := newTestEnv(t, "")
	out := env.mustRun(t, "db", "init")
	assertContains(t, out, "Migrated 6 tables", "Seeded 3 users: root dara vic", "initialized successfully")
}

func TestDBReset_AbortsWithoutYes(t *testing.T) {
	env := newTestEnv(t, "")
	env.mustRun(t, "--as", "dara", "job", "create", "--job-no", "J-1", "--name", "Acme")

	out, err := env.run(t, "no\n", "db", "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	assertContains(t, out, "Aborted.")
	assertContains(t, env.mustRun(t, "job", "list"), "J-1")

	out = env.mustRun(t, "db", "reset", "--yes")
	assertContains(t, out, "Dropped all tables", "re-initialized successfully")
	assertContains(t, env.mustRun(t, "job", "list"), "No jobs found.")
}

func TestJobLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	out := env.mustRun(t, "--as", "dara", "job", "create",
		"--job-no", "J-1", "--name", "Acme Ltd", "--date", "2024-03-05", "--paper", "Art 150gsm")
	assertContains(t, out, "Created job J-1", "Pre-Press: Designing")

	if _, err := env.run(t, "", "--as", "dara", "job", "create", "--job-no", "J-1", "--name", "Other"); err == nil {
		t.Error("expected duplicate job number error")
	}
	if _, err := env.run(t, "", "--as", "vic", "job", "create", "--job-no", "J-2", "--name", "Other"); err == nil {
		t.Error("expected viewer to be refused")
	}
	if _, err := env.run(t, "", "job", "create", "--job-no", "J-2", "--name", "Other"); err == nil {
		t.Error("expected error without --as")
	}

	out = env.mustRun(t, "--as", "dara", "stage", "set", "J-1",
		"--stage", "PRESS_PRINTING", "--pre-plate", "--plate-sent")
	assertContains(t, out, "Job J-1 now at Press: Printing", "Recorded: plate_sent_at")

	out = env.mustRun(t, "--as", "dara", "stage", "set", "J-1", "--plate-sent")
	assertContains(t, out, "now at Press: Printing")
	if strings.Contains(out, "Recorded:") {
		t.Errorf("second tick should not record again:\n%s", out)
	}

	assertContains(t, env.mustRun(t, "job", "list", "--year", "2024", "--month", "3"), "J-1", "Acme Ltd", "1 job(s)")
	assertContains(t, env.mustRun(t, "job", "list", "--query", "acme", "--mode", "customer"), "J-1")
	assertContains(t, env.mustRun(t, "job", "list", "--year", "2023"), "No jobs found.")

	out = env.mustRun(t, "job", "show", "J-1")
	assertContains(t, out, "Customer:  Acme Ltd", "Paper:     Art 150gsm", "Pre-press: plate=false", "Plate sent", "Dara Sok")

	out = env.mustRun(t, "stage", "history", "J-1")
	assertContains(t, out, "Pre-Press: Designing", "Press: Printing")

	assertContains(t, env.mustRun(t, "stage", "list"), "PRESS_PRINTING", "Press: Printing")

	if _, err := env.run(t, "", "--as", "dara", "job", "edit", "J-1", "--note", "rush"); err == nil {
		t.Error("expected staff to be refused editing")
	}
	out = env.mustRun(t, "--as", "root", "job", "edit", "J-1", "--job-no", "J-1b", "--note", "rush")
	assertContains(t, out, "Updated job J-1b")
	assertContains(t, env.mustRun(t, "job", "show", "J-1b"), "Customer:  Acme Ltd", "Note:      rush")

	out = env.mustRun(t, "--as", "root", "audit", "list")
	assertContains(t, out, "CREATE_JOB", "UPDATE_STAGE", "EDIT_JOB", "Shop Owner")
	if _, err := env.run(t, "", "--as", "dara", "audit", "list"); err == nil {
		t.Error("expected staff to be refused the audit log")
	}

	xlsx := filepath.Join(env.dir, "activity.xlsx")
	out = env.mustRun(t, "--as", "root", "audit", "export", "--output", xlsx)
	assertContains(t, out, "Exported 4 entries")
	if data, err := os.ReadFile(xlsx); err != nil || !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("export file not a workbook: %v", err)
	}

	out, err := env.run(t, "no\n", "--as", "root", "job", "delete", "J-1b")
	if err != nil {
		t.Fatalf("delete prompt: %v", err)
	}
	assertContains(t, out, "Aborted.")

	assertContains(t, env.mustRun(t, "--as", "root", "job", "delete", "J-1b", "--yes"), "Deleted job J-1b")
	if _, err := env.run(t, "", "job", "show", "J-1b"); err == nil {
		t.Error("expected deleted job to be gone")
	}

	out = env.mustRun(t, "stage", "history", "--id", "1")
	assertContains(t, out, "Pre-Press: Designing", "Press: Printing")
}

func TestStageSet_StrictStages(t *testing.T) {
	env := newTestEnv(t, "")
	env.mustRun(t, "--as", "dara", "job", "create", "--job-no", "J-1", "--name", "Acme")
	assertContains(t, env.mustRun(t, "--as", "dara", "stage", "set", "J-1", "--stage", "CUSTOM"), "now at CUSTOM")

	strict := newTestEnv(t, "tracker:\n  strict_stages: true\n  timezone: UTC\n")
	strict.mustRun(t, "--as", "dara", "job", "create", "--job-no", "J-1", "--name", "Acme")
	if _, err := strict.run(t, "", "--as", "dara", "stage", "set", "J-1", "--stage", "CUSTOM"); err == nil {
		t.Error("expected unknown stage to be rejected")
	}
}

func TestStageHistory_Args(t *testing.T) {
	env := newTestEnv(t, "")
	if _, err := env.run(t, "", "stage", "history"); err == nil {
		t.Error("expected error without job number or id")
	}
	if _, err := env.run(t, "", "stage", "history", "J-1", "--id", "3"); err == nil {
		t.Error("expected error with both job number and id")
	}
	assertContains(t, env.mustRun(t, "stage", "history", "--id", "99"), "No history recorded.")
}

func TestBackupCommands(t *testing.T) {
	env := newTestEnv(t, "")
	assertContains(t, env.mustRun(t, "backup", "status"), "No backup has been recorded yet.")
	assertContains(t, env.mustRun(t, "backup", "list"), "No backups recorded.")

	out := env.mustRun(t, "--as", "dara", "backup", "add", "--date", "2024-01-31", "--type", "full", "--location", "NAS")
	assertContains(t, out, "Recorded backup #1 on 2024-01-31, next due 2024-02-29")

	out = env.mustRun(t, "--as", "dara", "backup", "edit", "1", "--date", "2024-03-15")
	assertContains(t, out, "Updated backup #1: 2024-03-15, next due 2024-04-15")

	assertContains(t, env.mustRun(t, "backup", "list"), "2024-03-15", "full", "NAS")
	assertContains(t, env.mustRun(t, "backup", "status"), "OVERDUE", "Last backup: 2024-03-15 at NAS")

	if _, err := env.run(t, "", "--as", "vic", "backup", "add"); err == nil {
		t.Error("expected viewer to be refused")
	}
	if _, err := env.run(t, "", "--as", "dara", "backup", "edit", "x"); err == nil {
		t.Error("expected invalid id error")
	}
}

func TestUserCommands(t *testing.T) {
	env := newTestEnv(t, "")

	if _, err := env.run(t, "", "--as", "dara", "user", "list"); err == nil {
		t.Error("expected staff to be refused")
	}
	out := env.mustRun(t, "--as", "root", "user", "add", "--username", "mey", "--name", "Mey Chan", "--role", "admin")
	assertContains(t, out, "Added user mey", "admin")

	assertContains(t, env.mustRun(t, "--as", "root", "user", "list"), "mey", "Mey Chan", "Dara Sok")

	if _, err := env.run(t, "", "--as", "root", "user", "delete", "root"); err == nil {
		t.Error("expected self-delete to be refused")
	}
	assertContains(t, env.mustRun(t, "--as", "root", "user", "delete", "mey"), "Deleted user mey")
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
