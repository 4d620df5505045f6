package photo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Job{}, &models.Photo{}, &models.ActivityLog{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedJob(t *testing.T, db *gorm.DB, jobNo string) *models.Job {
	t.Helper()
	j := models.Job{JobNo: jobNo, Name: "Acme", CreatedAt: time.Now().UTC(), StageUpdatedAt: time.Now().UTC()}
	if err := db.Create(&j).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	return &j
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"J-100", "J-100"},
		{"job 12/a", "job_12_a"},
		{"../../etc/passwd", "etc_passwd"},
		{"  photo (1).JPG ", "photo_1.JPG"},
		{"ünïcode.png", "ncode.png"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFolderName(t *testing.T) {
	if got := FolderName("J 1"); !strings.HasPrefix(got, "J_1-") || len(got) != len("J_1-")+12 {
		t.Errorf("FolderName(%q) = %q", "J 1", got)
	}
	if got := FolderName("ÄÖ"); !strings.HasPrefix(got, "_") || strings.ContainsAny(got, "/\\") {
		t.Errorf("FolderName(%q) = %q", "ÄÖ", got)
	}
	if FolderName("J-9") != FolderName("J-9") {
		t.Error("FolderName is not stable")
	}

	seen := make(map[string]string)
	for _, jobNo := range []string{"J/1", "J_1", "J 1", "J\\1", "ÄÖ", "ÜÉ", "...", "_"} {
		name := FolderName(jobNo)
		if other, ok := seen[name]; ok {
			t.Errorf("FolderName(%q) = FolderName(%q) = %q", jobNo, other, name)
		}
		seen[name] = jobNo
	}
}

func TestAllowed(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.gif"} {
		if !Allowed(name) {
			t.Errorf("Allowed(%q) = false", name)
		}
	}
	for _, name := range []string{"a.pdf", "noext", "x.png.exe"} {
		if Allowed(name) {
			t.Errorf("Allowed(%q) = true", name)
		}
	}
}

func TestSaveListDelete(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	s := NewStore(db, root, 0)
	j := seedJob(t, db, "J 1")

	p, err := s.Save(j.ID, "front cover.JPG", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(p.Filename, "front_cover_") || !strings.HasSuffix(p.Filename, ".jpg") {
		t.Errorf("Filename = %q", p.Filename)
	}
	path := filepath.Join(root, FolderName("J 1"), p.Filename)
	if b, err := os.ReadFile(path); err != nil || string(b) != "data" {
		t.Fatalf("file = %q, %v", b, err)
	}
	if s.Path(j.JobNo, p.Filename) != path {
		t.Errorf("Path = %q, want %q", s.Path(j.JobNo, p.Filename), path)
	}

	p2, err := s.Save(j.ID, "back.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	photos, err := s.List(j.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(photos) != 2 || photos[0].ID != p2.ID {
		t.Errorf("List = %+v, want newest first", photos)
	}

	if _, err := s.Delete(p.ID, access.Actor{ID: 1, Role: access.RoleAdmin}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
	var log models.ActivityLog
	if err := db.Where("action = ?", "DELETE_PHOTO").First(&log).Error; err != nil {
		t.Fatalf("audit row: %v", err)
	}
	if log.JobNo != "J 1" || log.Details != p.Filename {
		t.Errorf("audit = %+v", log)
	}
	if _, err := s.Delete(p.ID, access.Actor{ID: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: err = %v", err)
	}
}

func TestSave_Rejections(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db, t.TempDir(), 1)
	j := seedJob(t, db, "J-2")

	if _, err := s.Save(j.ID, "doc.pdf", strings.NewReader("")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("pdf: err = %v", err)
	}
	if _, err := s.Save(999, "a.png", strings.NewReader("")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing job: err = %v", err)
	}
	if _, err := s.Save(j.ID, "a.png", strings.NewReader("")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(j.ID, "b.png", strings.NewReader("")); !errors.Is(err, ErrLimitReached) {
		t.Errorf("over limit: err = %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestSave_WriteFailureLeavesNoRow(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	s := NewStore(db, root, 1)
	j := seedJob(t, db, "J-W")

	if _, err := s.Save(j.ID, "a.png", failingReader{}); err == nil {
		t.Fatal("Save with failing reader: want error")
	}
	var count int64
	db.Model(&models.Photo{}).Where("job_id = ?", j.ID).Count(&count)
	if count != 0 {
		t.Errorf("photo rows = %d, want 0", count)
	}
	entries, _ := os.ReadDir(filepath.Join(root, FolderName("J-W")))
	if len(entries) != 0 {
		t.Errorf("files left behind: %v", entries)
	}
	// The failed upload must not use up the only slot.
	if _, err := s.Save(j.ID, "b.png", strings.NewReader("ok")); err != nil {
		t.Errorf("Save after failure: %v", err)
	}
}

func TestSave_LimitHoldsUnderConcurrentUploads(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	const limit = 3
	s := NewStore(db, root, limit)
	j := seedJob(t, db, "J-C")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		saved   int
		limited int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(j.ID, "a.png", strings.NewReader("png"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case errors.Is(err, ErrLimitReached):
				limited++
			default:
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	if saved != limit || limited != 12-limit {
		t.Errorf("saved = %d, limited = %d; want %d and %d", saved, limited, limit, 12-limit)
	}
	var count int64
	db.Model(&models.Photo{}).Where("job_id = ?", j.ID).Count(&count)
	if count != limit {
		t.Errorf("photo rows = %d, want %d", count, limit)
	}
	entries, err := os.ReadDir(filepath.Join(root, FolderName("J-C")))
	if err != nil || len(entries) != limit {
		t.Errorf("files = %d, %v; want %d", len(entries), err, limit)
	}
}

func TestPurge_KeepsJobsWithSimilarNumbers(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	s := NewStore(db, root, 0)

	numbers := []string{"J/1", "J_1", "ÄÖ-7", "ÜÉ-7"}
	paths := make(map[string]string)
	for _, jobNo := range numbers {
		j := seedJob(t, db, jobNo)
		p, err := s.Save(j.ID, "a.png", strings.NewReader(jobNo))
		if err != nil {
			t.Fatalf("Save %q: %v", jobNo, err)
		}
		paths[jobNo] = s.Path(jobNo, p.Filename)
	}

	if err := s.Purge("J/1"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if err := s.Purge("ÄÖ-7"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	for _, jobNo := range []string{"J/1", "ÄÖ-7"} {
		if _, err := os.Stat(paths[jobNo]); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%q file still present: %v", jobNo, err)
		}
	}
	for _, jobNo := range []string{"J_1", "ÜÉ-7"} {
		b, err := os.ReadFile(paths[jobNo])
		if err != nil || string(b) != jobNo {
			t.Errorf("%q file = %q, %v; want it untouched", jobNo, b, err)
		}
	}

	// Renaming onto a similar-looking number must not land in its folder.
	if err := s.Rename("ÜÉ-7", "J 1"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if filepath.Dir(s.Path("J 1", "x")) == filepath.Dir(paths["J_1"]) {
		t.Error("J 1 and J_1 share a folder")
	}
	if _, err := os.Stat(paths["J_1"]); err != nil {
		t.Errorf("J_1 file after rename: %v", err)
	}
}

func TestRenameAndPurge(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	s := NewStore(db, root, 0)
	j := seedJob(t, db, "OLD")
	p, err := s.Save(j.ID, "a.gif", strings.NewReader("gif"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Rename("OLD", "NEW"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, FolderName("NEW"), p.Filename)); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if err := s.Rename("ABSENT", "OTHER"); err != nil {
		t.Errorf("Rename of missing folder: %v", err)
	}

	if err := s.Purge("NEW"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, FolderName("NEW"))); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("folder still present: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root removed: %v", err)
	}
}

func TestLocate(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	s := NewStore(db, root, 0)
	j := seedJob(t, db, "J-L")
	p, err := s.Save(j.ID, "a.png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, err := s.Locate(p.ID)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if path != filepath.Join(root, FolderName("J-L"), p.Filename) {
		t.Errorf("Locate = %q", path)
	}
	if _, err := s.Locate(p.ID + 100); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing photo: err = %v", err)
	}
}
