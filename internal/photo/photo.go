// Package photo stores the images attached to jobs. Files live under
// <root>/<folder>/ where the folder name comes from FolderName, and
// each one has a row in the photos table.
package photo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/audit"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMaxPerJob is the attachment limit when none is configured.
const DefaultMaxPerJob = 30

var (
	ErrNotFound        = errors.New("photo: not found")
	ErrUnsupportedType = errors.New("photo: unsupported file type")
	ErrLimitReached    = errors.New("photo: attachment limit reached")
)

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Store saves and removes job photos.
type Store struct {
	db        *gorm.DB
	root      string
	maxPerJob int
}

// NewStore returns a store rooted at dir.
func NewStore(db *gorm.DB, dir string, maxPerJob int) *Store {
	if maxPerJob <= 0 {
		maxPerJob = DefaultMaxPerJob
	}
	return &Store{db: db, root: dir, maxPerJob: maxPerJob}
}

// Allowed reports whether filename has an accepted image extension.
func Allowed(filename string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(filename))]
}

// Save writes r as a new photo of the job. The stored name is the
// sanitized original base name plus a short random suffix.
func (s *Store) Save(jobID uint, filename string, r io.Reader) (*models.Photo, error) {
	if !Allowed(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}

	clean := SanitizeName(filename)
	ext := strings.ToLower(filepath.Ext(clean))
	base := strings.TrimSuffix(clean, filepath.Ext(clean))
	if base == "" {
		base = "photo"
	}
	name := fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)

	// The job row is locked for the count so concurrent uploads cannot
	// both pass the limit. SQLite ignores the locking clause and
	// serializes the write transaction instead.
	var (
		p    models.Photo
		path string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var j models.Job
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", jobID).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: job %d", ErrNotFound, jobID)
			}
			return fmt.Errorf("photo: get job %d: %w", jobID, err)
		}

		var count int64
		if err := tx.Model(&models.Photo{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
			return fmt.Errorf("photo: count for job %d: %w", jobID, err)
		}
		if count >= int64(s.maxPerJob) {
			return fmt.Errorf("%w: job %s has %d", ErrLimitReached, j.JobNo, count)
		}

		p = models.Photo{JobID: jobID, Filename: name, UploadedAt: time.Now().UTC()}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("photo: record %s: %w", name, err)
		}

		dir := s.dir(j.JobNo)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("photo: create folder: %w", err)
		}
		path = filepath.Join(dir, name)
		return writeFile(path, r)
	})
	if err != nil {
		if path != "" {
			os.Remove(path)
		}
		return nil, err
	}
	return &p, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("photo: create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("photo: write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("photo: close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// List returns a job's photos, newest first.
func (s *Store) List(jobID uint) ([]models.Photo, error) {
	var photos []models.Photo
	if err := s.db.Where("job_id = ?", jobID).Order("id DESC").Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("photo: list for job %d: %w", jobID, err)
	}
	return photos, nil
}

// Path returns the on-disk location of a photo of the given job.
func (s *Store) Path(jobNo, filename string) string {
	return filepath.Join(s.dir(jobNo), filepath.Base(filename))
}

// Locate returns the on-disk path of a stored photo.
func (s *Store) Locate(photoID uint) (string, error) {
	var p models.Photo
	if err := s.db.Where("id = ?", photoID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: id %d", ErrNotFound, photoID)
		}
		return "", fmt.Errorf("photo: get %d: %w", photoID, err)
	}
	var j models.Job
	if err := s.db.Where("id = ?", p.JobID).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: job %d", ErrNotFound, p.JobID)
		}
		return "", fmt.Errorf("photo: get job %d: %w", p.JobID, err)
	}
	return s.Path(j.JobNo, p.Filename), nil
}

// Delete removes a photo row, writes a DELETE_PHOTO audit entry, then
// removes the file. A file that cannot be removed is logged and left.
func (s *Store) Delete(photoID uint, actor access.Actor) (*models.Photo, error) {
	var p models.Photo
	var jobNo string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", photoID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, photoID)
			}
			return fmt.Errorf("photo: get %d: %w", photoID, err)
		}
		var j models.Job
		if err := tx.Where("id = ?", p.JobID).Limit(1).Find(&j).Error; err != nil {
			return fmt.Errorf("photo: get job %d: %w", p.JobID, err)
		}
		jobNo = j.JobNo

		if err := tx.Delete(&p).Error; err != nil {
			return fmt.Errorf("photo: delete %d: %w", photoID, err)
		}
		_, err := audit.Append(tx, audit.Entry{
			UserID:  actor.ID,
			Action:  audit.ActionDeletePhoto,
			JobID:   &p.JobID,
			JobNo:   jobNo,
			Details: p.Filename,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if jobNo != "" {
		if err := os.Remove(s.Path(jobNo, p.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove photo file", "photo_id", photoID, "file", p.Filename, "error", err)
		}
	}
	return &p, nil
}

// Rename moves a job's folder after its number changed.
func (s *Store) Rename(oldJobNo, newJobNo string) error {
	from, to := s.dir(oldJobNo), s.dir(newJobNo)
	if from == to {
		return nil
	}
	if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("photo: rename folder: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("photo: rename folder %s: %w", oldJobNo, err)
	}
	return nil
}

// Purge removes a job's folder and everything in it.
func (s *Store) Purge(jobNo string) error {
	if err := os.RemoveAll(s.dir(jobNo)); err != nil {
		return fmt.Errorf("photo: purge folder %s: %w", jobNo, err)
	}
	return nil
}

func (s *Store) dir(jobNo string) string {
	return filepath.Join(s.root, FolderName(jobNo))
}

// FolderName is the attachment folder of a job number: its sanitized
// form followed by a hash of the exact number. Numbers that sanitize
// alike, such as "J/1" and "J_1", still get separate folders.
func FolderName(jobNo string) string {
	sum := sha256.Sum256([]byte(jobNo))
	tag := hex.EncodeToString(sum[:])[:12]
	name := SanitizeName(jobNo)
	if name == "" {
		return "_" + tag
	}
	return name + "-" + tag
}

// SanitizeName reduces s to a safe single path element: ASCII letters,
// digits, '.', '-' and '_'. Whitespace becomes '_' and leading dots or
// underscores are dropped.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '/' || r == '\\':
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}
