package job

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sysfr3ak/archive-sys/internal/models"
	"gorm.io/gorm"
)

// SearchMode selects which column a free-text query matches.
type SearchMode string

const (
	SearchJob      SearchMode = "job"
	SearchCustomer SearchMode = "customer"
	SearchKeyword  SearchMode = "keyword"
)

// ListFilters narrows List. Zero values match everything.
type ListFilters struct {
	Query string
	Mode  SearchMode // defaults to SearchJob
	Year  string     // "2024"
	Month string     // "01".."12"
	Stage string
	Limit int
}

// List returns jobs matching f, newest job date first.
func List(db *gorm.DB, f ListFilters) ([]models.Job, error) {
	q := db.Model(&models.Job{})

	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + s + "%"
		switch f.Mode {
		case SearchCustomer:
			q = q.Where("name LIKE ?", like)
		case SearchKeyword:
			q = q.Where("name LIKE ? OR note LIKE ? OR paper LIKE ? OR job_no LIKE ?", like, like, like, like)
		case SearchJob, "":
			q = q.Where("job_no LIKE ?", like)
		default:
			return nil, fmt.Errorf("%w: unknown search mode %q", ErrInvalid, f.Mode)
		}
	}
	if f.Year != "" {
		q = q.Where("date LIKE ?", f.Year+"-%")
	}
	if f.Month != "" {
		if len(f.Month) == 1 {
			f.Month = "0" + f.Month
		}
		q = q.Where("date LIKE ?", "____-"+f.Month+"-%")
	}
	if f.Stage != "" {
		q = q.Where("stage = ?", f.Stage)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var jobs []models.Job
	if err := q.Order("date DESC, id DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	return jobs, nil
}

// Years returns the distinct years found in job dates, newest first.
func Years(db *gorm.DB) ([]string, error) {
	var dates []string
	if err := db.Model(&models.Job{}).Where("date <> ''").Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("job: years: %w", err)
	}
	seen := make(map[string]bool)
	var years []string
	for _, d := range dates {
		if len(d) < 4 {
			continue
		}
		y := d[:4]
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years, nil
}

// StageCount is the number of jobs currently at a stage.
type StageCount struct {
	Stage string
	Count int64
}

// CountByStage groups current jobs by stage.
func CountByStage(db *gorm.DB) ([]StageCount, error) {
	var counts []StageCount
	err := db.Model(&models.Job{}).
		Select("stage, count(*) as count").
		Group("stage").
		Order("stage").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("job: count by stage: %w", err)
	}
	return counts, nil
}
