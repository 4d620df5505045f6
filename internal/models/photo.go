package models

import "time"

// Photo is an image attached to a job. The file itself lives on disk under
// the job's upload folder.
type Photo struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	JobID      uint   `gorm:"not null;index"`
	Filename   string `gorm:"size:255;not null"`
	UploadedAt time.Time
}
