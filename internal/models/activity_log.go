package models

import "time"

// ActivityLog records one state-changing action anywhere in the system.
// Rows outlive the jobs and users they mention.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"index"`
	Action    string    `gorm:"size:32;not null;index"`
	JobID     *uint     `gorm:"index"`
	JobNo     string    `gorm:"size:64"`
	Details   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}
