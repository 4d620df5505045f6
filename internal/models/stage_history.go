package models

import "time"

// StageHistory is an immutable snapshot written once per stage transition.
// JobID is a soft reference: the job may have been deleted since.
type StageHistory struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	JobID     uint   `gorm:"not null;index:idx_history_job_time"`
	JobNo     string `gorm:"size:64"`
	Stage     string `gorm:"size:64;not null"`
	UpdatedBy uint
	UpdatedAt time.Time `gorm:"not null;index:idx_history_job_time;autoUpdateTime:false"`
	PrePlate  bool
	PreDie    bool
	PrePaper  bool
}
