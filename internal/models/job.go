package models

import "time"

// Job is a print-shop production job.
//
// Stage and the pre-press checklist are status fields, overwritten on every
// transition. The six outsourcing timestamps are events: each is written at
// most once, from nil to a value.
type Job struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	JobNo  string `gorm:"size:64;not null;uniqueIndex"`
	Name   string `gorm:"size:256;index"`
	Date   string `gorm:"size:10;index"` // YYYY-MM-DD as entered
	Paper  string `gorm:"size:256"`
	Note   string `gorm:"type:text"`
	Price  string `gorm:"size:32"`
	Serial string `gorm:"size:64"`

	CreatedBy uint
	CreatedAt time.Time
	EditedBy  *uint
	EditedAt  *time.Time

	Stage          string `gorm:"size:64;index"`
	StageUpdatedBy uint
	StageUpdatedAt time.Time

	PrePlate bool `gorm:"default:false"`
	PreDie   bool `gorm:"default:false"`
	PrePaper bool `gorm:"default:false"`

	PlateSentAt     *time.Time
	PlateReceivedAt *time.Time
	DieSentAt       *time.Time
	DieReceivedAt   *time.Time
	PaperSentAt     *time.Time
	PaperDoneAt     *time.Time
}
