package models

import "time"

// BackupLog is one entry in the monthly backup ledger.
type BackupLog struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	BackupDate     string `gorm:"size:10;not null;index"`
	NextDue        string `gorm:"size:10;not null"`
	BackupType     string `gorm:"size:64"`
	BackupLocation string `gorm:"size:256"`
	Notes          string `gorm:"type:text"`
	CreatedBy      uint
	CreatedAt      time.Time
}
