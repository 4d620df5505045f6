package models

// User is an actor known to the tracker. Authentication happens elsewhere;
// this table only backs attribution and role lookups.
type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	FullName string `gorm:"size:128"`
	Username string `gorm:"size:64;not null;uniqueIndex"`
	Role     string `gorm:"size:16;not null;default:staff"`
}
