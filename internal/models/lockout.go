package models

import "time"

// Lockout reserves one device for a time window
type Lockout struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	DeviceType   string    `json:"device_type" gorm:"size:200;not null;index:idx_lockout_device"`
	DeviceID     uint      `json:"device_id" gorm:"not null;index:idx_lockout_device"`
	LockoutStart time.Time `json:"lockout_start" gorm:"not null"`
	LockoutEnd   time.Time `json:"lockout_end" gorm:"not null;index"`
	ManualReturn bool      `json:"manual_return" gorm:"not null;default:false"`
}

// TableName specifies the table name for Lockout model
func (Lockout) TableName() string {
	return "lockouts"
}

// ActiveAt reports whether the lockout still holds at t
func (l *Lockout) ActiveAt(t time.Time) bool {
	return !l.ManualReturn && !l.LockoutEnd.Before(t)
}
