package Models

import (
	"time"

	"gorm.io/gorm"
)

type UserNote struct {
	gorm.Model
	PlannerEmail string `json:"planner_email" gorm:"not null;index"`
	UserEmail    string `json:"user_email" gorm:"not null;index"`
	Body         string `json:"body" gorm:"not null"`
}

// ContactSubmission holds feedback form entries. SyncedAt is stamped by the
// daily feedback sync job once the entry has been included in a digest.
type ContactSubmission struct {
	gorm.Model
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Message  string     `json:"message" gorm:"not null"`
	SyncedAt *time.Time `json:"synced_at"`
}
