package Models

import (
	"time"

	"gorm.io/gorm"
)

// Bundle origins
const (
	OriginPlan  = "plan"
	OriginInbox = "inbox"
)

// Bundle is a named, dated collection of tasks assigned to one user by one
// planner. Retiring a bundle sets ArchivedAt; it is never hard-deleted by
// the plan flow.
type Bundle struct {
	gorm.Model
	PlannerEmail      string       `json:"planner_email" gorm:"not null;index"`
	AssignedUserEmail string       `json:"assigned_user_email" gorm:"index"`
	Title             string       `json:"title" gorm:"not null"`
	StartDate         time.Time    `json:"start_date"`
	Origin            string       `json:"origin" gorm:"not null;default:plan"`
	ArchivedAt        *time.Time   `json:"archived_at"`
	Tasks             []BundleTask `json:"tasks,omitempty" gorm:"foreignKey:BundleID"`
}

// BundleTask carries GoogleTaskID once the task has been pushed into the
// user's Google Tasks. Completion state is never stored here; it is derived
// against the live Google list on every metrics request.
type BundleTask struct {
	gorm.Model
	BundleID     uint   `json:"bundle_id" gorm:"not null;index"`
	Title        string `json:"title" gorm:"not null"`
	Notes        string `json:"notes"`
	DayOffset    int    `json:"day_offset"`
	GoogleTaskID string `json:"google_task_id" gorm:"index"`
}
