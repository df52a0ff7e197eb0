package Models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template is a reusable task list. Tasks are stored as a JSON column
// ([{title, dayOffset, notes}, ...]) and expanded into BundleTasks when the
// planner applies the template.
type Template struct {
	gorm.Model
	PlannerEmail string         `json:"planner_email" gorm:"not null;index"`
	Title        string         `json:"title" gorm:"not null"`
	Tasks        datatypes.JSON `json:"tasks"`
}
