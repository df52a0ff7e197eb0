package Models

import (
	"time"

	"gorm.io/gorm"
)

// Connection statuses. A connection is only usable for Google Tasks calls
// while connected or active.
const (
	StatusConnected = "connected"
	StatusActive    = "active"
	StatusArchived  = "archived"
	StatusDeleted   = "deleted"
	StatusInvited   = "invited"
)

// Connection is one user's OAuth grant for one planner. The access token is
// a cache; the refresh token is the durable credential.
type Connection struct {
	gorm.Model
	UserEmail          string    `json:"user_email" gorm:"not null;index:idx_conn_pair"`
	PlannerEmail       string    `json:"planner_email" gorm:"not null;index:idx_conn_pair"`
	GoogleAccessToken  string    `json:"-"`
	GoogleRefreshToken string    `json:"-"`
	TokenExpiry        time.Time `json:"token_expiry"`
	Status             string    `json:"status" gorm:"not null;default:invited"`
}

func (c *Connection) IsLive() bool {
	return c.Status == StatusConnected || c.Status == StatusActive
}

// Invite is a pending link sent to a user; consumed when the user completes
// the Google OAuth flow.
type Invite struct {
	gorm.Model
	PlannerEmail string     `json:"planner_email" gorm:"not null;index"`
	UserEmail    string     `json:"user_email" gorm:"not null;index"`
	Token        string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at"`
}
