package Models

import (
	"time"

	"gorm.io/gorm"
)

type Planner struct {
	gorm.Model
	Email string `json:"email" gorm:"not null;uniqueIndex"`
	Name  string `json:"name"`
}

// Subscription mirrors the planner's Stripe subscription state. Updated by
// the billing webhook, read by the status endpoint.
type Subscription struct {
	gorm.Model
	PlannerEmail         string    `json:"planner_email" gorm:"not null;uniqueIndex"`
	StripeCustomerID     string    `json:"stripe_customer_id" gorm:"index"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	Status               string    `json:"status"`
	PriceID              string    `json:"price_id"`
	CurrentPeriodEnd     time.Time `json:"current_period_end"`
}

// APIKey stores only the bcrypt hash; the raw key is shown once on creation.
type APIKey struct {
	gorm.Model
	PlannerEmail string     `json:"planner_email" gorm:"not null;index"`
	Label        string     `json:"label"`
	Hash         []byte     `json:"-" gorm:"not null"`
	Prefix       string     `json:"prefix"`
	LastUsedAt   *time.Time `json:"last_used_at"`
}

type MagicLink struct {
	gorm.Model
	Email     string     `json:"email" gorm:"not null;index"`
	Token     string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}
