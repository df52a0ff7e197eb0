package Billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Plan2Tasks/Models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Models.Migrate(db))
	return db
}

func TestCheckoutCompletedCreatesSubscription(t *testing.T) {
	db := testDB(t)
	billing := &Controller{DB: db, PriceID: "price_123"}

	billing.handleCheckoutCompleted(&stripe.CheckoutSession{
		ClientReferenceID: "P@X.com",
		Customer:          &stripe.Customer{ID: "cus_1"},
		Subscription:      &stripe.Subscription{ID: "sub_1"},
	})

	var sub Models.Subscription
	require.NoError(t, db.Where("planner_email = ?", "p@x.com").First(&sub).Error)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_123", sub.PriceID)
}

func TestCheckoutCompletedWithoutReferenceIsIgnored(t *testing.T) {
	db := testDB(t)
	billing := &Controller{DB: db}

	billing.handleCheckoutCompleted(&stripe.CheckoutSession{})

	var count int64
	require.NoError(t, db.Model(&Models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubscriptionChangedMirrorsStatus(t *testing.T) {
	db := testDB(t)
	billing := &Controller{DB: db}

	require.NoError(t, db.Create(&Models.Subscription{
		PlannerEmail:         "p@x.com",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               "active",
	}).Error)

	periodEnd := time.Now().AddDate(0, 1, 0).Unix()
	billing.handleSubscriptionChanged(&stripe.Subscription{
		ID:               "sub_1",
		Status:           stripe.SubscriptionStatusPastDue,
		CurrentPeriodEnd: periodEnd,
	})

	var sub Models.Subscription
	require.NoError(t, db.Where("planner_email = ?", "p@x.com").First(&sub).Error)
	assert.Equal(t, "past_due", sub.Status)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd.Unix())
}

func TestSubscriptionChangedFallsBackToCustomerLookup(t *testing.T) {
	db := testDB(t)
	billing := &Controller{DB: db}

	// Checkout completed before the subscription ID was known.
	require.NoError(t, db.Create(&Models.Subscription{
		PlannerEmail:     "p@x.com",
		StripeCustomerID: "cus_1",
		Status:           "active",
	}).Error)

	billing.handleSubscriptionChanged(&stripe.Subscription{
		ID:       "sub_new",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
	})

	var sub Models.Subscription
	require.NoError(t, db.Where("planner_email = ?", "p@x.com").First(&sub).Error)
	assert.Equal(t, "sub_new", sub.StripeSubscriptionID)
}

func TestSubscriptionChangedUnknownCustomerIsIgnored(t *testing.T) {
	db := testDB(t)
	billing := &Controller{DB: db}

	billing.handleSubscriptionChanged(&stripe.Subscription{
		ID:       "sub_ghost",
		Status:   stripe.SubscriptionStatusCanceled,
		Customer: &stripe.Customer{ID: "cus_ghost"},
	})

	var count int64
	require.NoError(t, db.Model(&Models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}
