package Billing

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"

	"Plan2Tasks/Models"
	"Plan2Tasks/Responses"
)

// Controller owns the Stripe subscription lifecycle for planners.
type Controller struct {
	DB            *gorm.DB
	PriceID       string
	AppURL        string
	WebhookSecret string
}

func NewController(db *gorm.DB) *Controller {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	return &Controller{
		DB:            db,
		PriceID:       os.Getenv("STRIPE_PRICE_ID"),
		AppURL:        os.Getenv("APP_URL"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}
}

type checkoutRequest struct {
	PlannerEmail string `json:"plannerEmail"`
}

// Checkout creates a subscription checkout session and returns its URL. The
// planner email rides along as the client reference so the webhook can bind
// the resulting customer back to the account.
func (b *Controller) Checkout(c *fiber.Ctx) error {
	var input checkoutRequest
	if err := c.BodyParser(&input); err != nil || input.PlannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}
	plannerEmail := strings.ToLower(strings.TrimSpace(input.PlannerEmail))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail:     stripe.String(plannerEmail),
		ClientReferenceID: stripe.String(plannerEmail),
		SuccessURL:        stripe.String(b.AppURL + "/settings?billing=success"),
		CancelURL:         stripe.String(b.AppURL + "/settings?billing=cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(b.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	s, err := session.New(params)
	if err != nil {
		log.Printf("billing: checkout session failed for %s: %v", plannerEmail, err)
		return Responses.Error(c, fiber.StatusBadGateway, "Failed to start checkout")
	}

	return Responses.OK(c, fiber.Map{"url": s.URL})
}

// Portal creates a billing-portal session for an existing customer.
func (b *Controller) Portal(c *fiber.Ctx) error {
	var input checkoutRequest
	if err := c.BodyParser(&input); err != nil || input.PlannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}
	plannerEmail := strings.ToLower(strings.TrimSpace(input.PlannerEmail))

	var sub Models.Subscription
	if err := b.DB.Where("planner_email = ?", plannerEmail).First(&sub).Error; err != nil || sub.StripeCustomerID == "" {
		return Responses.Error(c, fiber.StatusNotFound, "No billing account")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(b.AppURL + "/settings"),
	}
	ps, err := portalsession.New(params)
	if err != nil {
		log.Printf("billing: portal session failed for %s: %v", plannerEmail, err)
		return Responses.Error(c, fiber.StatusBadGateway, "Failed to open billing portal")
	}

	return Responses.OK(c, fiber.Map{"url": ps.URL})
}

// Status returns the stored subscription snapshot.
func (b *Controller) Status(c *fiber.Ctx) error {
	plannerEmail := strings.ToLower(strings.TrimSpace(c.Query("plannerEmail")))
	if plannerEmail == "" {
		return Responses.BadRequest(c, "Missing plannerEmail")
	}

	var sub Models.Subscription
	if err := b.DB.Where("planner_email = ?", plannerEmail).First(&sub).Error; err != nil {
		return Responses.OK(c, fiber.Map{"subscribed": false})
	}

	return Responses.OK(c, fiber.Map{
		"subscribed":       sub.Status == "active" || sub.Status == "trialing",
		"status":           sub.Status,
		"currentPeriodEnd": sub.CurrentPeriodEnd,
	})
}

// Webhook ingests signature-verified Stripe events and mirrors the relevant
// subscription state into the local store.
func (b *Controller) Webhook(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), b.WebhookSecret)
	if err != nil {
		log.Printf("billing: webhook signature verification failed: %v", err)
		return Responses.BadRequest(c, "Invalid signature")
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return Responses.BadRequest(c, "Malformed event")
		}
		b.handleCheckoutCompleted(&s)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var s stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return Responses.BadRequest(c, "Malformed event")
		}
		b.handleSubscriptionChanged(&s)
	}

	return Responses.OK(c, fiber.Map{"received": true})
}

func (b *Controller) handleCheckoutCompleted(s *stripe.CheckoutSession) {
	plannerEmail := strings.ToLower(s.ClientReferenceID)
	if plannerEmail == "" {
		return
	}

	var sub Models.Subscription
	if err := b.DB.Where("planner_email = ?", plannerEmail).First(&sub).Error; err != nil {
		sub = Models.Subscription{PlannerEmail: plannerEmail}
	}
	if s.Customer != nil {
		sub.StripeCustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		sub.StripeSubscriptionID = s.Subscription.ID
	}
	sub.Status = "active"
	sub.PriceID = b.PriceID

	if err := b.DB.Save(&sub).Error; err != nil {
		log.Printf("billing: failed to persist subscription for %s: %v", plannerEmail, err)
	}
}

func (b *Controller) handleSubscriptionChanged(s *stripe.Subscription) {
	var sub Models.Subscription
	if err := b.DB.Where("stripe_subscription_id = ?", s.ID).First(&sub).Error; err != nil {
		if s.Customer == nil {
			return
		}
		if err := b.DB.Where("stripe_customer_id = ?", s.Customer.ID).First(&sub).Error; err != nil {
			log.Printf("billing: subscription event for unknown customer %s", s.Customer.ID)
			return
		}
		sub.StripeSubscriptionID = s.ID
	}

	sub.Status = string(s.Status)
	sub.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0)
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		sub.PriceID = s.Items.Data[0].Price.ID
	}

	if err := b.DB.Save(&sub).Error; err != nil {
		log.Printf("billing: failed to update subscription %s: %v", s.ID, err)
	}
}
