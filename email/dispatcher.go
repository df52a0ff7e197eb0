package email

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"Plan2Tasks/Models"
)

// Dispatcher wraps the SMTP sender with a global rate limit so a burst of
// invites or re-auth prompts cannot trip the provider's sending quota.
type Dispatcher struct {
	Config  Models.EmailConfig
	Limiter *rate.Limiter
	// Send is swappable in tests.
	Send func(Models.EmailConfig, Models.EmailMessage) error
	// AppURL is the public base URL embedded in links.
	AppURL string
}

// NewDispatcher allows one email per interval of `every`, with a small burst.
func NewDispatcher(config Models.EmailConfig, appURL string, perSecond float64, burst int) *Dispatcher {
	return &Dispatcher{
		Config:  config,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		Send:    SendEmail,
		AppURL:  appURL,
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, message Models.EmailMessage) error {
	if err := d.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limiter: %w", err)
	}
	return d.Send(d.Config, message)
}

// SendMagicLink emails a one-time sign-in link to a planner.
func (d *Dispatcher) SendMagicLink(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/api/auth/verify?token=%s", d.AppURL, token)
	return d.dispatch(ctx, Models.EmailMessage{
		To:      []string{to},
		Subject: "Your Plan2Tasks sign-in link",
		Body: fmt.Sprintf("<p>Click to sign in to Plan2Tasks:</p><p><a href=%q>%s</a></p>"+
			"<p>The link expires in 15 minutes and can be used once.</p>", link, link),
		IsHTML: true,
	})
}

// SendInvite emails a user the link that starts their Google consent flow.
func (d *Dispatcher) SendInvite(ctx context.Context, to, plannerEmail, token string) error {
	link := fmt.Sprintf("%s/api/google/start?invite=%s", d.AppURL, token)
	return d.dispatch(ctx, Models.EmailMessage{
		To:      []string{to},
		Subject: fmt.Sprintf("%s wants to plan tasks for you", plannerEmail),
		Body: fmt.Sprintf("<p>%s uses Plan2Tasks to deliver task plans into your Google Tasks.</p>"+
			"<p><a href=%q>Connect your Google account</a></p>", plannerEmail, link),
		IsHTML: true,
	})
}

// SendReauthPrompt tells a planner that one of their users' Google grants
// stopped working.
func (d *Dispatcher) SendReauthPrompt(ctx context.Context, plannerEmail, userEmail string) error {
	return d.dispatch(ctx, Models.EmailMessage{
		To:      []string{plannerEmail},
		Subject: fmt.Sprintf("Action needed: %s is disconnected", userEmail),
		Body: fmt.Sprintf("<p>The Google Tasks connection for %s stopped working. "+
			"Send them a new invite from your dashboard to reconnect.</p>", userEmail),
		IsHTML: true,
	})
}

// SendDigest delivers the daily feedback digest to the ops inbox.
func (d *Dispatcher) SendDigest(ctx context.Context, to, body string) error {
	return d.dispatch(ctx, Models.EmailMessage{
		To:      []string{to},
		Subject: "Plan2Tasks daily feedback digest",
		Body:    body,
		IsHTML:  false,
	})
}
