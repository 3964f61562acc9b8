// Package notify sends account emails.
package notify

import (
	"context"
	"fmt"
	"html"

	"wellness/wellness/config"
	"wellness/wellness/utils/logging"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendAccountDeleted(ctx context.Context, email string) error
}

// New returns a Resend notifier when an API key is configured and a log-only
// notifier otherwise.
func New(cfg config.Config) Notifier {
	if cfg.ResendAPIKey == "" {
		logging.AppLogger.Info("RESEND_API_KEY not set, emails are logged only")
		return LogNotifier{}
	}
	return &ResendNotifier{client: resend.NewClient(cfg.ResendAPIKey), from: cfg.FromEmail}
}

type ResendNotifier struct {
	client *resend.Client
	from   string
}

func (n *ResendNotifier) send(ctx context.Context, to, subject, body string) error {
	sent, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logging.AppLogger.Info("email sent", zap.String("email_id", sent.Id), zap.String("subject", subject))
	return nil
}

func (n *ResendNotifier) SendWelcome(ctx context.Context, email, name string) error {
	return n.send(ctx, email, "Welcome to your wellness companion", welcomeHTML(name))
}

func (n *ResendNotifier) SendAccountDeleted(ctx context.Context, email string) error {
	return n.send(ctx, email, "Your account has been deleted", deletedHTML)
}

// LogNotifier writes what would have been sent to the app log.
type LogNotifier struct{}

func (LogNotifier) SendWelcome(_ context.Context, email, name string) error {
	logging.AppLogger.Info("[dev] welcome email", zap.String("to", email), zap.String("name", name))
	return nil
}

func (LogNotifier) SendAccountDeleted(_ context.Context, email string) error {
	logging.AppLogger.Info("[dev] account deleted email", zap.String("to", email))
	return nil
}

func welcomeHTML(name string) string {
	greeting := "Welcome!"
	if name != "" {
		greeting = fmt.Sprintf("Welcome, %s!", html.EscapeString(name))
	}
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">%s</h2>
			<p>Your account is ready. Complete your family profile to get personalized guidance
			on nutrition, fitness, sleep and stress.</p>
			<p style="color: #aaa; font-size: 12px;">If you didn't sign up, you can safely ignore this email.</p>
		</div>
	`, greeting)
}

const deletedHTML = `
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Your account has been deleted</h2>
			<p>Your profile, conversations, roadmap, documents and activity history were removed.</p>
		</div>
	`
