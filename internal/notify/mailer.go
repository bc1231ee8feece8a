// Package notify delivers account emails. A Mailer renders the messages and
// hands them to a Sender, which either logs them or queues them on a Redis
// stream for the Dispatcher.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

const (
	subjectTwoFactor = "Your Two-Factor Authentication Code"
	subjectWelcome   = "Welcome to AuthSystem!"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Mailer implements domain.Notifier on top of a Sender.
type Mailer struct {
	sender Sender
}

var _ domain.Notifier = (*Mailer)(nil)

func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	return m.sender.Send(ctx, to, subject, body)
}

func (m *Mailer) SendTwoFactorCode(ctx context.Context, to, code string) error {
	return m.sender.Send(ctx, to, subjectTwoFactor, twoFactorBody(code))
}

func (m *Mailer) SendWelcome(ctx context.Context, to, firstName string) error {
	return m.sender.Send(ctx, to, subjectWelcome, welcomeBody(firstName))
}

func twoFactorBody(code string) string {
	return fmt.Sprintf(
		"<h2>Two-Factor Authentication</h2>"+
			"<p>Your verification code is: <strong>%s</strong></p>"+
			"<p>This code will expire in 10 minutes.</p>"+
			"<p>If you didn't request this code, please ignore this email.</p>",
		html.EscapeString(code))
}

func welcomeBody(firstName string) string {
	return fmt.Sprintf(
		"<h2>Welcome %s!</h2>"+
			"<p>Thank you for registering with AuthSystem.</p>"+
			"<p>Your account has been successfully created.</p>"+
			"<p>You can now log in and start using our services.</p>",
		html.EscapeString(firstName))
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "mail").Logger()}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.log.Info().Str("to", to).Str("subject", subject).
		Msgf("Sending email to %s with subject %s", to, subject)
	s.log.Info().Str("to", to).Msg(body)
	return nil
}
