package mail

import (
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"consent-app/config"
)

var ErrNotConfigured = errors.New("email service not configured")

type Mailer interface {
	SendVerificationEmail(to, token string) error
	SendPasswordResetEmail(to, token string) error
}

type SMTPMailer struct {
	from      string
	verifyURL string
	resetURL  string
	dialer    *gomail.Dialer
}

// New returns an SMTP mailer, or a LogMailer when no SMTP host is set.
// verifyBase is the API base (the verify link hits GET /verify) and
// resetBase is the dashboard that hosts the reset form.
func New(cfg config.SMTPConfig, verifyBase, resetBase string, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		return LogMailer{Logger: logger}
	}
	return &SMTPMailer{
		from:      cfg.From,
		verifyURL: verifyBase + "/verify?token=",
		resetURL:  resetBase + "/reset-password?token=",
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPMailer) SendVerificationEmail(to, token string) error {
	return s.send(s.verificationMessage(to, token))
}

func (s *SMTPMailer) SendPasswordResetEmail(to, token string) error {
	return s.send(s.resetMessage(to, token))
}

func (s *SMTPMailer) verificationMessage(to, token string) *gomail.Message {
	link := s.verifyURL + token
	return s.message(to, "Verify your account",
		fmt.Sprintf("Welcome!\n\nConfirm your email address to start adding websites:\n%s\n\nThe link expires in 24 hours.", link),
		fmt.Sprintf(`<p>Welcome!</p><p>Confirm your email address to start adding websites:</p><p><a href="%s">Verify email</a></p><p>The link expires in 24 hours.</p>`, link))
}

func (s *SMTPMailer) resetMessage(to, token string) *gomail.Message {
	link := s.resetURL + token
	return s.message(to, "Reset your password",
		fmt.Sprintf("We received a request to reset your password:\n%s\n\nThe link expires in 1 hour. Ignore this email if it was not you.", link),
		fmt.Sprintf(`<p>We received a request to reset your password.</p><p><a href="%s">Reset password</a></p><p>The link expires in 1 hour. Ignore this email if it was not you.</p>`, link))
}

func (s *SMTPMailer) message(to, subject, plain, html string) *gomail.Message {
	m := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)
	return m
}

func (s *SMTPMailer) send(m *gomail.Message) error {
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer stands in for SMTP in development: it logs the token instead.
type LogMailer struct {
	Logger *slog.Logger
}

func (l LogMailer) SendVerificationEmail(to, token string) error {
	l.log().Warn("smtp not configured, verification email not sent", "to", to, "token", token)
	return nil
}

func (l LogMailer) SendPasswordResetEmail(to, token string) error {
	l.log().Warn("smtp not configured, password reset email not sent", "to", to, "token", token)
	return nil
}

func (l LogMailer) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
