package notification

import (
	"fmt"
	"net/smtp"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

type EmailService struct {
	config EmailConfig
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// SendMagicLinkEmail delivers the one-time sign-in link.
func (s *EmailService) SendMagicLinkEmail(to, linkURL string) error {
	subject := "Your sign-in link"
	body := fmt.Sprintf(`<html><body>
		<h2>Sign in to your account</h2>
		<p>Click the link below to sign in. No password needed.</p>
		<p><a href="%s">Sign in</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link can be used once and expires in 15 minutes.</p>
		<p>If you did not request this link, you can safely ignore this email.</p>
	</body></html>`, linkURL, linkURL)
	return s.sendEmail(to, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
