// internal/pkg/email/smtp.go
package email

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
)

// sendSMTPEmail sends email using SMTP
func (s *EmailService) sendSMTPEmail(email *Email) error {
	if s.config.External.Email.SMTPHost == "" || s.config.External.Email.SMTPUser == "" {
		return fmt.Errorf("SMTP configuration incomplete: missing host or username")
	}

	auth := smtp.PlainAuth("",
		s.config.External.Email.SMTPUser,
		s.config.External.Email.SMTPPass,
		s.config.External.Email.SMTPHost)

	fromEmail := s.config.External.Email.FromEmail
	fromName := s.config.External.Email.FromName
	var from string
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	} else {
		from = fromEmail
	}

	headers := map[string]string{
		"From":         from,
		"To":           strings.Join(email.To, ", "),
		"Subject":      email.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=\"utf-8\"",
	}

	var msg bytes.Buffer
	for key, value := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	msg.WriteString("\r\n")
	msg.WriteString(email.HTMLContent)

	serverAddr := fmt.Sprintf("%s:%d", s.config.External.Email.SMTPHost, s.config.External.Email.SMTPPort)
	return smtp.SendMail(serverAddr, auth, fromEmail, email.To, msg.Bytes())
}
