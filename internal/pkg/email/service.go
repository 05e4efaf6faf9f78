// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
)

// EmailService handles all email operations
type EmailService struct {
	config    *config.Config
	templates map[string]*template.Template
	client    *http.Client
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config) *EmailService {
	service := &EmailService{
		config:    cfg,
		templates: make(map[string]*template.Template),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	if err := service.loadTemplates(); err != nil {
		log.Printf("Warning: Failed to load email templates: %v", err)
	}

	return service
}

// SendEmail sends an email using the configured provider
func (s *EmailService) SendEmail(ctx context.Context, email *Email) error {
	switch s.config.External.Email.Provider {
	case "smtp":
		return s.sendSMTPEmail(email)
	case "resend":
		return s.sendResendEmail(ctx, email)
	case "sendgrid":
		return s.sendSendGridEmail(ctx, email)
	default:
		return fmt.Errorf("unsupported email provider: %s", s.config.External.Email.Provider)
	}
}

// SendOrderConfirmationEmail notifies a client that an order was placed and
// paid. Used for both manual checkouts and automatic replenishment orders;
// the template lists adjustment notes on lines capped to supplier stock.
func (s *EmailService) SendOrderConfirmationEmail(ctx context.Context, data OrderConfirmationData) error {
	data.EmailTemplateData = GetBaseTemplateData(
		s.config.External.Email.FromName,
		s.config.External.Email.BaseURL,
		data.ClientName,
		data.ClientEmail,
	)

	htmlContent, err := s.renderTemplate("order_confirmation", data)
	if err != nil {
		return fmt.Errorf("failed to render order confirmation template: %w", err)
	}

	subject := fmt.Sprintf("Order Confirmation - %s", data.OrderNumber)
	emailType := EmailTypeOrderConfirmation
	if data.AutoOrder {
		subject = fmt.Sprintf("Automatic Replenishment Order - %s", data.OrderNumber)
		emailType = EmailTypeAutoOrderConfirmation
	}

	email := &Email{
		To:          []string{data.ClientEmail},
		Subject:     subject,
		HTMLContent: htmlContent,
		Type:        emailType,
		Data: map[string]interface{}{
			"order_number": data.OrderNumber,
			"order_total":  data.OrderTotal,
		},
	}

	return s.SendEmail(ctx, email)
}

// SendPaymentFailedEmail notifies a client that an order settlement failed
func (s *EmailService) SendPaymentFailedEmail(ctx context.Context, data PaymentNotificationData) error {
	data.EmailTemplateData = GetBaseTemplateData(
		s.config.External.Email.FromName,
		s.config.External.Email.BaseURL,
		data.ClientName,
		data.ClientEmail,
	)

	htmlContent, err := s.renderTemplate("payment_failed", data)
	if err != nil {
		return fmt.Errorf("failed to render payment failed template: %w", err)
	}

	email := &Email{
		To:          []string{data.ClientEmail},
		Subject:     fmt.Sprintf("Payment Failed - %s", data.OrderNumber),
		HTMLContent: htmlContent,
		Type:        EmailTypePaymentFailed,
		Data: map[string]interface{}{
			"order_number": data.OrderNumber,
			"amount":       data.Amount,
			"reason":       data.Reason,
		},
	}

	return s.SendEmail(ctx, email)
}

// SendPolicyRejectionEmail notifies a client that an automatic reorder was
// skipped by policy, such as the daily quota or a required manual order.
func (s *EmailService) SendPolicyRejectionEmail(ctx context.Context, data PolicyRejectionData) error {
	data.EmailTemplateData = GetBaseTemplateData(
		s.config.External.Email.FromName,
		s.config.External.Email.BaseURL,
		data.ClientName,
		data.ClientEmail,
	)

	htmlContent, err := s.renderTemplate("policy_rejection", data)
	if err != nil {
		return fmt.Errorf("failed to render policy rejection template: %w", err)
	}

	email := &Email{
		To:          []string{data.ClientEmail},
		Subject:     "Automatic Replenishment Skipped",
		HTMLContent: htmlContent,
		Type:        EmailTypePolicyRejection,
		Data: map[string]interface{}{
			"reason": data.Reason,
		},
	}

	return s.SendEmail(ctx, email)
}

// SendOrderExpiredEmail notifies a client that an unpaid order was released
func (s *EmailService) SendOrderExpiredEmail(ctx context.Context, data OrderExpiredData) error {
	data.EmailTemplateData = GetBaseTemplateData(
		s.config.External.Email.FromName,
		s.config.External.Email.BaseURL,
		data.ClientName,
		data.ClientEmail,
	)

	htmlContent, err := s.renderTemplate("order_expired", data)
	if err != nil {
		return fmt.Errorf("failed to render order expired template: %w", err)
	}

	email := &Email{
		To:          []string{data.ClientEmail},
		Subject:     fmt.Sprintf("Order Released - %s", data.OrderNumber),
		HTMLContent: htmlContent,
		Type:        EmailTypeOrderExpired,
		Data: map[string]interface{}{
			"order_number": data.OrderNumber,
		},
	}

	return s.SendEmail(ctx, email)
}

// loadTemplates loads all email templates
func (s *EmailService) loadTemplates() error {
	templateDir := s.config.External.Email.TemplateDir
	if templateDir == "" {
		templateDir = "./templates/emails"
	}

	templates := []string{
		"order_confirmation",
		"payment_failed",
		"policy_rejection",
		"order_expired",
	}

	for _, name := range templates {
		templatePath := filepath.Join(templateDir, name+".html")
		tmpl, err := template.ParseFiles(templatePath)
		if err != nil {
			s.templates[name] = s.createFallbackTemplate(name)
		} else {
			s.templates[name] = tmpl
		}
	}

	return nil
}

// renderTemplate renders an email template with data
func (s *EmailService) renderTemplate(templateName string, data interface{}) (string, error) {
	tmpl, exists := s.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// createFallbackTemplate builds the embedded template used when no template
// file is present on disk.
func (s *EmailService) createFallbackTemplate(name string) *template.Template {
	body, ok := fallbackBodies[name]
	if !ok {
		body = `<p>This is a notification from {{.SiteName}}.</p>`
	}

	page := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.SiteName}}</title>
</head>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f4f4f4;">
    <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 8px;">
        <h1 style="color: #333;">{{.SiteName}}</h1>
        <p>Hello {{.ClientName}},</p>
        ` + body + `
        <p>Best regards,<br>{{.SiteName}} Team</p>
        <hr>
        <p style="font-size: 12px; color: #666;">
            &copy; {{.Year}} {{.SiteName}}. All rights reserved.
        </p>
    </div>
</body>
</html>`

	tmpl, _ := template.New(name).Parse(page)
	return tmpl
}

var fallbackBodies = map[string]string{
	"order_confirmation": `
        <p>{{if .AutoOrder}}Your inventory dropped below its reorder point, so we placed a replenishment order for you.{{else}}Thank you for your order.{{end}}</p>
        <p>Order <strong>{{.OrderNumber}}</strong> placed on {{.OrderDate}}.</p>
        <table style="width: 100%; border-collapse: collapse;">
            <tr style="text-align: left;"><th>Item</th><th>Qty</th><th>Total</th></tr>
            {{range .Lines}}
            <tr>
                <td>{{.Name}} ({{.SKU}}){{if .AdjustmentNote}}<br><em style="color: #b45309;">{{.AdjustmentNote}}</em>{{end}}</td>
                <td>{{.Quantity}}</td>
                <td>${{printf "%.2f" .Total}}</td>
            </tr>
            {{end}}
        </table>
        <p><strong>Total charged: ${{printf "%.2f" .OrderTotal}}</strong></p>`,
	"payment_failed": `
        <p>We could not charge your stored payment method for order <strong>{{.OrderNumber}}</strong> (${{printf "%.2f" .Amount}}).</p>
        <p>Reason: {{.Reason}}</p>
        <p>The order will be released automatically if payment is not completed. Please update your payment details or place the order manually.</p>`,
	"policy_rejection": `
        <p>An automatic replenishment order was not placed on {{.Date}}.</p>
        <p>{{.Message}}</p>`,
	"order_expired": `
        <p>Order <strong>{{.OrderNumber}}</strong> (${{printf "%.2f" .Amount}}) was not paid within the payment window and has been released.</p>
        <p>No stock was reserved and nothing was charged. You can place the order again at any time.</p>`,
}
