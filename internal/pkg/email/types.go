// internal/pkg/email/types.go
package email

import (
	"time"
)

// EmailType represents the type of email being sent
type EmailType string

const (
	EmailTypeAutoOrderConfirmation EmailType = "auto_order_confirmation"
	EmailTypeOrderConfirmation     EmailType = "order_confirmation"
	EmailTypePaymentFailed         EmailType = "payment_failed"
	EmailTypePolicyRejection       EmailType = "policy_rejection"
	EmailTypeOrderExpired          EmailType = "order_expired"
	EmailTypeOrderStatusUpdate     EmailType = "order_status_update"
)

// Email represents an email message
type Email struct {
	To          []string               `json:"to"`
	CC          []string               `json:"cc,omitempty"`
	Subject     string                 `json:"subject"`
	HTMLContent string                 `json:"html_content"`
	TextContent string                 `json:"text_content,omitempty"`
	Type        EmailType              `json:"type"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// EmailTemplateData contains common data for all email templates
type EmailTemplateData struct {
	SiteName    string `json:"site_name"`
	SiteURL     string `json:"site_url"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Year        int    `json:"year"`
}

// OrderLine represents one order line in a notification
type OrderLine struct {
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Total          float64 `json:"total"`
	AdjustmentNote string  `json:"adjustment_note,omitempty"`
}

// OrderConfirmationData contains data for order confirmation emails, both
// client checkouts and automatic replenishment orders.
type OrderConfirmationData struct {
	EmailTemplateData
	OrderNumber string      `json:"order_number"`
	OrderDate   string      `json:"order_date"`
	OrderTotal  float64     `json:"order_total"`
	AutoOrder   bool        `json:"auto_order"`
	Lines       []OrderLine `json:"lines"`
}

// PaymentNotificationData contains data for payment failure notifications
type PaymentNotificationData struct {
	EmailTemplateData
	OrderNumber string  `json:"order_number"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
	Date        string  `json:"date"`
}

// PolicyRejectionData contains data for auto-order policy rejections
type PolicyRejectionData struct {
	EmailTemplateData
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Date    string `json:"date"`
}

// OrderExpiredData contains data for released unpaid orders
type OrderExpiredData struct {
	EmailTemplateData
	OrderNumber string  `json:"order_number"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// GetBaseTemplateData returns common template data
func GetBaseTemplateData(siteName, siteURL, clientName, clientEmail string) EmailTemplateData {
	return EmailTemplateData{
		SiteName:    siteName,
		SiteURL:     siteURL,
		ClientName:  clientName,
		ClientEmail: clientEmail,
		Year:        time.Now().Year(),
	}
}
