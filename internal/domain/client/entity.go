// internal/domain/client/entity.go
package client

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Client represents a B2B customer holding stock on site
type Client struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null;size:255" json:"name"`
	Email        string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Phone        string `gorm:"size:20" json:"phone"`
	AddressLine1 string `gorm:"size:255" json:"address_line1"`
	AddressLine2 string `gorm:"size:255" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	State        string `gorm:"size:100" json:"state"`
	PostalCode   string `gorm:"size:20" json:"postal_code"`
	Country      string `gorm:"size:2;default:'US'" json:"country"`

	// Reference to the stored payment profile at the gateway
	PaymentCustomerID string `gorm:"size:255" json:"payment_customer_id"`

	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name for Client
func (Client) TableName() string {
	return "clients"
}

// BeforeCreate hook to handle business logic before client creation
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	c.Email = strings.ToLower(c.Email)
	return nil
}

// HasStoredPaymentProfile reports whether the client can be charged off-session
func (c *Client) HasStoredPaymentProfile() bool {
	return c.PaymentCustomerID != ""
}
