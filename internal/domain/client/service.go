// internal/domain/client/service.go
package client

import (
	"errors"
	"fmt"

	"github.com/your-org/medsupply-backend/internal/config"
	"gorm.io/gorm"
)

// ErrNotFound indicates the requested client does not exist
var ErrNotFound = errors.New("client not found")

// Service handles client directory business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new client service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CreateClientRequest represents client creation data
type CreateClientRequest struct {
	Name              string `json:"name" binding:"required"`
	Email             string `json:"email" binding:"required,email"`
	Phone             string `json:"phone"`
	AddressLine1      string `json:"address_line1"`
	AddressLine2      string `json:"address_line2"`
	City              string `json:"city"`
	State             string `json:"state"`
	PostalCode        string `json:"postal_code"`
	Country           string `json:"country"`
	PaymentCustomerID string `json:"payment_customer_id"`
}

// CreateClient registers a new client
func (s *Service) CreateClient(req *CreateClientRequest) (*Client, error) {
	var existing Client
	if err := s.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("client with email '%s' already exists", req.Email)
	}

	c := &Client{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		AddressLine1:      req.AddressLine1,
		AddressLine2:      req.AddressLine2,
		City:              req.City,
		State:             req.State,
		PostalCode:        req.PostalCode,
		Country:           req.Country,
		PaymentCustomerID: req.PaymentCustomerID,
		IsActive:          true,
	}
	if c.Country == "" {
		c.Country = "US"
	}

	if err := s.db.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return c, nil
}

// GetClient retrieves a client by ID
func (s *Service) GetClient(id uint) (*Client, error) {
	var c Client
	if err := s.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve client: %w", err)
	}
	return &c, nil
}

// GetActiveClient retrieves a client and rejects inactive accounts
func (s *Service) GetActiveClient(id uint) (*Client, error) {
	c, err := s.GetClient(id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, fmt.Errorf("client %d is inactive", id)
	}
	return c, nil
}

// ListClients retrieves all clients
func (s *Service) ListClients() ([]Client, error) {
	var clients []Client
	if err := s.db.Order("name").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve clients: %w", err)
	}
	return clients, nil
}

// UpdatePaymentCustomer links a stored payment profile to the client
func (s *Service) UpdatePaymentCustomer(id uint, paymentCustomerID string) error {
	result := s.db.Model(&Client{}).Where("id = ?", id).Update("payment_customer_id", paymentCustomerID)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment customer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
