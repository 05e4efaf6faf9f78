// internal/domain/order/service.go
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/product"
	"gorm.io/gorm"
)

// Sentinel errors for order operations
var (
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Service handles order business logic
type Service struct {
	db               *gorm.DB
	config           *config.Config
	productService   *product.Service
	inventoryService *inventory.Service
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, productService *product.Service, inventoryService *inventory.Service) *Service {
	return &Service{
		db:               db,
		config:           cfg,
		productService:   productService,
		inventoryService: inventoryService,
	}
}

// LineRequest represents one requested order line
type LineRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page     int         `form:"page,default=1"`
	Limit    int         `form:"limit,default=20"`
	Status   OrderStatus `form:"status"`
	Mode     OrderMode   `form:"mode"`
	ClientID uint        `form:"client_id"`
	DateFrom string      `form:"date_from"`
	DateTo   string      `form:"date_to"`
}

// OrderListResponse represents an order page with pagination
type OrderListResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// CreateManualOrder creates a client-initiated order from requested lines.
// Supplier stock is not touched here; it is committed when payment confirms.
func (s *Service) CreateManualOrder(clientID uint, lines []LineRequest) (*Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order must contain at least one line")
	}

	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		p, err := s.productService.GetProduct(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, err)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("product '%s' is no longer available", p.Name)
		}
		if p.StockQuantity < line.Quantity {
			return nil, fmt.Errorf("insufficient supplier stock for '%s': available %d, requested %d",
				p.Name, p.StockQuantity, line.Quantity)
		}
		items = append(items, OrderItem{
			ProductID:  p.ID,
			SKU:        p.SKU,
			Name:       p.Name,
			Quantity:   line.Quantity,
			UnitPrice:  p.Price,
			TotalPrice: p.Price * int64(line.Quantity),
		})
	}

	return s.CreateOrder(clientID, OrderModeManual, items, "")
}

// currency is the settlement currency orders are stored in, ISO 4217
// uppercase. Falls back to USD when the gateway config leaves it unset.
func (s *Service) currency() string {
	if c := s.config.External.Stripe.Currency; c != "" {
		return strings.ToUpper(c)
	}
	return "USD"
}

// CreateOrder persists an order with prepared items in pending/pending
func (s *Service) CreateOrder(clientID uint, mode OrderMode, items []OrderItem, notes string) (*Order, error) {
	var total int64
	for _, item := range items {
		total += item.TotalPrice
	}

	ord := Order{
		ClientID:      clientID,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		Mode:          mode,
		TotalAmount:   total,
		Currency:      s.currency(),
		Notes:         notes,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ord).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		ord.OrderNumber = FormatOrderNumber(mode, ord.CreatedAt, ord.ID)
		if err := tx.Model(&ord).Update("order_number", ord.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to set order number: %w", err)
		}

		for i := range items {
			items[i].OrderID = ord.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		history := OrderStatusHistory{
			OrderID:   ord.ID,
			Status:    OrderStatusPending,
			Comment:   "Order created",
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	ord.Items = items
	return &ord, nil
}

// RecordPolicyRejection stores a zero-value cancelled auto order carrying the
// rejection reason. At most one record per reason per local calendar day;
// repeats return the existing record with created=false.
func (s *Service) RecordPolicyRejection(clientID uint, reason, message string) (*Order, bool, error) {
	dayStart, dayEnd := s.localDayBounds(time.Now())

	var existing Order
	err := s.db.
		Where("client_id = ? AND mode = ? AND decline_reason = ?", clientID, OrderModeAuto, reason).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to check rejection record: %w", err)
	}

	ord := Order{
		ClientID:      clientID,
		Status:        OrderStatusCancelled,
		PaymentStatus: PaymentStatusFailed,
		Mode:          OrderModeAuto,
		TotalAmount:   0,
		Currency:      s.currency(),
		Notes:         message,
		DeclineReason: reason,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ord).Error; err != nil {
			return fmt.Errorf("failed to create rejection record: %w", err)
		}
		ord.OrderNumber = FormatOrderNumber(OrderModeAuto, ord.CreatedAt, ord.ID)
		if err := tx.Model(&ord).Update("order_number", ord.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to set order number: %w", err)
		}
		history := OrderStatusHistory{
			OrderID:   ord.ID,
			Status:    OrderStatusCancelled,
			Comment:   fmt.Sprintf("Auto-order rejected: %s", message),
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &ord, true, nil
}

// CountOrdersForDay counts a client's real orders of the given mode over the
// local calendar day containing ref. Policy rejection records do not count.
func (s *Service) CountOrdersForDay(clientID uint, mode OrderMode, ref time.Time) (int64, error) {
	dayStart, dayEnd := s.localDayBounds(ref)

	var count int64
	err := s.db.Model(&Order{}).
		Where("client_id = ? AND mode = ?", clientID, mode).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Where("decline_reason = ''").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// MarkPaid confirms payment: compare-and-swap pending -> paid, confirm the
// order, persist the settlement reference, and commit supplier stock. This is
// the only point the flow reduces supplier stock.
func (s *Service) MarkPaid(orderID uint, paymentReference string) (*Order, error) {
	var ord Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&ord, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		now := time.Now().UTC()
		result := tx.Model(&Order{}).
			Where("id = ? AND payment_status = ?", orderID, PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status":    PaymentStatusPaid,
				"status":            OrderStatusConfirmed,
				"payment_reference": paymentReference,
				"paid_at":           now,
				"stock_committed":   true,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark order paid: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost the race: the order was already settled, failed or expired.
			return fmt.Errorf("%w: payment status is no longer pending", ErrInvalidTransition)
		}

		for _, item := range ord.Items {
			if err := s.commitLineStock(tx, &ord, item); err != nil {
				return err
			}
		}

		history := OrderStatusHistory{
			OrderID:   orderID,
			Status:    OrderStatusConfirmed,
			Comment:   fmt.Sprintf("Payment confirmed (ref %s)", paymentReference),
			CreatedAt: now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(orderID)
}

// commitLineStock decrements supplier stock for one paid line. A shortfall
// that raced in since assembly floors supplier stock at zero and leaves an
// audit note instead of failing the settlement.
func (s *Service) commitLineStock(tx *gorm.DB, ord *Order, item OrderItem) error {
	err := s.productService.AdjustStock(tx, item.ProductID, -item.Quantity)
	if err == nil {
		return nil
	}
	if !errors.Is(err, product.ErrInsufficientStock) {
		return err
	}

	if err := tx.Model(&product.Product{}).
		Where("id = ?", item.ProductID).
		UpdateColumn("stock_quantity", 0).Error; err != nil {
		return fmt.Errorf("failed to floor supplier stock: %w", err)
	}

	history := OrderStatusHistory{
		OrderID:   ord.ID,
		Status:    ord.Status,
		Comment:   fmt.Sprintf("Supplier stock shortfall on %s: committed less than %d units", item.SKU, item.Quantity),
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to record stock shortfall: %w", err)
	}
	return nil
}

// MarkPaymentFailed records a failed settlement attempt. Supplier stock is
// untouched; there is no in-process retry.
func (s *Service) MarkPaymentFailed(orderID uint, reason string) (*Order, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).
			Where("id = ? AND payment_status = ?", orderID, PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status": PaymentStatusFailed,
				"notes":          gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || ?  END", "Payment failed: "+reason, "\nPayment failed: "+reason),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark payment failed: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: payment status is no longer pending", ErrInvalidTransition)
		}

		history := OrderStatusHistory{
			OrderID:   orderID,
			Status:    OrderStatusPending,
			Comment:   fmt.Sprintf("Payment failed: %s", reason),
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(orderID)
}

// ReleaseExpiredOrders cancels unpaid pending orders older than the cutoff.
// The compare-and-swap per order makes each expire exactly once even when
// sweeps overlap. Stock is decremented only on confirmed payment, so there is
// nothing to restore here. Returns the orders released by this sweep.
func (s *Service) ReleaseExpiredOrders(cutoff time.Time) ([]Order, error) {
	var candidates []Order
	err := s.db.
		Where("payment_status = ? AND status = ?", PaymentStatusPending, OrderStatusPending).
		Where("created_at < ?", cutoff).
		Where("decline_reason = ''").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}

	released := make([]Order, 0, len(candidates))
	for _, candidate := range candidates {
		ok, err := s.expireOrder(candidate.ID, "Payment window elapsed; order released")
		if err != nil {
			return released, err
		}
		if ok {
			if ord, err := s.GetOrder(candidate.ID); err == nil {
				released = append(released, *ord)
			}
		}
	}

	return released, nil
}

// ManuallyReleaseOrder is the admin override for a stuck unpaid order.
// Fails with ErrAlreadyPaid if settlement already confirmed it.
func (s *Service) ManuallyReleaseOrder(orderID uint) (*Order, error) {
	ord, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if ord.PaymentStatus == PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}

	ok, err := s.expireOrder(orderID, "Released by administrator")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order is not awaiting payment", ErrInvalidTransition)
	}

	return s.GetOrder(orderID)
}

// expireOrder performs the cancelled/expired compare-and-swap for one order
func (s *Service) expireOrder(orderID uint, comment string) (bool, error) {
	released := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).
			Where("id = ? AND payment_status = ? AND status = ?", orderID, PaymentStatusPending, OrderStatusPending).
			Updates(map[string]interface{}{
				"payment_status": PaymentStatusExpired,
				"status":         OrderStatusCancelled,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to expire order %d: %w", orderID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		released = true

		history := OrderStatusHistory{
			OrderID:   orderID,
			Status:    OrderStatusCancelled,
			Comment:   comment,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
	return released, err
}

// CancelOrder cancels an order, restoring supplier stock only when it was
// committed by a confirmed payment.
func (s *Service) CancelOrder(orderID uint, reason string) error {
	var ord Order
	if err := s.db.Preload("Items").First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if !ord.CanBeCancelled() {
		return fmt.Errorf("order cannot be cancelled in status %s", ord.Status)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).
			Where("id = ? AND status = ?", orderID, ord.Status).
			Updates(map[string]interface{}{
				"status":          OrderStatusCancelled,
				"stock_committed": false,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to cancel order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}

		if ord.StockCommitted {
			for _, item := range ord.Items {
				if err := s.productService.AdjustStock(tx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("failed to restore supplier stock: %w", err)
				}
			}
		}

		history := OrderStatusHistory{
			OrderID:   orderID,
			Status:    OrderStatusCancelled,
			Comment:   fmt.Sprintf("Order cancelled: %s", reason),
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
}

// UpdateOrderStatus moves an order along the fulfillment path. Marking an
// order delivered also adds the delivered quantities to the client's ledger.
func (s *Service) UpdateOrderStatus(orderID uint, status OrderStatus, comment string) error {
	var ord Order
	if err := s.db.Preload("Items").First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if !isValidStatusTransition(ord.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, status)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		updates := map[string]interface{}{"status": status}
		if status == OrderStatusDelivered {
			updates["delivered_at"] = now
		}

		result := tx.Model(&Order{}).
			Where("id = ? AND status = ?", orderID, ord.Status).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update order status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}

		if status == OrderStatusDelivered {
			for _, item := range ord.Items {
				if err := s.inventoryService.AddDeliveredStock(tx, ord.ClientID, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		history := OrderStatusHistory{
			OrderID:   orderID,
			Status:    status,
			Comment:   comment,
			CreatedAt: now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
}

// GetOrder retrieves a single order by ID
func (s *Service) GetOrder(id uint) (*Order, error) {
	var ord Order
	result := s.db.
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		First(&ord, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}
	return &ord, nil
}

// GetOrderByNumber retrieves a single order by order number
func (s *Service) GetOrderByNumber(orderNumber string) (*Order, error) {
	var ord Order
	result := s.db.
		Preload("Items").
		Where("order_number = ?", orderNumber).
		First(&ord)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}
	return &ord, nil
}

// GetOrders retrieves orders with filtering and pagination
func (s *Service) GetOrders(req *OrderListRequest) (*OrderListResponse, error) {
	var orders []Order
	var total int64

	query := s.db.Model(&Order{}).Preload("Items")

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Mode != "" {
		query = query.Where("mode = ?", req.Mode)
	}
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.DateFrom != "" {
		query = query.Where("created_at >= ?", req.DateFrom)
	}
	if req.DateTo != "" {
		query = query.Where("created_at <= ?", req.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 20
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &OrderListResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// localDayBounds returns [start, end) of the local calendar day containing ref
func (s *Service) localDayBounds(ref time.Time) (time.Time, time.Time) {
	loc := s.config.Location()
	local := ref.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func isValidStatusTransition(from, to OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending: {
			OrderStatusConfirmed,
			OrderStatusCancelled,
		},
		OrderStatusConfirmed: {
			OrderStatusProcessing,
			OrderStatusCancelled,
		},
		OrderStatusProcessing: {
			OrderStatusDelivered,
			OrderStatusCancelled,
		},
	}

	for _, status := range validTransitions[from] {
		if status == to {
			return true
		}
	}
	return false
}
