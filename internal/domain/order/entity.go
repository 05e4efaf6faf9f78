// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusExpired PaymentStatus = "expired"
)

// OrderMode distinguishes client-initiated checkouts from system-initiated
// replenishment orders. Always set at creation, never inferred from the
// order number.
type OrderMode string

const (
	OrderModeManual OrderMode = "manual"
	OrderModeAuto   OrderMode = "auto"
)

// Policy rejection codes recorded on zero-value cancelled orders
const (
	DeclineReasonQuotaExceeded       = "quota_exceeded"
	DeclineReasonManualOrderRequired = "manual_order_required"
)

// Order represents a supply order placed for a client
type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	ClientID      uint          `gorm:"not null;index:idx_orders_client_created,priority:1" json:"client_id"`
	Status        OrderStatus   `gorm:"not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"not null;default:'pending'" json:"payment_status"`
	Mode          OrderMode     `gorm:"not null;size:10;index" json:"mode"`

	TotalAmount int64  `gorm:"not null" json:"total_amount"` // In cents
	Currency    string `gorm:"size:3;default:'USD'" json:"currency"`

	Notes         string `gorm:"type:text" json:"notes"`
	DeclineReason string `gorm:"size:50" json:"decline_reason,omitempty"` // set on policy rejection records

	// Settlement outcome
	PaymentReference string     `gorm:"size:255" json:"payment_reference"`
	PaidAt           *time.Time `json:"paid_at"`

	// StockCommitted marks that supplier stock was decremented for this
	// order; cancellation restores stock only when it is set.
	StockCommitted bool `gorm:"default:false" json:"stock_committed"`

	DeliveredAt *time.Time     `json:"delivered_at"`
	CreatedAt   time.Time      `gorm:"index:idx_orders_client_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem represents one line of an order
type OrderItem struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	OrderID    uint   `gorm:"not null;index" json:"order_id"`
	ProductID  uint   `gorm:"not null;index" json:"product_id"`
	SKU        string `gorm:"not null;size:100" json:"sku"`
	Name       string `gorm:"not null;size:255" json:"name"`
	Quantity   int    `gorm:"not null" json:"quantity"`
	UnitPrice  int64  `gorm:"not null" json:"unit_price"`  // Price per unit in cents
	TotalPrice int64  `gorm:"not null" json:"total_price"` // Quantity * UnitPrice

	// AdjustmentNote is set when the requested quantity was capped to the
	// live supplier stock.
	AdjustmentNote string `gorm:"size:255" json:"adjustment_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatusHistory tracks order status changes and audit notes
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"not null" json:"status"`
	Comment   string      `gorm:"type:text" json:"comment"`
	CreatedAt time.Time   `json:"created_at"`
}

// ConsumptionRun records one execution of the daily consumption job. The
// unique run_date lets a restarted process see that today already ran.
type ConsumptionRun struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	RunDate            string     `gorm:"uniqueIndex;not null;size:10" json:"run_date"` // YYYY-MM-DD in business timezone
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
	EntriesDecremented int        `json:"entries_decremented"`
	ClientsProcessed   int        `json:"clients_processed"`
	ClientsFailed      int        `json:"clients_failed"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }
func (ConsumptionRun) TableName() string     { return "consumption_runs" }

// FormatOrderNumber builds the order number for a persisted order.
// Format: MAN|AUT-YYYYMMDD-XXXXX
func FormatOrderNumber(mode OrderMode, createdAt time.Time, id uint) string {
	prefix := "MAN"
	if mode == OrderModeAuto {
		prefix = "AUT"
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, createdAt.Format("20060102"), id)
}

// GetFormattedTotal returns total amount as float
func (o *Order) GetFormattedTotal() float64 {
	return float64(o.TotalAmount) / 100
}

// CanBeCancelled checks if the order can still be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending ||
		o.Status == OrderStatusConfirmed ||
		o.Status == OrderStatusProcessing
}

// IsPolicyRecord reports whether the order is a zero-value policy rejection
// record rather than a real purchase.
func (o *Order) IsPolicyRecord() bool {
	return o.DeclineReason != ""
}
