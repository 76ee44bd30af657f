package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quickbite/quickbite-backend/pkg/pagination"
)

// Order is one row of the admin orders table.
type Order struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"_id,omitempty"`
	CustomerName   string          `json:"customerName"`
	RestaurantName string          `json:"restaurantName"`
	Status         string          `json:"status"`
	CancelledBy    string          `json:"cancelledBy,omitempty"`
	RefundStatus   string          `json:"refundStatus,omitempty"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// RefundRef is the identifier the refund endpoint accepts for o: the document
// id when known, otherwise the display id.
func (o Order) RefundRef() string {
	if id := strings.TrimSpace(o.DocumentID); id != "" {
		return id
	}
	return strings.TrimSpace(o.ID)
}

// ListParams are the list endpoint's query parameters. Empty filters are omitted.
type ListParams struct {
	pagination.Params
	Status      string
	CancelledBy string
}

type ListResult struct {
	Orders     []Order `json:"orders"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

type RefundResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
