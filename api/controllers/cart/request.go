package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	cartsvc "github.com/quickbite/quickbite-backend/internal/cart"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

type addItemRequest struct {
	ID           string            `json:"id" validate:"required,max=128"`
	Name         string            `json:"name" validate:"required,max=256"`
	Price        decimal.Decimal   `json:"price"`
	Image        string            `json:"image"`
	RestaurantID string            `json:"restaurantId"`
	Restaurant   string            `json:"restaurant"`
	Source       *cartsvc.Position `json:"source"`
}

func (r addItemRequest) toLineItem() (cartsvc.LineItem, error) {
	if r.Price.IsNegative() {
		return cartsvc.LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"price": "must be at least 0"})
	}
	return cartsvc.LineItem{
		ID:           strings.TrimSpace(r.ID),
		Name:         strings.TrimSpace(r.Name),
		Price:        r.Price,
		Image:        r.Image,
		RestaurantID: r.RestaurantID,
		Restaurant:   r.Restaurant,
	}, nil
}

// updateQuantityRequest carries the new quantity. Zero or less removes the item.
type updateQuantityRequest struct {
	Quantity *int              `json:"quantity" validate:"required"`
	Source   *cartsvc.Position `json:"source"`
	Item     *cartsvc.LineItem `json:"item"`
}

type removeItemRequest struct {
	Source *cartsvc.Position `json:"source"`
	Item   *cartsvc.LineItem `json:"item"`
}
