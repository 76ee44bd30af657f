package cart

import (
	"errors"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

var (
	ErrMissingRestaurant  = errors.New("item must carry a restaurant id or name")
	ErrRestaurantMismatch = errors.New("cart already holds items from another restaurant")
)

func missingRestaurantError() error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingRestaurant, "restaurant information missing")
}

func mismatchError(existing Restaurant, item LineItem) error {
	cartName := existing.Name
	if cartName == "" {
		cartName = existing.ID
	}
	itemName := item.Restaurant
	if itemName == "" {
		itemName = item.RestaurantID
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrRestaurantMismatch, "items from a different restaurant cannot be added to this cart").
		WithDetails(map[string]string{
			"cart_restaurant": cartName,
			"item_restaurant": itemName,
		})
}
