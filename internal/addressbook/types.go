package addressbook

import (
	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/pkg/db/models"
)

// Entry is an address book entry as returned to clients.
type Entry struct {
	ID             uuid.UUID `json:"id"`
	Label          string    `json:"label"`
	Street         string    `json:"street"`
	City           string    `json:"city"`
	State          string    `json:"state,omitempty"`
	ZipCode        string    `json:"zipCode,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	IsDefault      bool      `json:"isDefault"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
}

// CreateInput is a new entry as submitted by the user.
type CreateInput struct {
	Label     string  `json:"label" validate:"required,oneof=Home Office Other"`
	Street    string  `json:"street" validate:"required,max=256"`
	City      string  `json:"city" validate:"required,max=128"`
	State     string  `json:"state" validate:"max=128"`
	ZipCode   string  `json:"zipCode" validate:"max=16"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	IsDefault bool    `json:"isDefault"`
}

func toEntry(row models.SavedAddress) Entry {
	return Entry{
		ID:        row.ID,
		Label:     row.Label,
		Street:    row.Street,
		City:      row.City,
		State:     row.State,
		ZipCode:   row.ZipCode,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		IsDefault: row.IsDefault,
	}
}
