package userlocation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quickbite/quickbite-backend/internal/repo"
	"github.com/quickbite/quickbite-backend/pkg/db/models"
)

// Repository persists one location row per user.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Get returns the user's saved location or a CodeNotFound error.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.UserLocation, error) {
	var row models.UserLocation
	if err := r.First(ctx, &row, "user location", "user_id = ?", userID); err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert inserts or replaces the row keyed by user id.
func (r *Repository) Upsert(ctx context.Context, row *models.UserLocation) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"latitude", "longitude", "city", "state", "country", "area",
			"street", "postcode", "formatted_address", "source", "updated_at",
		}),
	}).Create(row).Error
}
