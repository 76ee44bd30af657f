package addressbook

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickbite/quickbite-backend/internal/repo"
	"github.com/quickbite/quickbite-backend/pkg/db/models"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

// Repository persists saved addresses.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// List returns the user's entries, oldest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.SavedAddress, error) {
	var rows []models.SavedAddress
	if err := r.DB(ctx).Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list saved addresses")
	}
	return rows, nil
}

// Create inserts row; when row is the default every other entry of the user loses the flag.
func (r *Repository) Create(ctx context.Context, row *models.SavedAddress) error {
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if row.IsDefault {
			if err := tx.Model(&models.SavedAddress{}).
				Where("user_id = ? AND is_default = ?", row.UserID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(row).Error
	})
}

// Delete removes the entry owned by userID.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.DB(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&models.SavedAddress{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "delete saved address")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "saved address not found")
	}
	return nil
}
