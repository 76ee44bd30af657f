package userlocation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quickbite/quickbite-backend/internal/location"
	"github.com/quickbite/quickbite-backend/pkg/db/models"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := "file:userlocation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserLocation{}))
	return NewService(NewRepository(db))
}

func indore() location.Record {
	rec := location.NewRecord(22.71, 75.86)
	rec.City = "Indore"
	rec.State = "Madhya Pradesh"
	rec.Source = location.SourceDirect
	return rec
}

func TestUpdateThenGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Get(ctx, userID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	saved, err := svc.Update(ctx, userID, indore())
	require.NoError(t, err)
	assert.Equal(t, "Indore, Madhya Pradesh", saved.FormattedAddress)

	got, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	require.True(t, got.Resolved())
	assert.Equal(t, 22.71, *got.Latitude)
	assert.Equal(t, "Indore", got.City)
	assert.Equal(t, location.SourceDirect, got.Source)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestUpdateUpsertsByUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Update(ctx, userID, indore())
	require.NoError(t, err)

	bhopal := location.NewRecord(23.25, 77.41)
	bhopal.City = "Bhopal"
	_, err = svc.Update(ctx, userID, bhopal)
	require.NoError(t, err)

	got, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Bhopal", got.City)
	assert.Equal(t, location.SourceProfile, got.Source)

	var count int64
	repo := svc.repo.(*Repository)
	require.NoError(t, repo.DB(ctx).Model(&models.UserLocation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateValidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, uuid.New(), location.PlaceholderRecord())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), location.NewRecord(95, 10))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.Nil, indore())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestForUserAdaptsProfileStore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	assert.Nil(t, svc.ForUser("not-a-uuid"))
	assert.Nil(t, svc.ForUser(uuid.Nil.String()))

	store := svc.ForUser(userID.String())
	require.NotNil(t, store)
	require.NoError(t, store.UpdateMyLocation(ctx, indore()))

	rec, err := store.GetMyLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Indore", rec.City)
}

type failingRepo struct{}

func (failingRepo) Get(context.Context, uuid.UUID) (*models.UserLocation, error) {
	return nil, errors.New("db down")
}

func (failingRepo) Upsert(context.Context, *models.UserLocation) error {
	return errors.New("db down")
}

func TestUpdateWrapsRepositoryErrors(t *testing.T) {
	svc := NewService(failingRepo{})
	_, err := svc.Update(context.Background(), uuid.New(), indore())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal))
}
