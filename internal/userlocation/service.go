package userlocation

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/internal/location"
	"github.com/quickbite/quickbite-backend/pkg/db/models"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

type repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserLocation, error)
	Upsert(ctx context.Context, row *models.UserLocation) error
}

// Service reads and writes the "my location" record of signed-in users.
type Service struct {
	repo repository
}

func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (location.Record, error) {
	row, err := s.repo.Get(ctx, userID)
	if err != nil {
		return location.Record{}, err
	}
	return toRecord(row), nil
}

func (s *Service) Update(ctx context.Context, userID uuid.UUID, rec location.Record) (location.Record, error) {
	if userID == uuid.Nil {
		return location.Record{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	p, ok := rec.Point()
	if !ok || !p.Valid() {
		return location.Record{}, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude are required").
			WithDetails(map[string]string{"latitude": "required", "longitude": "required"})
	}
	row := fromRecord(userID, rec)
	if err := s.repo.Upsert(ctx, row); err != nil {
		return location.Record{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save user location")
	}
	return toRecord(row), nil
}

// ForUser adapts the service to location.ProfileStore for userID. It returns
// nil when userID is not a valid user id.
func (s *Service) ForUser(userID string) location.ProfileStore {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil || id == uuid.Nil {
		return nil
	}
	return profile{svc: s, userID: id}
}

type profile struct {
	svc    *Service
	userID uuid.UUID
}

func (p profile) GetMyLocation(ctx context.Context) (location.Record, error) {
	return p.svc.Get(ctx, p.userID)
}

func (p profile) UpdateMyLocation(ctx context.Context, rec location.Record) error {
	_, err := p.svc.Update(ctx, p.userID, rec)
	return err
}

func toRecord(row *models.UserLocation) location.Record {
	rec := location.NewRecord(row.Latitude, row.Longitude)
	rec.City = row.City
	rec.State = row.State
	rec.Country = row.Country
	rec.Area = row.Area
	rec.Street = row.Street
	rec.Postcode = row.Postcode
	rec.FormattedAddress = row.FormattedAddress
	rec.Address = rec.DisplayAddress()
	rec.Source = row.Source
	rec.UpdatedAt = row.UpdatedAt
	return rec
}

func fromRecord(userID uuid.UUID, rec location.Record) *models.UserLocation {
	source := rec.Source
	if source == "" {
		source = location.SourceProfile
	}
	formatted := rec.FormattedAddress
	if formatted == "" {
		formatted = rec.DisplayAddress()
	}
	return &models.UserLocation{
		UserID:           userID,
		Latitude:         *rec.Latitude,
		Longitude:        *rec.Longitude,
		City:             strings.TrimSpace(rec.City),
		State:            strings.TrimSpace(rec.State),
		Country:          strings.TrimSpace(rec.Country),
		Area:             strings.TrimSpace(rec.Area),
		Street:           strings.TrimSpace(rec.Street),
		Postcode:         strings.TrimSpace(rec.Postcode),
		FormattedAddress: formatted,
		Source:           source,
	}
}
