package addressbook

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/pkg/db/models"
	"github.com/quickbite/quickbite-backend/pkg/enums"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/geo"
)

type repository interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.SavedAddress, error)
	Create(ctx context.Context, row *models.SavedAddress) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type Service struct {
	repo     repository
	validate *validator.Validate
	newID    func() uuid.UUID
}

func NewService(repo repository) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; tag != "" {
			return tag
		}
		return f.Name
	})
	return &Service{repo: repo, validate: v, newID: uuid.New}
}

// List returns the user's entries. With from set, each entry carries its
// distance and the list is ordered nearest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, from *geo.Point) ([]Entry, error) {
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toEntry(row))
	}
	if from == nil {
		return entries, nil
	}
	if !from.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coordinates")
	}
	for i := range entries {
		d := geo.Haversine(*from, geo.Point{Lat: entries[i].Latitude, Lng: entries[i].Longitude})
		entries[i].DistanceMeters = &d
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return *entries[i].DistanceMeters < *entries[j].DistanceMeters
	})
	return entries, nil
}

// Nearest returns the entry closest to p.
func (s *Service) Nearest(ctx context.Context, userID uuid.UUID, p geo.Point) (Entry, error) {
	entries, err := s.List(ctx, userID, &p)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, pkgerrors.New(pkgerrors.CodeNotFound, "no saved addresses")
	}
	return entries[0], nil
}

// Select picks an entry by label (case-insensitive). With several matches the
// default entry wins, then the oldest.
func (s *Service) Select(ctx context.Context, userID uuid.UUID, label string) (Entry, error) {
	entries, err := s.List(ctx, userID, nil)
	if err != nil {
		return Entry{}, err
	}
	if canonical, err := enums.ParseAddressLabel(label); err == nil {
		label = canonical.String()
	}
	var found *Entry
	for i := range entries {
		if !strings.EqualFold(entries[i].Label, strings.TrimSpace(label)) {
			continue
		}
		if found == nil || (entries[i].IsDefault && !found.IsDefault) {
			found = &entries[i]
		}
	}
	if found == nil {
		return Entry{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no %s address saved", label))
	}
	return *found, nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (Entry, error) {
	in.Label = strings.TrimSpace(in.Label)
	if label, err := enums.ParseAddressLabel(in.Label); err == nil {
		in.Label = label.String()
	}
	in.Street = strings.TrimSpace(in.Street)
	in.City = strings.TrimSpace(in.City)
	if err := s.validate.Struct(in); err != nil {
		return Entry{}, validationError(err)
	}
	existing, err := s.repo.List(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	row := &models.SavedAddress{
		ID:        s.newID(),
		UserID:    userID,
		Label:     in.Label,
		Street:    in.Street,
		City:      in.City,
		State:     strings.TrimSpace(in.State),
		ZipCode:   strings.TrimSpace(in.ZipCode),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		IsDefault: in.IsDefault || len(existing) == 0,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save address")
	}
	return toEntry(*row), nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "is required"
		case "oneof":
			details[fe.Field()] = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
		default:
			details[fe.Field()] = "is invalid"
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
