package location

import (
	"fmt"
	"strings"
	"time"

	"github.com/quickbite/quickbite-backend/pkg/geo"
)

const (
	PlaceholderAddress = "Select Location"

	SourceCache       = "cache"
	SourceProfile     = "profile"
	SourceBackend     = "backend"
	SourceDirect      = "direct"
	SourceCoordinates = "coordinates"
	SourcePlaceholder = "placeholder"
)

// Record is the normalized location handed to consumers.
type Record struct {
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
	Country          string    `json:"country,omitempty"`
	Area             string    `json:"area,omitempty"`
	Street           string    `json:"street,omitempty"`
	Postcode         string    `json:"postcode,omitempty"`
	FormattedAddress string    `json:"formattedAddress,omitempty"`
	Address          string    `json:"address,omitempty"`
	Source           string    `json:"source,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty"`
}

// NewRecord returns a record positioned at lat/lng with no address yet.
func NewRecord(lat, lng float64) Record {
	return Record{Latitude: &lat, Longitude: &lng}
}

// PlaceholderRecord is shown when nothing could be resolved.
func PlaceholderRecord() Record {
	return Record{
		Address:          PlaceholderAddress,
		FormattedAddress: PlaceholderAddress,
		Source:           SourcePlaceholder,
	}
}

// CoordinatesRecord uses the raw coordinates as the display address.
func CoordinatesRecord(lat, lng float64) Record {
	rec := NewRecord(lat, lng)
	display := fmt.Sprintf("%.6f, %.6f", lat, lng)
	rec.Address = display
	rec.FormattedAddress = display
	rec.Source = SourceCoordinates
	return rec
}

// Resolved reports whether both coordinates are present.
func (r Record) Resolved() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Geocoded reports whether the record carries any address component beyond coordinates.
func (r Record) Geocoded() bool {
	return r.Resolved() && r.populated() > 0
}

func (r Record) populated() int {
	n := 0
	for _, v := range []string{r.City, r.State, r.Country, r.Area, r.Street, r.Postcode} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Point returns the coordinates; ok is false for an unresolved record.
func (r Record) Point() (geo.Point, bool) {
	if !r.Resolved() {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *r.Latitude, Lng: *r.Longitude}, true
}

// DisplayAddress picks the best display string, building one from components when needed.
func (r Record) DisplayAddress() string {
	if s := strings.TrimSpace(r.FormattedAddress); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Address); s != "" {
		return s
	}
	parts := make([]string, 0, 4)
	for _, v := range []string{r.Street, r.Area, r.City, r.State} {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// at overwrites the coordinates with the device fix and fills display strings.
func (r Record) at(lat, lng float64) Record {
	r.Latitude = &lat
	r.Longitude = &lng
	display := r.DisplayAddress()
	if display == "" {
		display = fmt.Sprintf("%.6f, %.6f", lat, lng)
	}
	if r.FormattedAddress == "" {
		r.FormattedAddress = display
	}
	if r.Address == "" {
		r.Address = display
	}
	return r
}
