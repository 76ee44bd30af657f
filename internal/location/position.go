package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Position is one device fix.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionOptions mirror the device geolocation options.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge bounds the age of a cached fix; zero demands a fresh reading.
	MaximumAge time.Duration
}

// Geolocator is the device geolocation capability.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
	// Watch streams fixes until the returned stop func is called or ctx ends.
	Watch(ctx context.Context, opts PositionOptions) (<-chan Position, func(), error)
}

// Geolocation error codes as reported by devices.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindPositionUnavailable ErrorKind = "position_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindUnknown             ErrorKind = "unknown"
)

// PositionError is a classified geolocation failure.
type PositionError struct {
	Code    int
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geolocation failed: %s", e.Kind())
	}
	return fmt.Sprintf("geolocation failed: %s: %s", e.Kind(), e.Message)
}

func (e *PositionError) Kind() ErrorKind {
	switch e.Code {
	case CodePermissionDenied:
		return KindPermissionDenied
	case CodePositionUnavailable:
		return KindPositionUnavailable
	case CodeTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

// UserMessage is the text shown to the user for the failure.
func (e *PositionError) UserMessage() string {
	switch e.Kind() {
	case KindPermissionDenied:
		return "Location permission denied"
	case KindPositionUnavailable:
		return "Location information is unavailable"
	case KindTimeout:
		return "Location request timed out"
	default:
		return "Unable to determine your location"
	}
}

// Classify maps any acquisition failure onto a PositionError.
func Classify(err error) *PositionError {
	if err == nil {
		return nil
	}
	var posErr *PositionError
	if errors.As(err, &posErr) {
		return posErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PositionError{Code: CodeTimeout, Message: err.Error()}
	}
	return &PositionError{Message: err.Error()}
}
