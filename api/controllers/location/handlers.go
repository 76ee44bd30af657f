package location

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/quickbite/quickbite-backend/api/middleware"
	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	locsvc "github.com/quickbite/quickbite-backend/internal/location"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/geo"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

// Sessions resolves the location session of a caller.
type Sessions interface {
	Get(sessionID, userID string) (*locsvc.Session, error)
}

type positionErrorResponse struct {
	Kind    locsvc.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

type stateResponse struct {
	Location locsvc.Record          `json:"location"`
	Address  string                 `json:"address"`
	State    locsvc.State           `json:"state"`
	Tracking bool                   `json:"tracking"`
	Error    *positionErrorResponse `json:"error,omitempty"`
}

func newStateResponse(sess *locsvc.Session, rec locsvc.Record, err error) stateResponse {
	resp := stateResponse{
		Location: rec,
		Address:  rec.DisplayAddress(),
		State:    sess.Service.State(),
		Tracking: sess.Service.ActiveTrackers() > 0,
	}
	if err != nil {
		posErr := locsvc.Classify(err)
		resp.Error = &positionErrorResponse{Kind: posErr.Kind(), Message: posErr.UserMessage()}
	}
	return resp
}

func callerSession(r *http.Request, sessions Sessions) (*locsvc.Session, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "location service unavailable")
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	return sessions.Get(sessionID, middleware.UserIDFromContext(r.Context()))
}

// LocationCurrent reports the current record without acquiring a new one.
func LocationCurrent(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := callerSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStateResponse(sess, sess.Service.Current(), sess.Service.LastError()))
	}
}

// LocationResolve runs an acquisition cycle. The device fix it waits for is
// delivered by a concurrent or earlier POST /positions from the same session.
// Device failures still answer 200 with the fallback record and the
// classified error.
func LocationResolve(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return acquire(sessions, logg, func(ctx context.Context, svc *locsvc.Service) (locsvc.Record, error) {
		return svc.Start(ctx)
	})
}

// LocationRefresh forces a fresh reading that bypasses the cache.
func LocationRefresh(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return acquire(sessions, logg, func(ctx context.Context, svc *locsvc.Service) (locsvc.Record, error) {
		return svc.RequestLocation(ctx)
	})
}

func acquire(sessions Sessions, logg *logger.Logger, run func(context.Context, *locsvc.Service) (locsvc.Record, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := callerSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := run(r.Context(), sess.Service)
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			return
		}
		responses.WriteSuccess(w, newStateResponse(sess, rec, err))
	}
}

type pushPositionRequest struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  float64    `json:"accuracy" validate:"gte=0"`
	Timestamp *time.Time `json:"timestamp"`
	Error     *pushError `json:"error"`
}

func (p pushPositionRequest) point() (geo.Point, error) {
	if p.Latitude == nil || p.Longitude == nil {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeValidation, "Latitude and longitude are required").
			WithDetails(map[string]any{"fields": []string{"latitude", "longitude"}})
	}
	point := geo.Point{Lat: *p.Latitude, Lng: *p.Longitude}
	if !point.Valid() {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeValidation, "Invalid coordinates")
	}
	return point, nil
}

type pushError struct {
	Code    int    `json:"code" validate:"oneof=0 1 2 3"`
	Message string `json:"message" validate:"max=512"`
}

// LocationPushPosition feeds a client fix or a client geolocation error into
// the session's geolocator.
func LocationPushPosition(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := callerSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pushPositionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if payload.Error != nil {
			sess.Geolocator.PushError(payload.Error.Code, validators.SanitizeString(payload.Error.Message, 512))
			responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "error_recorded"})
			return
		}

		point, err := payload.point()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pos := locsvc.Position{
			Latitude:  point.Lat,
			Longitude: point.Lng,
			Accuracy:  payload.Accuracy,
		}
		if payload.Timestamp != nil {
			pos.Timestamp = *payload.Timestamp
		}
		sess.Geolocator.Push(pos)
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// LocationStartTracking starts watching the pushed fixes. It is idempotent per session.
func LocationStartTracking(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := callerSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		started, err := sess.StartTracking(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tracking unavailable"))
			return
		}
		status := http.StatusOK
		if started {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, map[string]bool{"tracking": true})
	}
}

func LocationStopTracking(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := callerSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess.StopTracking()
		responses.WriteNoContent(w)
	}
}

type distanceResponse struct {
	From           geo.Point `json:"from"`
	To             geo.Point `json:"to"`
	DistanceMeters float64   `json:"distance_meters"`
}

// LocationDistance measures from the current record to lat/lng.
func LocationDistance(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := callerSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseCoordinates(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, ok := sess.Service.Current().Point()
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Current location is not available"))
			return
		}
		responses.WriteSuccess(w, distanceResponse{From: from, To: to, DistanceMeters: geo.Haversine(from, to)})
	}
}
