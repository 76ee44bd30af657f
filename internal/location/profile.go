package location

import "context"

// ProfileStore is the remote "my location" record for the signed-in user.
type ProfileStore interface {
	GetMyLocation(ctx context.Context) (Record, error)
	UpdateMyLocation(ctx context.Context, rec Record) error
}
