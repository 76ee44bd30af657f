package validators

import (
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid auth token")

const bearerScheme = "bearer"

// BearerToken extracts the token from an Authorization header value. A bare
// token is accepted; any scheme other than Bearer is rejected.
func BearerToken(raw string) (string, error) {
	parts := strings.Fields(raw)
	switch len(parts) {
	case 1:
		if strings.EqualFold(parts[0], bearerScheme) {
			return "", ErrInvalidToken
		}
		return parts[0], nil
	case 2:
		if !strings.EqualFold(parts[0], bearerScheme) {
			return "", ErrInvalidToken
		}
		return parts[1], nil
	default:
		return "", ErrInvalidToken
	}
}
