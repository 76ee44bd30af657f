package instance

import "github.com/quickbite/quickbite-backend/pkg/env"

// GetID identifies this API process in logs: the dyno name on Heroku, the
// pod hostname elsewhere.
func GetID() string {
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	return env.Get("HOSTNAME", "local")
}
