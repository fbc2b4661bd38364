package instance

import (
	"os"

	"github.com/angelmondragon/collectibles-backend/pkg/env"
)

// GetID returns the process instance identifier used in boot logs. Dyno
// names win, then WORKER_ID, then the hostname.
func GetID() string {
	if id := env.First("", "DYNO", "WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
