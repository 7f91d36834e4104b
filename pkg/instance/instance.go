package instance

import (
	"os"

	"github.com/angelmondragon/storepos-backend/pkg/env"
)

const defaultID = "worker-0"

// GetID identifies this worker process in logs and lock owners. It prefers
// STOREPOS_WORKER_ID, then the host name.
func GetID() string {
	if id := env.Get("STOREPOS_WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
