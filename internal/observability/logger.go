package observability

import (
	"log/slog"
	"strings"

	"github.com/couchcryptid/quake-hazard-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and tags
// every record with the service name. It also becomes the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(strings.TrimSpace(cfg.LogLevel), cfg.LogFormat).With("service", "quake-hazard-etl")
}
