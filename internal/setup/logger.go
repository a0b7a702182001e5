package setup

import (
	"log/slog"

	"github.com/cochaviz/prbuild/internal/logging"
)

var hostLogger *slog.Logger

// SetLogger configures the logger used while checking the host. A nil
// logger restores the default.
func SetLogger(logger *slog.Logger) {
	hostLogger = logger
}

func getLogger() *slog.Logger {
	return logging.Ensure(hostLogger)
}
