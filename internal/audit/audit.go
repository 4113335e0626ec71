package audit

import (
	"os"
	"sync/atomic"

	"complaintmail/internal/logging"
)

var enabled atomic.Bool

func init() {
	RefreshFromEnv()
}

// Set toggles audit logging.
func Set(on bool) {
	enabled.Store(on)
}

// Enabled reports whether audit logging is active.
func Enabled() bool {
	return enabled.Load()
}

// RefreshFromEnv re-reads MAIL_DEBUG.
func RefreshFromEnv() {
	Set(os.Getenv("MAIL_DEBUG") == "1")
}

// Log writes an audit line when MAIL_DEBUG=1 is set. Lines are emitted at info
// level so they survive the default LOG_LEVEL.
func Log(format string, args ...any) {
	if !Enabled() {
		return
	}
	logging.Get().Info().Str("component", "audit").Msgf(format, args...)
}
