package zarr

import "github.com/rs/zerolog"

// logger is a no-op unless the caller installs one via SetLogger.
var logger = zerolog.Nop()

// SetLogger installs a zerolog logger used for debug events emitted while
// saving and loading arrays. The default discards everything.
func SetLogger(l zerolog.Logger) {
	logger = l
}
