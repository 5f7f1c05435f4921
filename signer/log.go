package signer

import "github.com/decred/slog"

// log is the package-level logger, a no-op until UseLogger wires a real
// backend in via the root SetupLoggers call.
var log = slog.Disabled

// UseLogger assigns the subsystem logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
