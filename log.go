package coinstr

import (
	"github.com/3yekn/coinstr/build"
	"github.com/3yekn/coinstr/descriptor"
	"github.com/3yekn/coinstr/notifier"
	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/proposal"
	"github.com/3yekn/coinstr/relay"
	"github.com/3yekn/coinstr/remotesigner"
	"github.com/3yekn/coinstr/signer"
	"github.com/3yekn/coinstr/vaultdb"
	"github.com/3yekn/coinstr/walletmgr"
	"github.com/decred/slog"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

// Loggers can not be used before the log rotator has been initialized with a
// log file. This must be performed early during application startup by
// calling InitLogRotator() on the main log writer instance in the config.
var (
	// pkgLoggers is a list of all package level loggers that are
	// registered. They are tracked here so they can be replaced once the
	// SetupLoggers function is called with the final root logger.
	pkgLoggers []*replaceableLogger

	// addPkgLogger is a helper function that creates a new replaceable
	// package level logger and adds it to the list of loggers that are
	// replaced again later, once the final root logger is ready.
	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    build.NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		pkgLoggers = append(pkgLoggers, l)
		return l
	}

	// Loggers that need to be accessible from the root package can be
	// placed here. Loggers only used in sub packages are added directly
	// via AddSubLogger. We declare all loggers so we never run into a nil
	// reference if they are used early. SetupLoggers should always be
	// called as soon as possible to finish wiring them to a root logger.
	bldrLog = addPkgLogger("BULD")
	schdLog = addPkgLogger("SCHD")
	mgrLog  = addPkgLogger("MNGR")
)

// SetupLoggers initializes all package-global logger variables and wires the
// subsystem loggers of every dependency package to the given root rotating
// log writer.
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	AddSubLogger(root, "DESC", descriptor.UseLogger)
	AddSubLogger(root, "POLY", policy.UseLogger)
	AddSubLogger(root, "SGNR", signer.UseLogger)
	AddSubLogger(root, "PROP", proposal.UseLogger)
	AddSubLogger(root, "VLST", vaultdb.UseLogger)
	AddSubLogger(root, "WLLT", walletmgr.UseLogger)
	AddSubLogger(root, "RELY", relay.UseLogger)
	AddSubLogger(root, "RSGR", remotesigner.UseLogger)
	AddSubLogger(root, "NTFY", notifier.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLoggers ...func(slog.Logger)) {

	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger slog.Logger, useLoggers ...func(slog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so they aren't performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
