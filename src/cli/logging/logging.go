// Package logging contains the singleton logger that we use globally.
// It deliberately has little else since it's a dependency everywhere.
package logging

import (
	"os"

	"gopkg.in/op/go-logging.v1"
)

// Log is the singleton logger instance.
// We never alter individual levels and don't log the module name, so there
// is no need to have more than one, and it helps avoid race conditions.
var Log = logging.MustGetLogger("harbour")

// Level is a re-export of the library type.
type Level = logging.Level

// Re-exports of various log levels.
const (
	CRITICAL = logging.CRITICAL
	ERROR    = logging.ERROR
	WARNING  = logging.WARNING
	NOTICE   = logging.NOTICE
	INFO     = logging.INFO
	DEBUG    = logging.DEBUG
)

var formatter = logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s}: %{message}")

// InitLogging sets up the stderr backend at the given verbosity. Harbour has
// no interactive display to preserve (unlike the wider please CLI this is
// drawn from), so there's just the one backend.
func InitLogging(verbosity Level) {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), formatter)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(verbosity, "")
	logging.SetBackend(leveled)
}
