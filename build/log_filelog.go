// +build filelog

package build

import "os"

// logf is the plain (non-rotating) file the filelog build tag writes to,
// an alternative to RotatingLogWriter for environments that don't want the
// rotator's roll-file bookkeeping (e.g. short-lived CLI invocations of
// cmd/coinstr-cli).
var logf *os.File

// LoggingType reports stdout as the logging destination under the filelog
// build tag: the file write below happens unconditionally alongside it, not
// through the LogType/RotatingLogWriter path.
const LoggingType = LogTypeStdOut

// Write fans b out to the package-level coinstr.log file opened in init.
func (w *LogWriter) Write(b []byte) (int, error) {
	return logf.Write(b)
}

func init() {
	var err error
	logf, err = os.Create("coinstr.log")
	if err != nil {
		panic(err)
	}
}
