// Package testutil holds helpers shared by tests.
package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// LogLevelEnvName overrides the log level of test binaries importing this
// package.
const LogLevelEnvName = "SOLTRUST_TEST_LOG_LEVEL"

// Logs are discarded unless tests run verbosely, in which case everything
// down to the requested level, trace by default, is printed.
func init() {
	level := logrus.TraceLevel
	if parsed, err := logrus.ParseLevel(os.Getenv(LogLevelEnvName)); err == nil {
		level = parsed
	}
	logrus.SetLevel(level)

	if !isVerbose() {
		logrus.StandardLogger().Out = io.Discard
	}
}

func isVerbose() bool {
	for _, arg := range os.Args {
		if arg == "-test.v" || arg == "-test.v=true" {
			return true
		}
	}
	return false
}

// DisableLogging discards log output until the test completes.
func DisableLogging(t testing.TB) {
	original := logrus.StandardLogger().Out
	logrus.StandardLogger().Out = io.Discard
	t.Cleanup(func() {
		logrus.StandardLogger().Out = original
	})
}
