// Package judgelog sets up the executor's structured logger.
//
// It mirrors the teacher's lxd-export/core/logger package (a logrus
// wrapper writing text-formatted entries) but targets stderr rather than
// a log file, and colorizes output when stderr is a terminal.
package judgelog

import (
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var base = newBase()

func newBase() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger.SetOutput(colorable.NewColorableStderr())
	} else {
		logger.SetOutput(os.Stderr)
	}

	return logger
}

// SetLevel adjusts the minimum level emitted, for --debug style flags.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// ForExecution returns a logger entry tagged with a fresh execution id
// and the id itself, so that log lines produced by the outer process,
// the supervisor and the inner process (each a separate re-exec'd
// process for one invocation) can be correlated in a shared stream once
// the id is threaded through to them.
func ForExecution() (*logrus.Entry, string) {
	id := uuid.NewString()
	return ForID(id), id
}

// ForID returns a logger entry tagged with a previously generated
// execution id, for use in re-exec'd processes that received the id
// from their parent.
func ForID(id string) *logrus.Entry {
	return base.WithField("exec_id", id)
}
