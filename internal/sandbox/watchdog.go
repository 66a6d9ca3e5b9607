package sandbox

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// watchdogSlack is added on top of the configured time limit before the
// watchdog fires, absorbing scheduling jitter so a marginal overshoot
// isn't misreported as a clean finish.
const watchdogSlack = 200 * time.Millisecond

// startWatchdog launches the independent timer described in spec §4.D.
// It is a detached goroutine, not joined by the caller: the outer
// process's waitpid on the supervisor must never block on it. If the
// process has already exited and been reaped (and, worse, its PID
// reused) by the time the timer fires, the kill simply targets
// whatever now holds that PID — the same race the reference
// implementation accepts, since neither makes the timer cancellable.
func startWatchdog(log *logrus.Entry, pid int, timeLimit float64, tle *atomic.Bool) {
	dur := time.Duration(timeLimit*float64(time.Second)) + watchdogSlack

	go func() {
		time.Sleep(dur)

		if err := unix.Kill(pid, unix.SIGKILL); err == nil {
			log.WithField("pid", pid).Warn("watchdog killed process past time limit")
			tle.Store(true)
		}
	}()
}
