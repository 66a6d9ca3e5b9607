//go:build linux

package sandbox

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/library-checker-project/judge-executor/internal/cgroup"
	"github.com/library-checker-project/judge-executor/internal/judgelog"
)

// Execute runs cfg.UserArgv inside a fresh sandbox and returns the
// measured result. This is the Result Assembler (spec §4.E) driving
// the rest of the pipeline: it allocates the temp root, launches the
// supervisor, starts the watchdog once the start barrier is crossed,
// reaps the supervisor, tears down the sandbox, and reads back peak
// memory.
func Execute(cfg Config) (ExecResult, error) {
	if err := cfg.Validate(); err != nil {
		return ExecResult{}, err
	}

	log, execID := judgelog.ForExecution()
	log = log.WithField("proc", "outer")

	tempDir, err := allocateTempDir()
	if err != nil {
		return ExecResult{}, err
	}

	log.WithField("tempdir", tempDir).Info("sandbox temp dir allocated")

	// Guards tempDir until the supervisor is actually launched; every
	// path past that point already removes it explicitly (see the
	// os.RemoveAll calls below).
	cleanupTempDir := true
	defer func() {
		if cleanupTempDir {
			_ = os.RemoveAll(tempDir)
		}
	}()

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return ExecResult{}, setupErr(KindUnshareOrSetupFailed, err)
	}

	startR, startW, err := os.Pipe()
	if err != nil {
		return ExecResult{}, setupErr(KindUnshareOrSetupFailed, err)
	}

	self, err := os.Executable()
	if err != nil {
		return ExecResult{}, setupErr(KindUnshareOrSetupFailed, err)
	}

	cleanupTempDir = false

	args := []string{
		supervisorMode,
		execID,
		tempDir,
		cfg.Workdir,
		strconv.FormatBool(cfg.Overlay),
		"--",
	}
	args = append(args, cfg.UserArgv...)

	supervisor := exec.Command(self, args...)
	supervisor.Stdin = os.Stdin
	supervisor.Stdout = os.Stdout
	supervisor.Stderr = os.Stderr
	supervisor.ExtraFiles = []*os.File{statusW, startW}

	if err := supervisor.Start(); err != nil {
		_ = os.RemoveAll(tempDir)
		return ExecResult{}, setupErr(KindUnshareOrSetupFailed, fmt.Errorf("start supervisor: %w", err))
	}

	_ = statusW.Close()
	_ = startW.Close()

	innerPID, err := readInnerPID(statusR)
	if err != nil {
		_ = supervisor.Wait()
		_ = os.RemoveAll(tempDir)
		return ExecResult{}, err
	}

	log.WithField("inner_pid", innerPID).Info("inner process reported")

	// Start barrier: block until the inner process is about to exec
	// the user's command, then start the clock. Per spec §5 this is
	// the earliest the clock may start.
	if _, err := startR.Read(make([]byte, 1)); err != nil {
		_ = supervisor.Wait()
		_ = os.RemoveAll(tempDir)
		return ExecResult{}, setupErr(KindUnshareOrSetupFailed, fmt.Errorf("read start barrier: %w", err))
	}

	t0 := time.Now()

	var tle atomic.Bool
	startWatchdog(log, innerPID, cfg.TimeLimit, &tle)

	waitErr := supervisor.Wait()
	elapsed := time.Since(t0)

	if waitErr != nil || supervisor.ProcessState.ExitCode() != 0 {
		_ = os.RemoveAll(tempDir)
		return ExecResult{}, setupErr(KindWaitpidUnexpected, fmt.Errorf("supervisor failed: %w", waitErr))
	}

	if err := os.RemoveAll(tempDir); err != nil {
		log.WithError(err).Warn("failed to remove sandbox temp dir")
	}

	status, signaled, err := readInnerStatus(statusR)
	if err != nil {
		return ExecResult{}, err
	}

	mem := cgroup.New().PeakMemory()
	if mem < 0 {
		log.Warn("peak memory unreadable, reporting -1")
	}

	elapsedSeconds := elapsed.Seconds()
	timedOut := elapsedSeconds > cfg.TimeLimit

	result := ExecResult{
		Status:   status,
		Time:     min(elapsedSeconds, cfg.TimeLimit),
		Memory:   mem,
		TLE:      tle.Load() || timedOut,
		Signaled: signaled,
	}

	log.WithField("result", result).Info("execution complete")

	if cfg.ResultPath != "" {
		if err := WriteFile(cfg.ResultPath, result); err != nil {
			return result, fmt.Errorf("write result file: %w", err)
		}
	}

	return result, nil
}

func readInnerPID(r *os.File) (int, error) {
	buf := make([]byte, 4)

	n, err := io.ReadFull(r, buf)
	if n == 0 {
		return 0, setupErr(KindUnshareOrSetupFailed, fmt.Errorf("empty status pipe read: sandbox setup failed"))
	}

	if err != nil {
		return 0, setupErr(KindUnshareOrSetupFailed, err)
	}

	return int(binary.LittleEndian.Uint32(buf)), nil
}

func readInnerStatus(r *os.File) (status int, signaled bool, err error) {
	buf := make([]byte, 5)

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, false, setupErr(KindWaitpidUnexpected, err)
	}

	raw := int32(binary.LittleEndian.Uint32(buf[0:4]))
	return int(raw), buf[4] == 1, nil
}
