//go:build linux

package sandbox

import (
	"encoding/binary"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/library-checker-project/judge-executor/internal/judgelog"
)

// supervisorMode and innerMode are the hidden re-exec subcommands the
// executor binary dispatches to itself, named the way the teacher
// names its own privileged re-exec helpers (hidden cobra subcommands
// such as "forkproxy").
const (
	supervisorMode = "__supervisor"
	innerMode      = "__inner"
)

// RunSupervisor is the entry point for the first re-exec level (spec
// §4.C's "supervisor"). argv is os.Args as received by this process.
//
// It unshares PID/mount/net namespaces, forks the inner process (a
// second re-exec of the same binary), relays the inner PID and its
// final status back to the outer process over fd 3, and exits 0 on
// success. It must stay in the original PID namespace itself — only
// its child joins the new one — so that the PID it reports upstream is
// one the outer process can actually kill.
func RunSupervisor(argv []string) int {
	statusPipe := os.NewFile(3, "status-pipe")
	startPipe := os.NewFile(4, "start-pipe")

	execID := argv[2]
	log := judgelog.ForID(execID).WithField("proc", "supervisor")

	tempDir := argv[3]
	workdir := argv[4]
	overlay := argv[5] == "true"

	dashIdx := indexOf(argv, "--")
	if dashIdx < 0 {
		log.Error("supervisor invoked without -- separator")
		return 1
	}

	userArgv := argv[dashIdx+1:]

	runtime.LockOSThread()

	if err := unix.Unshare(unix.CLONE_NEWPID | unix.CLONE_NEWNS | unix.CLONE_NEWNET); err != nil {
		log.WithError(err).Error("unshare failed")
		return 1
	}

	self, err := os.Executable()
	if err != nil {
		log.WithError(err).Error("resolve self path failed")
		return 1
	}

	innerArgs := []string{innerMode, execID, tempDir, workdir, strconv.FormatBool(overlay), "--"}
	innerArgs = append(innerArgs, userArgv...)

	cmd := exec.Command(self, innerArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{startPipe}

	if err := cmd.Start(); err != nil {
		log.WithError(err).Error("failed to start inner process")
		return 1
	}

	_ = startPipe.Close()

	pidBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(pidBuf, uint32(cmd.Process.Pid))
	if _, err := statusPipe.Write(pidBuf); err != nil {
		log.WithError(err).Error("failed to report inner pid")
		return 1
	}

	log.WithField("inner_pid", cmd.Process.Pid).Info("inner process started")

	waitErr := cmd.Wait()

	status, signaled, ok := decodeWaitStatus(cmd, waitErr)
	if !ok {
		log.WithError(waitErr).Error("unexpected wait outcome for inner process")
		return 1
	}

	// The wire format is 4 bytes of status followed by an explicit
	// signaled flag, resolving spec §9's open question about the
	// reference code conflating exit codes and signal numbers in one
	// untagged field.
	statusBuf := make([]byte, 5)
	binary.LittleEndian.PutUint32(statusBuf[0:4], uint32(int32(status)))
	if signaled {
		statusBuf[4] = 1
	}

	if _, err := statusPipe.Write(statusBuf); err != nil {
		log.WithError(err).Error("failed to report inner status")
		return 1
	}

	_ = statusPipe.Close()

	return 0
}

// decodeWaitStatus turns the result of cmd.Wait() into the wire value
// spec §9 asks us to disambiguate: a plain exit code for a normal
// exit, or 128+signo for death by signal. ok is false for any outcome
// besides those two, which the supervisor treats as fatal
// (waitpid-unexpected).
func decodeWaitStatus(cmd *exec.Cmd, waitErr error) (status int, signaled bool, ok bool) {
	state := cmd.ProcessState
	if state == nil {
		return 0, false, false
	}

	ws, isWS := state.Sys().(syscall.WaitStatus)
	if !isWS {
		return 0, false, false
	}

	switch {
	case ws.Exited():
		return ws.ExitStatus(), false, true
	case ws.Signaled():
		return 128 + int(ws.Signal()), true, true
	default:
		return 0, false, false
	}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}

	return -1
}
