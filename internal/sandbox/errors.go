package sandbox

import "fmt"

// Kind tags a SetupError with the failure category named in spec §7,
// so the CLI can log a stable machine-grepable label without string
// matching on the error message.
type Kind string

const (
	// KindTempDirExhausted is returned when a sandbox temp directory
	// cannot be allocated: 10 random names all collided with an existing
	// entry, or generating a name, creating the directory or making it
	// world-writable failed.
	KindTempDirExhausted Kind = "tempdir-exhausted"

	// KindMountFailed covers any failure while building the sandbox
	// root tree (binds, overlay, procfs), and is also used by the inner
	// process for a failed RLIMIT_STACK raise or start-barrier write.
	KindMountFailed Kind = "mount-failed"

	// KindCgroupCreateFailed covers cgroup create/configure/attach
	// failures.
	KindCgroupCreateFailed Kind = "cgroup-create-failed"

	// KindChrootFailed covers chdir/chroot failures.
	KindChrootFailed Kind = "chroot-failed"

	// KindPrivDropFailed covers user lookup, setgid or setuid
	// failures.
	KindPrivDropFailed Kind = "privdrop-failed"

	// KindUnshareOrSetupFailed is returned when the outer process cannot
	// launch the supervisor (pipes, own executable path, process start),
	// when the status pipe closed with no data, meaning the supervisor
	// died before it could even report the inner PID, or when the start
	// barrier byte never arrived.
	KindUnshareOrSetupFailed Kind = "unshare-or-setup-failed"

	// KindWaitpidUnexpected is returned when reaping the supervisor
	// produced anything other than a clean wait, or when the inner
	// status could not be read off the status pipe afterwards.
	KindWaitpidUnexpected Kind = "waitpid-unexpected"
)

// SetupError is a fatal error from sandbox setup, as opposed to a
// nonzero exit or signal death of the user program, which is reported
// in-band via ExecResult instead of as an error.
type SetupError struct {
	Kind Kind
	Err  error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func setupErr(kind Kind, err error) error {
	return &SetupError{Kind: kind, Err: err}
}
