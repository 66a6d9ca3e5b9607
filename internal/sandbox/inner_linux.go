//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/library-checker-project/judge-executor/internal/cgroup"
	"github.com/library-checker-project/judge-executor/internal/judgelog"
)

// innerConfig is everything the inner process needs, handed down to it
// as argv by the supervisor (see supervisor_linux.go).
type innerConfig struct {
	TempDir  string
	Workdir  string
	Overlay  bool
	UserArgv []string
}

// RunInner is the entry point for the second re-exec level (spec
// §4.C's "inner" process, PID 1 of the fresh PID namespace). argv is
// os.Args as received by this process, laid out identically to
// RunSupervisor's inner re-exec call.
func RunInner(argv []string) int {
	// dropPrivileges below clears the capability set of the calling OS
	// thread only (syscall.Setgid/Setuid themselves apply to every
	// thread); pin this goroutine to that thread so the runtime can't
	// reschedule it onto a thread whose capabilities were never cleared
	// before the final exec.
	runtime.LockOSThread()

	startPipe := os.NewFile(3, "start-pipe")

	execID := argv[2]
	log := judgelog.ForID(execID).WithField("proc", "inner")

	dashIdx := indexOf(argv, "--")
	if dashIdx < 0 {
		log.Error("inner invoked without -- separator")
		return 1
	}

	cfg := innerConfig{
		TempDir:  argv[3],
		Workdir:  argv[4],
		Overlay:  argv[5] == "true",
		UserArgv: argv[dashIdx+1:],
	}

	if err := runInner(log, cfg, startPipe); err != nil {
		log.WithError(err).Error("inner setup failed")
		return 1
	}

	// runInner only returns nil by way of syscall.Exec replacing this
	// process image; reaching here at all is itself a bug.
	return 1
}

// runInner performs spec §4.C's inner-process steps in order, ending
// in execve of the user command. It only returns if a step failed
// before reaching exec; on success the process image is replaced and
// this function never returns to its caller.
func runInner(log *logrus.Entry, cfg innerConfig, startPipeWrite *os.File) error {
	// Step 1: make the mount tree private, recursively, so nothing
	// mounted below leaks back to the host.
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("make mount tree private: %w", err))
	}

	// Step 2: remount /proc private, then mount a fresh, restricted
	// procfs over it.
	if err := unix.Mount("none", "/proc", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("remount /proc private: %w", err))
	}

	if err := unix.Mount("proc", "/proc", "proc", unix.MS_NOSUID|unix.MS_NOEXEC|unix.MS_NODEV, ""); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("mount fresh /proc: %w", err))
	}

	// Step 3: build the sandbox root tree.
	if err := buildRoot(cfg.TempDir, cfg.Workdir, cfg.Overlay); err != nil {
		return err
	}

	log.Info("sandbox root built")

	// Step 4: (re)create the resource group and configure its limits,
	// then attach. Must happen before the privilege drop below, since
	// both the cgroup filesystem and cgroup.procs are only writable by
	// a privileged user.
	cg := cgroup.New()
	if err := cg.Setup(cgroup.DefaultSettings()); err != nil {
		return setupErr(KindCgroupCreateFailed, err)
	}

	if err := cg.Attach(os.Getpid()); err != nil {
		return setupErr(KindCgroupCreateFailed, err)
	}

	log.Info("attached to cgroup")

	// Step 5: competitive-programming submissions commonly recurse
	// deeply; let them.
	limit := &unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
	if err := unix.Setrlimit(unix.RLIMIT_STACK, limit); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("setrlimit(RLIMIT_STACK): %w", err))
	}

	// Step 6: chdir into the sandbox, then chroot to its parent, so
	// T/root becomes the new / and the working directory is /sand.
	sandDir := filepath.Join(cfg.TempDir, "root", "sand")
	if err := unix.Chdir(sandDir); err != nil {
		return setupErr(KindChrootFailed, fmt.Errorf("chdir %s: %w", sandDir, err))
	}

	if err := unix.Chroot(".."); err != nil {
		return setupErr(KindChrootFailed, fmt.Errorf("chroot: %w", err))
	}

	// Step 7: drop privileges to the fixed unprivileged account.
	if err := dropPrivileges(); err != nil {
		return err
	}

	log.Info("privileges dropped")

	// Step 8: the user program gets its own HOME and no inherited
	// TMPDIR.
	_ = os.Unsetenv("TMPDIR")
	_ = os.Setenv("HOME", "/home/"+PrivilegeDropUser)

	log.WithField("argv", shellquote.Join(cfg.UserArgv...)).Debug("about to exec user command")

	path, err := exec.LookPath(cfg.UserArgv[0])
	if err != nil {
		// execvp semantics: if the lookup itself fails, still attempt
		// a literal exec so the kernel's own ENOENT is what surfaces,
		// matching what a shell's "command not found" would report.
		path = cfg.UserArgv[0]
	}

	// Step 9: signal the outer process that user code is about to
	// start, so it can start its clock.
	if _, err := startPipeWrite.Write([]byte{0}); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("write start barrier: %w", err))
	}

	_ = startPipeWrite.Close()

	// Step 10: replace this process with the user's command.
	err = syscall.Exec(path, cfg.UserArgv, os.Environ())
	// syscall.Exec only returns on failure.
	os.Stderr.WriteString("exec failed: " + err.Error() + "\n")
	os.Exit(1)
	return nil
}

// dropPrivileges looks up PrivilegeDropUser and becomes it, gid first,
// then clears the full capability set as defense in depth beyond the
// UID/GID change alone.
func dropPrivileges() error {
	u, err := user.Lookup(PrivilegeDropUser)
	if err != nil {
		return setupErr(KindPrivDropFailed, fmt.Errorf("lookup %s: %w", PrivilegeDropUser, err))
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return setupErr(KindPrivDropFailed, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return setupErr(KindPrivDropFailed, err)
	}

	if err := syscall.Setgid(gid); err != nil {
		return setupErr(KindPrivDropFailed, fmt.Errorf("setgid(%d): %w", gid, err))
	}

	if err := syscall.Setuid(uid); err != nil {
		return setupErr(KindPrivDropFailed, fmt.Errorf("setuid(%d): %w", uid, err))
	}

	caps, err := capability.NewPid2(0)
	if err != nil {
		// Capability clearing is hardening on top of the UID/GID drop
		// the spec actually requires, not a substitute for it; a
		// failure here is ignored: not logged and never fatal.
		return nil
	}

	if err := caps.Load(); err == nil {
		caps.Clear(capability.CAPS | capability.BOUNDS | capability.AMBS)
		_ = caps.Apply(capability.CAPS | capability.BOUNDS | capability.AMBS)
	}

	return nil
}
