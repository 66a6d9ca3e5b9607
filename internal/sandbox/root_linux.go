//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/library-checker-project/judge-executor/internal/revert"
)

// roDirs are the host directories bound read-only into every sandbox,
// named exactly as spec §4.A step 7 lists them.
var roDirs = []string{"dev", "sys", "bin", "sbin", "lib", "lib64", "usr", "etc", "opt", "var", "home"}

// buildRoot builds the mount tree rooted at tempDir/root that the user
// process will chroot into. It must run inside the inner process, after
// the mount namespace has already been made private and re-rooted onto
// a fresh /proc view (spec §4.C steps 1-2) — the mounts made here live
// only in that namespace and disappear the instant the inner process
// exits, which is why the caller needs no explicit unmount step beyond
// removing the now-empty directories.
func buildRoot(tempDir, workdir string, overlay bool) error {
	r := revert.New()
	defer r.Fail()

	rootDir := filepath.Join(tempDir, "root")
	sandDir := filepath.Join(rootDir, "sand")

	if err := os.Mkdir(rootDir, 0755); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("mkdir %s: %w", rootDir, err))
	}

	if err := os.Mkdir(sandDir, 0755); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("mkdir %s: %w", sandDir, err))
	}

	if err := mountWorkdir(tempDir, sandDir, workdir, overlay, r); err != nil {
		return err
	}

	if err := mountTmp(rootDir); err != nil {
		return err
	}

	if err := mountProc(rootDir, r); err != nil {
		return err
	}

	if err := mountSystemDirs(rootDir, r); err != nil {
		return err
	}

	r.Success()
	return nil
}

func mountWorkdir(tempDir, sandDir, workdir string, overlay bool, r *revert.Reverter) error {
	if !overlay {
		if err := unix.Mount(workdir, sandDir, "", unix.MS_BIND, ""); err != nil {
			return setupErr(KindMountFailed, fmt.Errorf("bind mount %s onto %s: %w", workdir, sandDir, err))
		}

		r.Add(func() { _ = unix.Unmount(sandDir, unix.MNT_DETACH) })
		return nil
	}

	upperDir, err := newTempDir(tempDir)
	if err != nil {
		return err
	}

	if err := os.Chmod(upperDir, 0777); err != nil {
		return setupErr(KindMountFailed, err)
	}

	workDirOverlay, err := newTempDir(tempDir)
	if err != nil {
		return err
	}

	if err := os.Chmod(workDirOverlay, 0777); err != nil {
		return setupErr(KindMountFailed, err)
	}

	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", workdir, upperDir, workDirOverlay)

	if err := unix.Mount("overlay", sandDir, "overlay", 0, opts); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("overlay mount onto %s: %w", sandDir, err))
	}

	r.Add(func() { _ = unix.Unmount(sandDir, unix.MNT_DETACH) })
	return nil
}

func mountTmp(rootDir string) error {
	tmpDir := filepath.Join(rootDir, "tmp")

	if err := os.Mkdir(tmpDir, 0777); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("mkdir %s: %w", tmpDir, err))
	}

	if err := os.Chmod(tmpDir, 0777); err != nil {
		return setupErr(KindMountFailed, err)
	}

	return nil
}

func mountProc(rootDir string, r *revert.Reverter) error {
	procDir := filepath.Join(rootDir, "proc")

	if err := os.Mkdir(procDir, 0755); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("mkdir %s: %w", procDir, err))
	}

	if err := unix.Mount("proc", procDir, "proc", 0, ""); err != nil {
		return setupErr(KindMountFailed, fmt.Errorf("mount proc at %s: %w", procDir, err))
	}

	r.Add(func() { _ = unix.Unmount(procDir, unix.MNT_DETACH) })
	return nil
}

// mountSystemDirs binds the read-only host system directories into the
// sandbox. Each bind mount targets a disjoint subdirectory of rootDir
// and none depends on another having completed, so they are done
// concurrently.
func mountSystemDirs(rootDir string, r *revert.Reverter) error {
	g := new(errgroup.Group)

	for _, name := range roDirs {
		name := name

		g.Go(func() error {
			dir := filepath.Join(rootDir, name)

			if err := os.Mkdir(dir, 0755); err != nil {
				return setupErr(KindMountFailed, fmt.Errorf("mkdir %s: %w", dir, err))
			}

			if err := unix.Mount(filepath.Join("/", name), dir, "", unix.MS_BIND|unix.MS_RDONLY, ""); err != nil {
				return setupErr(KindMountFailed, fmt.Errorf("bind mount /%s: %w", name, err))
			}

			// The kernel ignores MS_RDONLY on the initial bind; a bind
			// remount is what makes the mount read-only.
			if err := unix.Mount("", dir, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
				return setupErr(KindMountFailed, fmt.Errorf("remount /%s read-only: %w", name, err))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, name := range roDirs {
		dir := filepath.Join(rootDir, name)
		r.Add(func() { _ = unix.Unmount(dir, unix.MNT_DETACH) })
	}

	return nil
}
