package sandbox

import (
	"os"
)

// allocateTempDir performs spec §4.A steps 1-2: create a uniquely
// named directory under the host temp area and make it world-writable,
// since the unprivileged sandboxed process must be able to resolve
// paths through it. This runs in the outer process, before any fork —
// the rest of §4.A (the actual mount tree under T/root) is built later,
// inside the inner process; see buildRoot and SPEC_FULL's "Mount
// ordering split" note.
func allocateTempDir() (string, error) {
	dir, err := newTempDir(os.TempDir())
	if err != nil {
		return "", err
	}

	if err := os.Chmod(dir, 0777); err != nil {
		return "", setupErr(KindTempDirExhausted, err)
	}

	return dir, nil
}
