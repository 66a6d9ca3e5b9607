//go:build linux

package sandbox

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexOfFindsSeparator(t *testing.T) {
	argv := []string{"prog", "a", "b", "--", "c", "d"}
	require.Equal(t, 3, indexOf(argv, "--"))
}

func TestIndexOfMissingSeparator(t *testing.T) {
	argv := []string{"prog", "a", "b"}
	require.Equal(t, -1, indexOf(argv, "--"))
}

func TestDecodeWaitStatusNilProcessState(t *testing.T) {
	cmd := exec.Command("true")

	_, _, ok := decodeWaitStatus(cmd, nil)
	require.False(t, ok, "a never-started command has no ProcessState")
}
