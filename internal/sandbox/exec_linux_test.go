//go:build linux

package sandbox

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadInnerPIDRoundTrips(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 4242)
	_, err = w.Write(buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := readInnerPID(r)
	require.NoError(t, err)
	require.Equal(t, 4242, got)
}

func TestReadInnerPIDEmptyPipeIsSetupError(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	defer r.Close()

	_, err = readInnerPID(r)
	require.Error(t, err)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, KindUnshareOrSetupFailed, setupErr.Kind)
}

func TestReadInnerStatusDistinguishesExitFromSignal(t *testing.T) {
	cases := []struct {
		name     string
		status   int32
		signaled bool
	}{
		{"clean exit zero", 0, false},
		{"nonzero exit", 42, false},
		// An exit code of 137 is exactly what 128+SIGKILL(9) would also
		// produce; the explicit flag byte is what keeps these apart.
		{"exit code matching 128+SIGKILL by coincidence", 137, false},
		{"killed by SIGKILL", 128 + 9, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, w, err := os.Pipe()
			require.NoError(t, err)
			defer r.Close()

			buf := make([]byte, 5)
			binary.LittleEndian.PutUint32(buf[0:4], uint32(tc.status))
			if tc.signaled {
				buf[4] = 1
			}

			_, err = w.Write(buf)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			status, signaled, err := readInnerStatus(r)
			require.NoError(t, err)
			require.Equal(t, int(tc.status), status)
			require.Equal(t, tc.signaled, signaled)
		})
	}
}
