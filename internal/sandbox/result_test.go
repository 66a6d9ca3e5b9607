package sandbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")

	want := ExecResult{Status: 0, Time: 1.5, Memory: 4096, TLE: false}
	require.NoError(t, WriteFile(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got ExecResult
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want, got)
}

func TestWriteFileUsesReferenceFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")

	require.NoError(t, WriteFile(path, ExecResult{Status: 137, Time: 3.2, Memory: 65536, TLE: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"returncode", "time", "memory", "tle"} {
		require.Containsf(t, raw, key, "result JSON missing expected field %q", key)
	}

	require.NotContains(t, raw, "Signaled")
}

func TestWriteFileOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	require.NoError(t, WriteFile(path, ExecResult{Status: 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got ExecResult
	require.NoError(t, json.Unmarshal(data, &got))
}
