package cgroup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// withBasePath points the package-level cgroup mount root at a
// throwaway directory for the duration of t, restoring it afterwards.
func withBasePath(t *testing.T, path string) {
	t.Helper()
	prev := basePath
	basePath = path
	t.Cleanup(func() { basePath = prev })
}

// TestPeakMemoryParsesDecimal exercises the parsing path of PeakMemory
// without requiring a real cgroup v1 mount, by pointing a Manager at a
// throwaway directory tree shaped like /sys/fs/cgroup/<ctrl>/lib-judge.
func TestPeakMemoryParsesDecimal(t *testing.T) {
	root := t.TempDir()
	memDir := filepath.Join(root, "memory", GroupName)
	require.NoError(t, os.MkdirAll(memDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(memDir, "memory.max_usage_in_bytes"), []byte("104857600\n"), 0644))

	m := &Manager{name: GroupName}
	withBasePath(t, root)

	require.EqualValues(t, 104857600, m.PeakMemory())
}

func TestPeakMemoryUnreadableYieldsMinusOne(t *testing.T) {
	root := t.TempDir()
	m := &Manager{name: GroupName}
	withBasePath(t, root)

	require.EqualValues(t, -1, m.PeakMemory())
}

func TestPeakMemoryUnparsableYieldsMinusOne(t *testing.T) {
	root := t.TempDir()
	memDir := filepath.Join(root, "memory", GroupName)
	require.NoError(t, os.MkdirAll(memDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(memDir, "memory.max_usage_in_bytes"), []byte("not-a-number\n"), 0644))

	m := &Manager{name: GroupName}
	withBasePath(t, root)

	require.EqualValues(t, -1, m.PeakMemory())
}

func TestDefaultSettingsMatchSpec(t *testing.T) {
	s := DefaultSettings()
	require.Equal(t, "1000", s.PidsMax)
	require.Equal(t, "0", s.CpusetCpus)
	require.Equal(t, "0", s.CpusetMems)
	require.Equal(t, "1G", s.MemoryLimitInBytes)
	require.Equal(t, "1G", s.MemoryMemswLimitInBytes)
}
