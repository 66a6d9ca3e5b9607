package sandbox

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomNameLengthAndCharset(t *testing.T) {
	name, err := randomName()
	require.NoError(t, err)
	require.Len(t, name, tempNameLength)

	for _, c := range name {
		require.Truef(t, strings.ContainsRune(tempNameChars, c), "name %q contains char %q outside of tempNameChars", name, c)
	}
}

func TestRandomNameVariesAcrossCalls(t *testing.T) {
	a, err := randomName()
	require.NoError(t, err)

	b, err := randomName()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestNewTempDirCreatesDirectory(t *testing.T) {
	parent := t.TempDir()

	dir, err := newTempDir(parent)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewTempDirFailsUnderNonexistentParent(t *testing.T) {
	_, err := newTempDir("/nonexistent/parent/for/sure")
	require.Error(t, err)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	require.Equal(t, KindTempDirExhausted, setupErr.Kind)
}
