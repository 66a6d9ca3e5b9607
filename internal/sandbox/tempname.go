package sandbox

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

const (
	tempNameLength = 10
	tempNameChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tempNameTries  = 10
)

func randomName() (string, error) {
	buf := make([]byte, tempNameLength)
	_, err := rand.Read(buf)
	if err != nil {
		return "", err
	}

	out := make([]byte, tempNameLength)
	for i, b := range buf {
		out[i] = tempNameChars[int(b)%len(tempNameChars)]
	}

	return string(out), nil
}

// newTempDir creates a fresh directory under parent, named with a
// random 10-char alphanumeric string, retrying on collision up to
// tempNameTries times.
func newTempDir(parent string) (string, error) {
	for i := 0; i < tempNameTries; i++ {
		name, err := randomName()
		if err != nil {
			return "", setupErr(KindTempDirExhausted, err)
		}

		path := filepath.Join(parent, name)
		err = os.Mkdir(path, 0700)
		if err == nil {
			return path, nil
		}

		if !os.IsExist(err) {
			return "", setupErr(KindTempDirExhausted, err)
		}
	}

	return "", setupErr(KindTempDirExhausted, fmt.Errorf("exhausted %d attempts under %s", tempNameTries, parent))
}
