package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupErrorMessageIncludesKindAndCause(t *testing.T) {
	err := setupErr(KindMountFailed, errors.New("boom"))
	require.Equal(t, "mount-failed: boom", err.Error())
}

func TestSetupErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	err := setupErr(KindChrootFailed, cause)
	require.ErrorIs(t, err, cause)
}

func TestSetupErrorWithNilCause(t *testing.T) {
	err := setupErr(KindWaitpidUnexpected, nil)
	require.Equal(t, string(KindWaitpidUnexpected), err.Error())
}
