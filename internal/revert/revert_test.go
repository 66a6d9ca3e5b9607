package revert_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/library-checker-project/judge-executor/internal/revert"
)

func TestRevertRunsHooksInReverseOnFailure(t *testing.T) {
	var order []int

	func() {
		r := revert.New()
		defer r.Fail()

		r.Add(func() { order = append(order, 1) })
		r.Add(func() { order = append(order, 2) })
		r.Add(func() { order = append(order, 3) })
	}()

	require.Equal(t, []int{3, 2, 1}, order)
}

func TestRevertSuccessSkipsHooks(t *testing.T) {
	ran := false

	func() {
		r := revert.New()
		defer r.Fail()

		r.Add(func() { ran = true })
		r.Success()
	}()

	require.False(t, ran)
}
