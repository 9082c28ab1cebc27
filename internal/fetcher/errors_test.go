package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCause(t *testing.T) {
	t.Parallel()

	base := errors.New("connection reset")
	wrapped := fmt.Errorf("level3: %w", fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", base)))
	urlErr := &url.Error{Op: "Get", URL: "http://example.com", Err: wrapped}

	require.Nil(t, rootCause(nil))
	require.Same(t, base, rootCause(base))
	require.Same(t, base, rootCause(urlErr))
	require.Equal(t, context.DeadlineExceeded, rootCause(fmt.Errorf("acquire: %w", context.DeadlineExceeded)))
}

func TestRootCauseFollowsFirstJoinedError(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	joined := fmt.Errorf("outer: %w", errors.Join(nil, first, errors.New("second")))
	require.Same(t, first, rootCause(joined))
}

type loopErr struct{ next error }

func (e *loopErr) Error() string { return "loop" }
func (e *loopErr) Unwrap() error { return e.next }

func TestRootCauseStopsOnCycles(t *testing.T) {
	t.Parallel()

	a := &loopErr{}
	b := &loopErr{next: a}
	a.next = b

	got := rootCause(a)
	require.NotNil(t, got)
}

type sliceErr []string

func (e sliceErr) Error() string { return "uncomparable" }

func TestRootCauseHandlesUncomparableErrors(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrap: %w", sliceErr{"a"})
	require.Equal(t, "uncomparable", rootCause(err).Error())
}

// holderErr is a comparable type whose value may hold an incomparable error.
type holderErr struct{ inner error }

func (e holderErr) Error() string { return "holder: " + e.inner.Error() }
func (e holderErr) Unwrap() error { return e.inner }

func TestIsComparable(t *testing.T) {
	t.Parallel()

	require.True(t, isComparable(errors.New("plain")))
	require.True(t, isComparable(holderErr{inner: errors.New("plain")}))
	require.False(t, isComparable(sliceErr{"a"}))
	require.False(t, isComparable(holderErr{inner: sliceErr{"a"}}))

	require.Equal(t, "uncomparable", rootCause(holderErr{inner: sliceErr{"a"}}).Error())
}

func TestRootCauseDepthLimit(t *testing.T) {
	t.Parallel()

	var err error = errors.New("bottom")
	for i := 0; i < maxUnwrapDepth*2; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}
	require.NotEqual(t, "bottom", rootCause(err).Error())
}
