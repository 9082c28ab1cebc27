package fetcher

import (
	"errors"
	"net"
	"reflect"
)

// Failure conditions captured into Response.Cause.
var (
	// ErrEmptyResponse marks a 2xx response without a body.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoJSON marks a 2xx response whose body is not valid JSON when JSON was expected.
	ErrNoJSON = errors.New("no JSON response")
	// ErrUnsupportedMethod is returned for any method other than GET, POST and PUT.
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
	// ErrInvalidURL is returned by NewJob when the URL cannot be used for a fetch.
	ErrInvalidURL = errors.New("invalid fetch URL")
)

// maxUnwrapDepth bounds the cause-chain walk in rootCause.
const maxUnwrapDepth = 32

// rootCause returns the deepest error in err's wrap chain. For joined errors
// the first branch is followed. The walk stops at maxUnwrapDepth or when an
// error repeats.
func rootCause(err error) error {
	if err == nil {
		return nil
	}
	seen := make(map[error]struct{}, 4)
	current := err
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		if isComparable(current) {
			if _, dup := seen[current]; dup {
				return current
			}
			seen[current] = struct{}{}
		}
		next := unwrapOnce(current)
		if next == nil {
			return current
		}
		current = next
	}
	return current
}

func unwrapOnce(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if inner != nil {
				return inner
			}
		}
	}
	return nil
}

// isComparable reports whether err can be used as a map key without panicking.
// The check is on the dynamic value, so structs holding incomparable errors fail it.
func isComparable(err error) bool {
	return reflect.ValueOf(err).Comparable()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
