package storeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("MessageIncludesKindAndCause", func(t *testing.T) {
		cause := errors.New("dial refused")
		err := Wrap(BackendUnavailable, "connecting to redis", cause)
		assert.Contains(t, err.Error(), "BackendUnavailable")
		assert.Contains(t, err.Error(), "dial refused")
	})

	t.Run("UnwrapExposesCause", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(InvariantViolation, "x", cause)
		assert.Same(t, cause, errors.Unwrap(err))
	})

	t.Run("NewHasNoCause", func(t *testing.T) {
		err := New(InvalidInput, "bad type")
		assert.Nil(t, err.Unwrap())
		assert.NotContains(t, err.Error(), "<nil>")
	})

	t.Run("IsMatchesKind", func(t *testing.T) {
		err := New(CapacityExceeded, "full")
		assert.True(t, Is(err, CapacityExceeded))
		assert.False(t, Is(err, SigilCollision))
	})

	t.Run("IsFalseForNonStoreErr", func(t *testing.T) {
		assert.False(t, Is(errors.New("plain"), InvalidInput))
	})
}
