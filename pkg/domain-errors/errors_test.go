package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeNotFound, "donor not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		inner := New(CodeInvariantViolation, "request already decided")
		outer := Wrap(inner, CodeConflict, "cannot approve")
		assert.True(t, HasCode(outer, CodeConflict))
		assert.True(t, HasCode(outer, CodeInvariantViolation))
	})

	t.Run("uncoded error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause yields nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "should be dropped"))
	})

	t.Run("cause stays reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "failed to load request")
		assert.ErrorIs(t, err, cause)
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInsufficientStock, CodeOf(New(CodeInsufficientStock, "short")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	outer := Wrap(New(CodeNotFound, "missing"), CodeInternal, "lookup failed")
	assert.Equal(t, CodeInternal, CodeOf(outer), "outermost code wins")
}
