package errtaxonomy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	t.Run("unwraps a plain Error", func(t *testing.T) {
		err := New(RateLimited, "too many requests")
		assert.Equal(t, RateLimited, CodeOf(err))
	})

	t.Run("unwraps through fmt.Errorf wrapping", func(t *testing.T) {
		base := New(Timeout, "provider timed out")
		wrapped := fmt.Errorf("fetching stock quote: %w", base)
		assert.Equal(t, Timeout, CodeOf(wrapped))
	})

	t.Run("defaults to InternalError for foreign errors", func(t *testing.T) {
		assert.Equal(t, InternalError, CodeOf(errors.New("boom")))
	})
}

func TestErrorMessage(t *testing.T) {
	e := Wrap(ProviderError, "stock fetch failed", errors.New("connection reset"))
	require.Contains(t, e.Error(), "PROVIDER_ERROR")
	require.Contains(t, e.Error(), "stock fetch failed")
	require.Contains(t, e.Error(), "connection reset")
}

func TestWithContext(t *testing.T) {
	e := New(InvalidInput, "bad entity").WithContext("entity", "AAPL")
	assert.Equal(t, "AAPL", e.Context["entity"])

	// Original must be unmodified (WithContext copies).
	orig := New(InvalidInput, "bad entity")
	_ = orig.WithContext("x", 1)
	assert.Nil(t, orig.Context)
}

func TestCodeIsValid(t *testing.T) {
	assert.True(t, RateLimited.IsValid())
	assert.False(t, Code("NOT_A_REAL_CODE").IsValid())
}
