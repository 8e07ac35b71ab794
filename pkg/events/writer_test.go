package events

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_SendWritesEventStreamFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.SendToken("hello"))
	require.NoError(t, w.SendDone("conv-1", "lens", 5, "claude-sonnet-4-5"))

	out := rec.Body.String()
	assert.Contains(t, out, "event: token")
	assert.Contains(t, out, `"text":"hello"`)
	assert.Contains(t, out, "event: done")
	assert.Contains(t, out, `"conversationId":"conv-1"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestWriter_SendErrorWritesErrorFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	w.SendError("boom", "INTERNAL_ERROR")

	out := rec.Body.String()
	assert.True(t, strings.Contains(out, "event: error"))
	assert.Contains(t, out, `"code":"INTERNAL_ERROR"`)
}
