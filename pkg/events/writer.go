package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Writer serializes discriminated events onto an http.ResponseWriter as
// a Server-Sent Events stream. A single Writer is used for exactly one
// response; it is safe to call Send from only one goroutine at a time
// per the net/http contract that only the handler goroutine may write
// to its ResponseWriter, but the mutex guards against accidental
// concurrent use so a caller mistake surfaces as lock contention rather
// than a corrupted frame.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter prepares w for SSE streaming: sets the content-type header
// and grabs its http.Flusher. Returns an error if the underlying
// ResponseWriter does not support flushing (e.g. in some test harnesses).
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("events: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one SSE frame (event: <type>\ndata: <json>\n\n) and
// flushes it immediately so the client observes it without buffering.
func (sw *Writer) Send(event EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	sw.flusher.Flush()
	return nil
}

// SendMeta emits the stream-opening meta event.
func (sw *Writer) SendMeta(conversationID, stance string) error {
	return sw.Send(EventMeta, MetaPayload{ConversationID: conversationID, Stance: stance})
}

// SendThinking emits a thinking-text chunk.
func (sw *Writer) SendThinking(text string) error {
	return sw.Send(EventThinking, ThinkingPayload{Text: text})
}

// SendToken emits one generated-text chunk.
func (sw *Writer) SendToken(text string) error {
	return sw.Send(EventToken, TokenPayload{Text: text})
}

// SendDone emits the terminal success event.
func (sw *Writer) SendDone(conversationID, stance string, tokensUsed int, model string) error {
	return sw.Send(EventDone, DonePayload{
		ConversationID: conversationID,
		Stance:         stance,
		TokensUsed:     tokensUsed,
		Model:          model,
	})
}

// SendError emits the terminal failure event. Send errors are logged
// rather than returned — by the time an error event fails to write, the
// connection is almost certainly already gone and there is no further
// action the caller can take.
func (sw *Writer) SendError(message, code string) {
	if err := sw.Send(EventError, ErrorPayload{Error: message, Code: code}); err != nil {
		slog.Warn("events: failed to write error frame", "error", err)
	}
}
