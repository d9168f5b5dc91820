// Package sse writes the relay's event protocol as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventType represents the kind of a stream event.
type EventType string

const (
	// EventTextStart opens the response text block.
	EventTextStart EventType = "text-start"
	// EventTextDelta carries a chunk of response text.
	EventTextDelta EventType = "text-delta"
	// EventTextEnd closes the response text block.
	EventTextEnd EventType = "text-end"
	// EventChatID carries a newly created chat identifier. At most one per
	// stream, always before any text event.
	EventChatID EventType = "data-chat-id"
	// EventError carries a classified, public-safe error.
	EventError EventType = "error"
	// EventFinish terminates every stream, success or failure.
	EventFinish EventType = "finish"
)

// Writer writes stream events to an HTTP response.
type Writer struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewWriter creates a new SSE writer and sets the response headers for an
// event stream. The headers are not flushed until the first event is
// written, so cookies may still be added after this call.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{
		writer:  w,
		flusher: flusher,
	}, nil
}

// WriteEvent writes an SSE event with the given type and data.
func (w *Writer) WriteEvent(eventType EventType, data string) error {
	_, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", eventType, data)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteJSON writes an SSE event with JSON-encoded data.
func (w *Writer) WriteJSON(eventType EventType, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return w.WriteEvent(eventType, string(jsonData))
}

// WriteChatID writes the data-chat-id event.
func (w *Writer) WriteChatID(chatID string) error {
	return w.WriteJSON(EventChatID, map[string]string{"chatId": chatID})
}

// WriteTextStart writes the text-start event.
func (w *Writer) WriteTextStart() error {
	return w.WriteJSON(EventTextStart, map[string]string{})
}

// WriteTextDelta writes a text-delta event with a chunk of response text.
func (w *Writer) WriteTextDelta(delta string) error {
	return w.WriteJSON(EventTextDelta, map[string]string{"delta": delta})
}

// WriteTextEnd writes the text-end event.
func (w *Writer) WriteTextEnd() error {
	return w.WriteJSON(EventTextEnd, map[string]string{})
}

// WriteStreamError writes a sanitized error event.
func (w *Writer) WriteStreamError(code, message string) error {
	return w.WriteJSON(EventError, map[string]string{
		"code":      code,
		"errorText": message,
	})
}

// WriteFinish writes the terminal finish event.
func (w *Writer) WriteFinish() error {
	return w.WriteJSON(EventFinish, map[string]string{})
}

// Flush flushes the response writer.
func (w *Writer) Flush() {
	w.flusher.Flush()
}
