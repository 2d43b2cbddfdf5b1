package events

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	domainerrors "tradegate/pkg/domain-errors"
)

// sseWriter frames envelopes as server-sent events and flushes after every
// write so frames reach the client immediately.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeInternal, "response writer does not support streaming")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteEnvelope emits an event frame with the envelope's sequence as the SSE
// id, so the client's Last-Event-ID checkpoint tracks the stream position.
func (s *sseWriter) WriteEnvelope(env Envelope) error {
	data, err := json.Marshal(env.Payload)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "marshal event payload")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\nid: %s\ndata: %s\n\n",
		env.Type, strconv.FormatUint(env.Seq, 10), data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteResync emits the gap marker. It carries no id line: a resync is not a
// stream position and must not advance the client's checkpoint.
func (s *sseWriter) WriteResync(oldestRetained uint64) error {
	data, err := json.Marshal(StreamResync{OldestRetainedSequence: oldestRetained})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "marshal resync payload")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", EventStreamResync, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteHeartbeat emits an SSE comment frame that keeps intermediaries from
// closing an otherwise quiet connection.
func (s *sseWriter) WriteHeartbeat() error {
	if _, err := io.WriteString(s.w, ":hb\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
