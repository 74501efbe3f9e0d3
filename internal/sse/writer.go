package sse

import (
	"errors"
	"net/http"
)

var ErrNoFlusher = errors.New("response writer does not support flushing")

// Writer streams frames to an HTTP response, flushing after each one.
// Headers are committed by the first write so callers can still answer with
// an ordinary error status until then.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNoFlusher
	}
	return &Writer{w: w, flusher: f}, nil
}

// Started reports whether headers have been sent.
func (sw *Writer) Started() bool { return sw.started }

func (sw *Writer) start() {
	if sw.started {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

func (sw *Writer) WriteText(text string) error {
	b, err := EncodeText(text)
	if err != nil {
		return err
	}
	return sw.write(b)
}

func (sw *Writer) WriteDone() error {
	return sw.write(EncodeDone())
}

func (sw *Writer) write(b []byte) error {
	sw.start()
	if _, err := sw.w.Write(b); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
