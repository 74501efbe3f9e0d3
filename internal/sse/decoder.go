package sse

import (
	"bytes"
	"log/slog"

	"github.com/goccy/go-json"
)

// Decoder reassembles frames from arbitrarily split chunks. It is not safe
// for concurrent use.
type Decoder struct {
	partial []byte
	logger  *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Feed consumes one chunk and returns the texts of every complete frame in
// it, in order. A trailing incomplete line is held until the next chunk.
// When a [DONE] payload is seen, done is true and the rest of the chunk,
// including any held partial line, is discarded.
func (d *Decoder) Feed(chunk []byte) (texts []string, done bool) {
	buf := append(d.partial, chunk...)
	d.partial = nil

	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]

		text, ok, isDone := d.line(line)
		if isDone {
			return texts, true
		}
		if ok {
			texts = append(texts, text)
		}
	}

	if len(buf) > 0 {
		d.partial = append([]byte(nil), buf...)
	}
	return texts, false
}

// Flush processes a final line left without a trailing newline once the
// stream has ended.
func (d *Decoder) Flush() (texts []string, done bool) {
	if len(d.partial) == 0 {
		return nil, false
	}
	line := d.partial
	d.partial = nil

	text, ok, isDone := d.line(line)
	if isDone {
		return nil, true
	}
	if ok {
		texts = append(texts, text)
	}
	return texts, false
}

// Reset drops any held partial line.
func (d *Decoder) Reset() {
	d.partial = nil
}

func (d *Decoder) line(raw []byte) (text string, ok, done bool) {
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	rest, found := bytes.CutPrefix(raw, []byte(DataPrefix))
	if !found {
		return "", false, false
	}

	payload := bytes.TrimSpace(rest)
	if string(payload) == Done {
		return "", false, true
	}

	var frame struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		d.logger.Warn("skipping unparseable stream frame", "payload", string(payload), "error", err)
		return "", false, false
	}
	if frame.Text == nil {
		d.logger.Warn("skipping stream frame without text", "payload", string(payload))
		return "", false, false
	}
	return *frame.Text, true, false
}
