package sse_test

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vbonduro/boardgamer/internal/sse"
)

// feedAll pushes chunks through d and returns the concatenated text.
func feedAll(d *sse.Decoder, chunks ...string) (string, bool) {
	var sb strings.Builder
	sawDone := false
	for _, c := range chunks {
		texts, done := d.Feed([]byte(c))
		for _, t := range texts {
			sb.WriteString(t)
		}
		sawDone = sawDone || done
	}
	texts, done := d.Flush()
	for _, t := range texts {
		sb.WriteString(t)
	}
	return sb.String(), sawDone || done
}

func mustFrame(text string) string {
	b, err := sse.EncodeText(text)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

var _ = Describe("Decoder", func() {
	var (
		d    *sse.Decoder
		logs *bytes.Buffer
	)

	BeforeEach(func() {
		logs = &bytes.Buffer{}
		d = sse.NewDecoder(slog.New(slog.NewTextHandler(logs, nil)))
	})

	Describe("Feed", func() {
		It("decodes whole frames in order", func() {
			out, done := feedAll(d, mustFrame("**Catan**")+mustFrame(" is great for 4."))
			Expect(out).To(Equal("**Catan** is great for 4."))
			Expect(done).To(BeFalse())
		})

		It("reassembles frames split at every byte boundary", func() {
			stream := mustFrame("alpha ") + mustFrame("beta ") + mustFrame("gamma")

			for split := 1; split < len(stream); split++ {
				dec := sse.NewDecoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
				out, _ := feedAll(dec, stream[:split], stream[split:])
				Expect(out).To(Equal("alpha beta gamma"), "split at %d", split)
			}
		})

		It("reassembles frames fed one byte at a time", func() {
			stream := mustFrame("one") + mustFrame(" two")
			chunks := make([]string, 0, len(stream))
			for i := range stream {
				chunks = append(chunks, stream[i:i+1])
			}
			out, _ := feedAll(d, chunks...)
			Expect(out).To(Equal("one two"))
		})

		It("tolerates CRLF line endings", func() {
			out, _ := feedAll(d, "data: {\"type\":\"text\",\"text\":\"hi\"}\r\n\r\n")
			Expect(out).To(Equal("hi"))
		})

		It("ignores lines without the data prefix", func() {
			out, _ := feedAll(d, ": keep-alive\n\nevent: ping\n"+mustFrame("x"))
			Expect(out).To(Equal("x"))
		})

		It("preserves newlines and unicode inside text", func() {
			out, _ := feedAll(d, mustFrame("- **Azul**\n- Ticket to Ride ✓"))
			Expect(out).To(Equal("- **Azul**\n- Ticket to Ride ✓"))
		})
	})

	Describe("sentinel handling", func() {
		It("contributes nothing and raises no error", func() {
			out, done := feedAll(d, mustFrame("a")+"data: [DONE]\n\n")
			Expect(out).To(Equal("a"))
			Expect(done).To(BeTrue())
			Expect(logs.String()).To(BeEmpty())
		})

		It("stops processing the rest of the current chunk", func() {
			texts, done := d.Feed([]byte(mustFrame("a") + "data: [DONE]\n\n" + mustFrame("ignored")))
			Expect(texts).To(Equal([]string{"a"}))
			Expect(done).To(BeTrue())
		})

		It("keeps decoding later chunks", func() {
			_, done := d.Feed([]byte("data: [DONE]\n\n" + "data: {\"text\":\"par"))
			Expect(done).To(BeTrue())

			texts, done := d.Feed([]byte(mustFrame("after")))
			Expect(texts).To(Equal([]string{"after"}))
			Expect(done).To(BeFalse())
		})

		It("recognises a sentinel left unterminated at end of stream", func() {
			_, done := feedAll(d, "data: [DONE]")
			Expect(done).To(BeTrue())
		})
	})

	Describe("malformed frames", func() {
		It("skips and logs them without aborting", func() {
			out, done := feedAll(d,
				mustFrame("a"),
				"data: {not json}\n\n",
				"data: {\"type\":\"text\"}\n\n",
				"data: {\"type\":\"text\",\"text\":42}\n\n",
				"data: \"bare string\"\n\n",
				mustFrame("b"),
			)
			Expect(out).To(Equal("ab"))
			Expect(done).To(BeFalse())
			Expect(logs.String()).To(ContainSubstring("skipping unparseable stream frame"))
			Expect(logs.String()).To(ContainSubstring("skipping stream frame without text"))
		})
	})

	Describe("Flush", func() {
		It("emits a final unterminated frame", func() {
			texts, _ := d.Feed([]byte(`data: {"type":"text","text":"tail"}`))
			Expect(texts).To(BeEmpty())

			texts, done := d.Flush()
			Expect(texts).To(Equal([]string{"tail"}))
			Expect(done).To(BeFalse())
		})

		It("returns nothing when no partial line is held", func() {
			texts, done := d.Flush()
			Expect(texts).To(BeNil())
			Expect(done).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		It("drops a held partial line", func() {
			d.Feed([]byte(`data: {"text":"stale`))
			d.Reset()
			out, _ := feedAll(d, mustFrame("fresh"))
			Expect(out).To(Equal("fresh"))
		})
	})
})
