package sse_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vbonduro/boardgamer/internal/sse"
)

type noFlushWriter struct{ http.ResponseWriter }

var _ = Describe("Writer", func() {
	var rec *httptest.ResponseRecorder

	BeforeEach(func() {
		rec = httptest.NewRecorder()
	})

	It("rejects writers that cannot flush", func() {
		_, err := sse.NewWriter(noFlushWriter{rec})
		Expect(err).To(MatchError(sse.ErrNoFlusher))
	})

	It("commits headers lazily on the first frame", func() {
		w, err := sse.NewWriter(rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Started()).To(BeFalse())
		Expect(rec.Header().Get("Content-Type")).To(BeEmpty())

		Expect(w.WriteText("hello")).To(Succeed())
		Expect(w.Started()).To(BeTrue())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(rec.Header().Get("Cache-Control")).To(Equal("no-cache"))
		Expect(rec.Header().Get("Connection")).To(Equal("keep-alive"))
		Expect(rec.Header().Get("X-Accel-Buffering")).To(Equal("no"))
		Expect(rec.Flushed).To(BeTrue())
	})

	It("writes frames in the wire format", func() {
		w, err := sse.NewWriter(rec)
		Expect(err).NotTo(HaveOccurred())

		Expect(w.WriteText("**Catan**")).To(Succeed())
		Expect(w.WriteText(` "quoted"`)).To(Succeed())
		Expect(w.WriteDone()).To(Succeed())

		Expect(rec.Body.String()).To(Equal(
			"data: {\"type\":\"text\",\"text\":\"**Catan**\"}\n\n" +
				"data: {\"type\":\"text\",\"text\":\" \\\"quoted\\\"\"}\n\n" +
				"data: [DONE]\n\n"))
	})

	It("round-trips through the decoder", func() {
		w, err := sse.NewWriter(rec)
		Expect(err).NotTo(HaveOccurred())
		for _, t := range []string{"a", "<b>", "c\n"} {
			Expect(w.WriteText(t)).To(Succeed())
		}
		Expect(w.WriteDone()).To(Succeed())

		texts, done := sse.NewDecoder(nil).Feed(rec.Body.Bytes())
		Expect(texts).To(Equal([]string{"a", "<b>", "c\n"}))
		Expect(done).To(BeTrue())
	})
})
