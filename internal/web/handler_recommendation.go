package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/llm"
	"github.com/vbonduro/boardgamer/internal/sse"
	"github.com/vbonduro/boardgamer/internal/validation"
)

const maxRecommendationBody = 1 << 20

const (
	outcomeCompleted     = "completed"
	outcomeUpstreamError = "upstream_error"
	outcomeAborted       = "aborted"
	outcomeClientGone    = "client_gone"
)

// handleRecommendation streams markdown recommendations as SSE text frames.
// Until the first delta arrives nothing is committed, so an upstream failure
// can still be answered with a JSON 500. After that, failures are logged and
// the stream is closed.
func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	var req domain.RecommendationRequest
	if verr := validation.DecodeJSON(http.MaxBytesReader(w, r.Body, maxRecommendationBody), &req); verr != nil {
		s.writeValidationError(w, msgInvalidInput, verr)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		s.writeValidationError(w, msgInvalidInput, verr)
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		s.logger.Error("response writer cannot stream", "error", err)
		s.writeError(w, http.StatusInternalServerError, msgUnknownError, nil)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	streamID := uuid.NewString()
	logger := s.logger.With("stream_id", streamID)
	start := time.Now()

	ch, tmpl, err := s.recommender.Stream(ctx, &req)
	if err != nil {
		logger.Error("recommendation stream failed to start", "error", err)
		s.metrics.ObserveStream(string(tmpl), outcomeUpstreamError, time.Since(start))
		s.writeError(w, http.StatusInternalServerError, msgUpstreamPrefix+err.Error(), nil)
		return
	}
	logger.Info("recommendation stream started",
		"template", tmpl,
		"games", len(req.IdentifiedCollection),
		"player_count", req.PlayerCount,
		"playing_time", req.PlayingTime,
	)

	outcome := s.pump(ctx, w, sw, ch, logger)
	if outcome == outcomeCompleted {
		if err := sw.WriteDone(); err != nil {
			logger.Warn("failed to write done frame", "error", err)
			outcome = outcomeClientGone
		}
	}

	s.metrics.ObserveStream(string(tmpl), outcome, time.Since(start))
	logger.Info("recommendation stream finished", "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
}

// pump forwards deltas one at a time and reports how the stream ended.
func (s *Server) pump(ctx context.Context, w http.ResponseWriter, sw *sse.Writer, ch <-chan llm.StreamEvent, logger *slog.Logger) string {
	for ev := range ch {
		if ev.Err != nil {
			if !sw.Started() {
				logger.Error("recommendation upstream failed", "error", ev.Err)
				s.writeError(w, http.StatusInternalServerError, msgUpstreamPrefix+ev.Err.Error(), nil)
				return outcomeUpstreamError
			}
			logger.Error("recommendation stream aborted", "error", ev.Err)
			return outcomeAborted
		}
		if err := sw.WriteText(ev.Text); err != nil {
			logger.Warn("client write failed", "error", err)
			return outcomeClientGone
		}
		s.metrics.IncDelta()
	}
	if ctx.Err() != nil {
		return outcomeClientGone
	}
	return outcomeCompleted
}
