package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/identify"
	"github.com/vbonduro/boardgamer/internal/validation"
)

// bodyOverhead allows for the JSON envelope around the data URL.
const bodyOverhead = 4 * 1024

type identifyRequest struct {
	ImageDataURL string `json:"imageDataUrl" validate:"required"`
}

type identifyResponse struct {
	Games            []domain.IdentifiedGame `json:"games"`
	Vision           identify.Status         `json:"vision"`
	Canonicalization identify.Status         `json:"canonicalization"`
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	tooLarge := validation.NewError("imageDataUrl",
		fmt.Sprintf("image must be at most %d bytes", s.opts.MaxImageBytes))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.opts.MaxImageBytes)+bodyOverhead))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeValidationError(w, msgIdentifyInvalid, tooLarge)
			return
		}
		s.writeError(w, http.StatusBadRequest, msgIdentifyInvalid, []string{"body: failed to read request"})
		return
	}

	var req identifyRequest
	if verr := validation.DecodeJSON(bytes.NewReader(body), &req); verr != nil {
		s.writeValidationError(w, msgIdentifyInvalid, verr)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		s.writeValidationError(w, msgIdentifyInvalid, verr)
		return
	}
	if len(req.ImageDataURL) > s.opts.MaxImageBytes {
		s.writeValidationError(w, msgIdentifyInvalid, tooLarge)
		return
	}

	res := s.identifier.Identify(r.Context(), req.ImageDataURL)
	s.logger.Info("identified games",
		"count", len(res.Games),
		"vision", res.Vision.Status,
		"canonicalization", res.Canonicalization.Status,
	)

	s.writeJSON(w, http.StatusOK, identifyResponse{
		Games:            res.Games,
		Vision:           res.Vision.Status,
		Canonicalization: res.Canonicalization.Status,
	})
}
