// Package client consumes the recommendation server: it identifies games in
// an image, then streams recommendations into an accumulated markdown output.
//
// A Session owns one output buffer. Starting a new run cancels the one in
// flight, and appends from the cancelled run are discarded.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/sse"
)

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Input is what the user supplies for one run.
type Input struct {
	ImageDataURL string
	PlayerCount  string
	PlayingTime  string
}

// Validate checks preconditions without touching the network.
func (in Input) Validate() error {
	switch {
	case in.ImageDataURL == "":
		return &Error{Category: CategoryUpload, Err: ErrMissingImage}
	case in.PlayerCount == "":
		return &Error{Category: CategoryUpload, Err: ErrMissingPlayerCount}
	case in.PlayingTime == "":
		return &Error{Category: CategoryUpload, Err: ErrMissingPlayingTime}
	}
	return nil
}

// UpdateFunc observes output and state changes. It is called with the
// session lock held and must not call back into the Session.
type UpdateFunc func(output string, state State)

type Session struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	onUpdate UpdateFunc
	readSize int

	mu     sync.Mutex
	state  State
	output strings.Builder
	games  []domain.IdentifiedGame
	err    error
	gen    uint64
	cancel context.CancelFunc
}

type Option func(*Session)

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Session) { s.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithOnUpdate(fn UpdateFunc) Option {
	return func(s *Session) { s.onUpdate = fn }
}

// WithReadSize sets the body read buffer size.
func WithReadSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.readSize = n
		}
	}
}

func New(baseURL string, opts ...Option) *Session {
	s := &Session{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		logger:   slog.Default(),
		readSize: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Output returns the markdown accumulated by the latest recommendation.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.String()
}

// Err returns the failure that put the session in StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Games returns the collection from the latest identification.
func (s *Session) Games() []domain.IdentifiedGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.IdentifiedGame(nil), s.games...)
}

// Cancel stops the run in flight, if any, keeping its partial output.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.release()
	if s.state == StateStreaming {
		s.state = StateIdle
		s.notify()
	}
}

// Run validates in, identifies the games in the image and streams
// recommendations for them. Both phases belong to one run: a newer run
// cancels this one wherever it is, and this one then returns ErrSuperseded.
func (s *Session) Run(ctx context.Context, in Input) error {
	if err := in.Validate(); err != nil {
		return err
	}

	gen, ctx := s.begin(ctx)

	games, err := s.identify(ctx, gen, in.ImageDataURL)
	if err != nil {
		return err
	}

	return s.stream(ctx, gen, domain.RecommendationRequest{
		IdentifiedCollection: games,
		PlayerCount:          in.PlayerCount,
		PlayingTime:          in.PlayingTime,
	})
}

// Recommend resets the output and streams a recommendation into it. A run
// started while another is in flight cancels the older one, which then
// returns ErrSuperseded.
func (s *Session) Recommend(ctx context.Context, req domain.RecommendationRequest) error {
	gen, ctx := s.begin(ctx)
	return s.stream(ctx, gen, req)
}

// identify posts the image to /api/identify on behalf of run gen.
func (s *Session) identify(ctx context.Context, gen uint64, dataURL string) ([]domain.IdentifiedGame, error) {
	var out struct {
		Games            []domain.IdentifiedGame `json:"games"`
		Vision           string                  `json:"vision"`
		Canonicalization string                  `json:"canonicalization"`
	}

	resp, err := s.post(ctx, "/api/identify", map[string]string{"imageDataUrl": dataURL})
	if err != nil {
		return nil, s.fail(gen, &Error{Category: CategoryIdentify, Err: err})
	}
	defer closeWithLog(resp.Body, "identify response", s.logger)

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, s.fail(gen, &Error{Category: CategoryIdentify, Err: fmt.Errorf("failed to decode response: %w", err)})
	}
	s.logger.Info("identified games", "count", len(out.Games), "vision", out.Vision, "canonicalization", out.Canonicalization)

	if out.Games == nil {
		out.Games = []domain.IdentifiedGame{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, ErrSuperseded
	}
	s.games = out.Games
	return out.Games, nil
}

// stream reads the recommendation for run gen into the output.
func (s *Session) stream(ctx context.Context, gen uint64, req domain.RecommendationRequest) error {
	resp, err := s.post(ctx, "/api/recommendation", req)
	if err != nil {
		return s.fail(gen, &Error{Category: CategoryRecommendation, Err: err})
	}
	defer closeWithLog(resp.Body, "recommendation stream", s.logger)

	dec := sse.NewDecoder(s.logger)
	buf := make([]byte, s.readSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			texts, _ := dec.Feed(buf[:n])
			if !s.append(gen, texts) {
				return ErrSuperseded
			}
		}
		if errors.Is(readErr, io.EOF) {
			texts, _ := dec.Flush()
			if !s.append(gen, texts) {
				return ErrSuperseded
			}
			return s.finish(gen)
		}
		if readErr != nil {
			return s.fail(gen, &Error{Category: CategoryStream, Err: fmt.Errorf("failed to read stream: %w", readErr)})
		}
	}
}

// post sends body as JSON and returns the response if it is a 200.
func (s *Session) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer closeWithLog(resp.Body, "error response", s.logger)
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var body struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil {
			httpErr.Message = body.Error
			httpErr.Details = body.Details
		}
		return nil, httpErr
	}
	return resp, nil
}

// begin starts a new generation: it cancels the previous run and resets the
// output.
func (s *Session) begin(parent context.Context) (uint64, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	s.state = StateStreaming
	s.err = nil
	s.output.Reset()
	s.notify()
	return s.gen, ctx
}

// append adds texts in order if gen is still current.
func (s *Session) append(gen uint64, texts []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	if len(texts) == 0 {
		return true
	}
	for _, t := range texts {
		s.output.WriteString(t)
	}
	s.notify()
	return true
}

func (s *Session) finish(gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	s.release()
	s.state = StateDone
	s.notify()
	return nil
}

// fail records err for gen. Output accumulated so far is kept.
func (s *Session) fail(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	s.release()
	s.state = StateError
	s.err = err
	s.logger.Error("run failed", "error", err)
	s.notify()
	return err
}

func (s *Session) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate(s.output.String(), s.state)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
