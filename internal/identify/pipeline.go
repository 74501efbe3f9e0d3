// Package identify turns a shelf photo into canonical board-game titles in
// two stages: a vision call that lists names, then a schema-constrained call
// that keeps the real games under their canonical names.
//
// Neither stage fails the request. A failed stage is logged, reported with
// StatusFailed, and contributes an empty list.
package identify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/llm"
	"github.com/vbonduro/boardgamer/internal/logging"
	"github.com/vbonduro/boardgamer/internal/metrics"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

const (
	StageVision           = "vision"
	StageCanonicalization = "canonicalization"
)

// StageResult is the typed outcome of one stage. Value is always usable:
// an empty list when Status is StatusEmpty or StatusFailed.
type StageResult[T any] struct {
	Value  T
	Status Status
	Err    error
}

type Result struct {
	Games            []domain.IdentifiedGame
	Vision           StageResult[[]string]
	Canonicalization StageResult[[]domain.IdentifiedGame]
}

var (
	visionOptions    = llm.Options{MaxTokens: 256, Temperature: 0.2}
	canonicalOptions = llm.Options{MaxTokens: 1024, Temperature: 0}
)

type Pipeline struct {
	vision     llm.VisionModel
	structured llm.StructuredModel
	metrics    *metrics.Metrics

	visionCB    *gobreaker.CircuitBreaker[string]
	canonicalCB *gobreaker.CircuitBreaker[[]byte]
}

// BreakerSettings bounds how many consecutive upstream failures a stage
// tolerates before it fails fast for Cooldown.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 5, Cooldown: 30 * time.Second}

// NewPipeline wires both stages. m may be nil.
func NewPipeline(vision llm.VisionModel, structured llm.StructuredModel, m *metrics.Metrics, bs BreakerSettings) *Pipeline {
	return &Pipeline{
		vision:      vision,
		structured:  structured,
		metrics:     m,
		visionCB:    newBreaker[string](StageVision, bs, m),
		canonicalCB: newBreaker[[]byte](StageCanonicalization, bs, m),
	}
}

// Identify runs both stages. It never returns an error; stage failures are
// carried in the result.
func (p *Pipeline) Identify(ctx context.Context, dataURL string) *Result {
	vision := p.identifyNames(ctx, ParseDataURL(dataURL))
	canonical := p.canonicalize(ctx, vision.Value)

	p.metrics.ObserveIdentified(len(canonical.Value))
	return &Result{
		Games:            canonical.Value,
		Vision:           vision,
		Canonicalization: canonical,
	}
}

func (p *Pipeline) identifyNames(ctx context.Context, img llm.Image) StageResult[[]string] {
	start := time.Now()
	raw, err := p.visionCB.Execute(func() (string, error) {
		return p.vision.DescribeImage(ctx, img, VisionPrompt, visionOptions)
	})

	res := StageResult[[]string]{Value: []string{}}
	switch {
	case err != nil:
		res.Status, res.Err = StatusFailed, err
		logging.FromContext(ctx).Warn("image identification failed", "stage", StageVision, "error", err)
	default:
		res.Value = ParseNames(raw)
		res.Status = statusFor(len(res.Value))
		logging.FromContext(ctx).Info("vision identified games", "count", len(res.Value), "names", res.Value)
	}

	p.metrics.ObserveStage(StageVision, string(res.Status), time.Since(start))
	return res
}

func (p *Pipeline) canonicalize(ctx context.Context, names []string) StageResult[[]domain.IdentifiedGame] {
	res := StageResult[[]domain.IdentifiedGame]{Value: []domain.IdentifiedGame{}}
	if len(names) == 0 {
		res.Status = StatusEmpty
		p.metrics.ObserveStage(StageCanonicalization, string(res.Status), 0)
		return res
	}

	start := time.Now()
	raw, err := p.canonicalCB.Execute(func() ([]byte, error) {
		return p.structured.GenerateStructured(ctx, CanonicalizationPrompt(names), CanonicalSchema(), canonicalOptions)
	})

	var games []domain.IdentifiedGame
	if err == nil {
		games, err = decodeCanonical(raw)
	}

	if err != nil {
		res.Status, res.Err = StatusFailed, err
		logging.FromContext(ctx).Warn("game canonicalization failed", "stage", StageCanonicalization, "error", err)
	} else {
		res.Value = games
		res.Status = statusFor(len(games))
	}

	p.metrics.ObserveStage(StageCanonicalization, string(res.Status), time.Since(start))
	return res
}

func statusFor(n int) Status {
	if n == 0 {
		return StatusEmpty
	}
	return StatusOK
}

func newBreaker[T any](name string, bs BreakerSettings, m *metrics.Metrics) *gobreaker.CircuitBreaker[T] {
	m.SetBreakerState(name, stateToFloat(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     bs.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		// A caller going away says nothing about the upstream's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			m.SetBreakerState(name, stateToFloat(to))
			m.ObserveBreakerTransition(name, from.String(), to.String())
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// IsBreakerOpen reports whether err came from a tripped breaker rather than
// the model.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
