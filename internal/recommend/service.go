// Package recommend builds the recommendation prompt and streams the model's
// markdown answer.
package recommend

import (
	"context"
	"fmt"

	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/llm"
)

// StreamOptions are fixed for every recommendation.
var StreamOptions = llm.Options{MaxTokens: 300, Temperature: 0.6}

type Service struct {
	model llm.StreamModel
}

func NewService(model llm.StreamModel) *Service {
	return &Service{model: model}
}

// Stream starts the model stream for req. The channel follows the
// llm.StreamModel contract.
func (s *Service) Stream(ctx context.Context, req *domain.RecommendationRequest) (<-chan llm.StreamEvent, Template, error) {
	prompt, tmpl := BuildPrompt(req)
	ch, err := s.model.StreamText(ctx, prompt, StreamOptions)
	if err != nil {
		return nil, tmpl, fmt.Errorf("failed to start recommendation stream: %w", err)
	}
	return ch, tmpl, nil
}
