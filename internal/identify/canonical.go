package identify

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/validation"
)

var errNotJSONList = errors.New("canonicalization output is neither an object with games nor an array")

type canonicalEntry struct {
	GameName string `json:"gameName" validate:"required"`
}

// decodeCanonical accepts {"games":[...]} or a bare array. Entries failing
// validation are dropped; the rest get a nil BggID.
func decodeCanonical(raw []byte) ([]domain.IdentifiedGame, error) {
	raw = bytes.TrimSpace(raw)

	var entries []canonicalEntry
	switch {
	case bytes.HasPrefix(raw, []byte("{")):
		var wrapped struct {
			Games []canonicalEntry `json:"games"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode canonicalization output: %w", err)
		}
		entries = wrapped.Games
	case bytes.HasPrefix(raw, []byte("[")):
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode canonicalization output: %w", err)
		}
	default:
		return nil, errNotJSONList
	}

	games := make([]domain.IdentifiedGame, 0, len(entries))
	v := validation.GetValidator()
	for i, e := range entries {
		e.GameName = strings.TrimSpace(e.GameName)
		if err := v.Struct(e); err != nil {
			slog.Warn("dropping invalid canonical entry", "index", i, "error", err)
			continue
		}
		games = append(games, domain.IdentifiedGame{GameName: e.GameName})
	}
	return games, nil
}
