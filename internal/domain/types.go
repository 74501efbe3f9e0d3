package domain

import "strings"

// IdentifiedGame is a canonical game title found on a shelf photo. BggID is
// reserved for catalog linkage and is always nil for now.
type IdentifiedGame struct {
	GameName string  `json:"gameName" validate:"required"`
	BggID    *string `json:"bggId"`
}

type RecommendationRequest struct {
	IdentifiedCollection []IdentifiedGame `json:"identifiedCollection" validate:"required,dive"`
	PlayerCount          string           `json:"playerCount" validate:"required,playercount"`
	PlayingTime          string           `json:"playingTime" validate:"required,playingtime"`
}

// GameNames returns the names of the identified games in collection order.
func (r *RecommendationRequest) GameNames() []string {
	names := make([]string, 0, len(r.IdentifiedCollection))
	for _, g := range r.IdentifiedCollection {
		names = append(names, g.GameName)
	}
	return names
}

// PlayerCounts are the accepted playerCount values.
var PlayerCounts = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10+"}

// PlayingTimes are the accepted playingTime buckets.
var PlayingTimes = []string{
	"Quick (< 30 mins)",
	"Short (30-60 mins)",
	"Medium (1-2 hours)",
	"Long (2-4 hours)",
	"Super Long (4+ hours)",
}

func IsPlayerCount(s string) bool {
	return contains(PlayerCounts, s)
}

func IsPlayingTime(s string) bool {
	return contains(PlayingTimes, s)
}

// Games wraps plain names as IdentifiedGames with no catalog id.
func Games(names ...string) []IdentifiedGame {
	games := make([]IdentifiedGame, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			games = append(games, IdentifiedGame{GameName: n})
		}
	}
	return games
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
