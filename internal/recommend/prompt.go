package recommend

import (
	"fmt"
	"strings"

	"github.com/vbonduro/boardgamer/internal/domain"
)

// Template names which prompt was chosen for a request.
type Template string

const (
	TemplateGeneral  Template = "general"
	TemplateFiltered Template = "filtered"
)

const formatInstructions = `Keep your response brief and directly suggest games. Do not ask follow-up questions.
Format your suggestions using Markdown, including bold for game titles, bullet points for lists, and a brief description for each game.`

// BuildPrompt picks the general template when no games were identified and
// the filtered template otherwise.
func BuildPrompt(req *domain.RecommendationRequest) (string, Template) {
	if len(req.IdentifiedCollection) == 0 {
		return fmt.Sprintf(`You are a board game expert.
Suggest board games suitable for %s players with a playing time of %s.
No specific games were identified from the image, so acknowledge that no games were identified and provide general recommendations.
Provide a concise, bulleted list of recommended games.
%s`, req.PlayerCount, req.PlayingTime, formatInstructions), TemplateGeneral
	}

	return fmt.Sprintf(`You are a board game expert.
Provide a concise list of recommended board games.
The user has the following board games in their collection: %s.
They are looking for games for %s players with a playing time of %s.
Recommend only the games in their collection that are best suited for %s players and that playing time.
%s`, strings.Join(req.GameNames(), ", "), req.PlayerCount, req.PlayingTime, req.PlayerCount, formatInstructions), TemplateFiltered
}
