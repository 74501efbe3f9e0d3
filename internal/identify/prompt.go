package identify

import (
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2/jsonschema"
)

// VisionPrompt asks the vision model for a plain comma-separated title list.
const VisionPrompt = "Identify all unique board game titles visible in this image. " +
	"List them as a comma-separated string, e.g., 'Catan, Ticket to Ride, Splendor'. " +
	"If no board games are identified, respond with 'None'."

// CanonicalizationPrompt asks the model to keep only real games and to name
// each one canonically.
func CanonicalizationPrompt(names []string) string {
	return fmt.Sprintf(`Given the following list of potential board game titles: %s.
Please verify which of these are actual, real board game titles. For each real game, provide its most common, canonical name.
Return them as a JSON array of objects under "games", like this:
{"games": [{"gameName": "Canonical Game Name"}, {"gameName": "Another Canonical Game Name"}]}
Do not include any games that are not real board games.`, strings.Join(names, ", "))
}

// CanonicalSchema is the shape canonicalization output must take. Tool inputs
// must be objects, so the array is wrapped in a "games" property.
func CanonicalSchema() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"games": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"gameName": {Type: jsonschema.String, Description: "Canonical title of the board game"},
					},
					Required: []string{"gameName"},
				},
			},
		},
		Required: []string{"games"},
	}
}
