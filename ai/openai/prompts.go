package openai

import (
	"fmt"
	"strings"

	"github.com/ffirst2551/mercil/ai"
)

const taggingResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "tags": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "label": {
            "type": "string",
            "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"
          },
          "confidence": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          }
        },
        "required": ["label", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["tags"],
  "additionalProperties": false
}`

const taggingPromptTemplate = `You label photographs taken in disaster-relief settings. Identify the concrete
things the image shows that matter for relief work: structures, vehicles, supplies, damage, groups of people.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Labels must be lowercase, 1-3 words, singular form only.
- Label only what is visibly present in the image. Do not guess at context the image does not show.
- Confidence is a number from 0.0 to 1.0 expressing how certain you are the label is correct.
- Prefer specific labels over generic ones ("water tank" over "container").
- If nothing relevant can be identified, return "tags": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Labels of the expected form include: %s.

Example:
Input: photograph of a canvas shelter next to stacked bottled water
Output:
{
  "tags": [
    {"label":"tent","confidence":0.95},
    {"label":"water supplies","confidence":0.82}
  ]
}`

// taggingSystemPrompt creates the system prompt with example labels embedded.
func taggingSystemPrompt() string {
	return fmt.Sprintf(taggingPromptTemplate,
		taggingResponseSchema,
		strings.Join(ai.TagExamples, ", "))
}
