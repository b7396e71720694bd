package openai

import (
	"strings"

	"github.com/poiesic/minutes/ai"
)

// responseSchema describes the JSON object the model must return. Each
// category key holds a list of objects whose first property is the item text.
const responseSchema = `{
  "type": "object",
  "properties": {
    "decisions": {"type": "array", "items": {"type": "object", "properties": {
      "summary": {"type": "string", "description": "What was decided"},
      "owner": {"type": "string", "description": "Who made it"},
      "rationale": {"type": "string", "description": "Why this choice"},
      "date": {"type": "string", "description": "When"}}, "required": ["summary"]}},
    "ideas": {"type": "array", "items": {"type": "object", "properties": {
      "title": {"type": "string", "description": "Short idea name"},
      "description": {"type": "string", "description": "What it is"},
      "category": {"type": "string", "enum": ["problem", "opportunity", "suggestion"]}}, "required": ["title"]}},
    "questions": {"type": "array", "items": {"type": "object", "properties": {
      "text": {"type": "string", "description": "The question"},
      "context": {"type": "string", "description": "Why it matters"},
      "owner": {"type": "string", "description": "Who answers"}}, "required": ["text"]}},
    "action_items": {"type": "array", "items": {"type": "object", "properties": {
      "description": {"type": "string", "description": "What to do"},
      "owner": {"type": "string", "description": "Who owns it"},
      "deadline": {"type": "string", "description": "When"}}, "required": ["description"]}},
    "concepts": {"type": "array", "items": {"type": "object", "properties": {
      "name": {"type": "string", "description": "Concept name"},
      "definition": {"type": "string", "description": "What it is"}}, "required": ["name"]}},
    "terms": {"type": "array", "items": {"type": "object", "properties": {
      "term": {"type": "string", "description": "The word or abbreviation"},
      "definition": {"type": "string", "description": "What it means"},
      "context": {"type": "string", "description": "Where it was mentioned"}}, "required": ["term"]}}
  }
}`

// DefaultSystemPrompt frames the model as a transcript analyst.
const DefaultSystemPrompt = `You analyze meeting transcripts and planning sessions and extract structured
knowledge from them: decisions, ideas, questions, action items, concepts and terminology.
Be precise and concise. Extract only what was explicitly discussed and never infer
decisions that were not stated. Keep the original context and attribution where the
transcript gives it.`

// DefaultExtractionPrompt is the user prompt. {schema} and {transcript} are
// substituted before sending.
const DefaultExtractionPrompt = `Extract structured knowledge from this transcript.

Respond with ONLY a valid JSON object that follows this schema. No preamble and no
explanation. Leave a field empty rather than guessing.
{schema}

Transcript:
{transcript}

Be literal. Do not embellish or infer.`

// buildPrompts returns the system and user prompts for one chunk of text.
func buildPrompts(config *ai.Config, text string) (string, string) {
	system := config.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	template := config.ExtractionPrompt
	if template == "" {
		template = DefaultExtractionPrompt
	}
	r := strings.NewReplacer(
		ai.SchemaPlaceholder, responseSchema,
		ai.TranscriptPlaceholder, text,
	)
	return system, r.Replace(template)
}
