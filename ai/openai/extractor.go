// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/minutes/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// textFields names the property that carries the item text for each
// category key of the response. Unknown keys fall back to fallbackTextFields.
var textFields = map[string]string{
	"decisions":    "summary",
	"ideas":        "title",
	"questions":    "text",
	"action_items": "description",
	"concepts":     "name",
	"terms":        "term",
}

var (
	categoryOrder      = []string{"decisions", "ideas", "questions", "action_items", "concepts", "terms"}
	fallbackTextFields = []string{"text", "summary", "title", "name", "term", "description"}
)

// Extractor implements ai.Extractor using OpenAI-compatible chat APIs.
type Extractor struct {
	client llms.Model
	config *ai.Config
	logger *slog.Logger
}

func newExtractor(config *ai.Config) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractionHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, err
	}
	return newExtractorWithModel(client, config), nil
}

func newExtractorWithModel(client llms.Model, config *ai.Config) *Extractor {
	return &Extractor{
		client: client,
		config: config,
		logger: slog.Default().With("component", "openai-extractor"),
	}
}

// NewExtractor creates a new item extractor using the provided configuration.
func NewExtractor(config *ai.Config) (ai.Extractor, error) {
	return newExtractor(config)
}

// ExtractItems sends one block of transcript text to the model and parses the
// structured answer. A single request is made; retrying is left to callers.
func (e *Extractor) ExtractItems(ctx context.Context, text string) ([]ai.ExtractedItem, error) {
	if strings.TrimSpace(text) == "" {
		return []ai.ExtractedItem{}, nil
	}

	system, user := buildPrompts(e.config, text)
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		err = mapError(err)
		e.logger.Error("failed to generate content", "err", err)
		return nil, err
	}
	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("%w: no choices returned", ai.ErrMalformedResponse)
	}

	items, err := parseItems(response.Choices[0].Content)
	if err != nil {
		e.logger.Warn("error parsing extraction response", "err", err)
		return nil, err
	}
	e.logger.Debug("extracted items", "count", len(items))
	return items, nil
}

// parseItems decodes a response body into extracted items. Category keys are
// visited in a fixed order, then any unknown list-valued keys alphabetically,
// so the result is deterministic.
func parseItems(body string) ([]ai.ExtractedItem, error) {
	raw := repairJSON(extractJSONBlock(body))

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrMalformedResponse, err)
	}

	keys := slices.Clone(categoryOrder)
	var extra []string
	for k := range doc {
		if !slices.Contains(categoryOrder, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	keys = append(keys, extra...)

	items := []ai.ExtractedItem{}
	for _, key := range keys {
		msg, ok := doc[key]
		if !ok {
			continue
		}
		var entries []map[string]any
		if err := json.Unmarshal(msg, &entries); err != nil {
			if _, known := textFields[key]; known {
				return nil, fmt.Errorf("%w: %s: %w", ai.ErrMalformedResponse, key, err)
			}
			// Scalars such as a summary line are not items
			continue
		}
		for _, entry := range entries {
			items = append(items, toItem(key, entry))
		}
	}
	return items, nil
}

func toItem(key string, entry map[string]any) ai.ExtractedItem {
	candidates := fallbackTextFields
	if field, ok := textFields[key]; ok {
		candidates = []string{field}
	}

	item := ai.ExtractedItem{Category: key, Metadata: map[string]string{}}
	textKey := ""
	for _, field := range candidates {
		if v, ok := entry[field]; ok {
			item.Text = strings.TrimSpace(stringify(v))
			textKey = field
			break
		}
	}
	for k, v := range entry {
		if k == textKey {
			continue
		}
		value := strings.TrimSpace(stringify(v))
		if value == "" {
			continue
		}
		// Idea sub-type travels as "category" in the response
		if key == "ideas" && k == "category" {
			k = "kind"
		}
		item.Metadata[k] = value
	}
	return item
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
