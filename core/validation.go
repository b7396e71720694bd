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


package core

import (
	"fmt"
	"slices"
	"strings"
)

// MetadataSchema describes the metadata keys a category understands.
type MetadataSchema struct {
	Required []string
	Optional []string
	// Allowed constrains the values of specific keys. Matching is case-insensitive.
	Allowed map[string][]string
}

// Accepts reports whether key is a known key for the schema.
func (s MetadataSchema) Accepts(key string) bool {
	return slices.Contains(s.Required, key) || slices.Contains(s.Optional, key)
}

var metadataSchemas = map[Category]MetadataSchema{
	CategoryDecision: {
		Optional: []string{"owner", "rationale", "date"},
	},
	CategoryIdea: {
		Optional: []string{"kind", "description"},
		Allowed: map[string][]string{
			"kind": {"problem", "opportunity", "suggestion"},
		},
	},
	CategoryQuestion: {
		Optional: []string{"owner", "context"},
	},
	CategoryActionItem: {
		Optional: []string{"owner", "deadline"},
	},
	CategoryConcept: {
		Optional: []string{"definition"},
	},
	CategoryTerm: {
		Optional: []string{"definition", "context"},
	},
}

// SchemaFor returns the metadata schema of a category.
// Unknown categories get an empty schema.
func SchemaFor(c Category) MetadataSchema {
	return metadataSchemas[c]
}

// ValidateCandidate validates a CandidateItem at the deduplication boundary.
//
// Validation rules:
//   - Category must be one of the defined categories
//   - Text must contain something other than whitespace
//   - Required metadata keys for the category must be present and non-empty
//   - Constrained metadata values must be in their allowed set
//
// NOT validated:
//   - Unknown metadata keys (stripped by SanitizeMetadata instead)
//   - SourceChunk (any chunk index is acceptable)
func ValidateCandidate(item *CandidateItem) error {
	if item == nil {
		return fmt.Errorf("%w: candidate is nil", ErrInvalidCandidate)
	}
	if !item.Category.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrInvalidCandidate, ErrInvalidCategory, item.Category)
	}
	if strings.TrimSpace(item.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, ErrEmptyText)
	}
	if err := validateMetadata(item.Category, item.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	return nil
}

// ValidateKnowledgeItem validates a KnowledgeItem before it is stored.
//
// Validation rules:
//   - Id must be non-zero
//   - Category must be valid
//   - Text must not be empty
//   - OccurrenceCount must be at least 1
//
// NOT validated:
//   - Metadata (already validated when the candidate was merged)
//   - SessionID and Project (an item may be created outside a session)
func ValidateKnowledgeItem(item *KnowledgeItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidKnowledgeItem)
	}
	if item.Id == 0 {
		return fmt.Errorf("%w: %w: zero", ErrInvalidKnowledgeItem, ErrInvalidID)
	}
	if !item.Category.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrInvalidKnowledgeItem, ErrInvalidCategory, item.Category)
	}
	if strings.TrimSpace(item.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidKnowledgeItem, ErrEmptyText)
	}
	if item.OccurrenceCount < 1 {
		return fmt.Errorf("%w: occurrence count %d", ErrInvalidKnowledgeItem, item.OccurrenceCount)
	}
	return nil
}

// ValidateSessionRecord validates a SessionRecord before it is appended to the log.
func ValidateSessionRecord(rec *SessionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidSessionRecord)
	}
	if rec.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSessionRecord, ErrEmptySessionID)
	}
	if rec.FileHash == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSessionRecord, ErrEmptyFileHash)
	}
	return nil
}

// SanitizeMetadata returns a copy of md holding only keys the category accepts,
// with whitespace trimmed and empty values removed. The second result lists the
// keys that were discarded.
func SanitizeMetadata(c Category, md map[string]string) (map[string]string, []string) {
	schema := SchemaFor(c)
	clean := make(map[string]string, len(md))
	var dropped []string
	for k, v := range md {
		key := strings.ToLower(strings.TrimSpace(k))
		if !schema.Accepts(key) {
			dropped = append(dropped, k)
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, constrained := schema.Allowed[key]; constrained {
			v = strings.ToLower(v)
		}
		clean[key] = v
	}
	slices.Sort(dropped)
	return clean, dropped
}

func validateMetadata(c Category, md map[string]string) error {
	schema := SchemaFor(c)
	for _, key := range schema.Required {
		if strings.TrimSpace(md[key]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingMetadata, key)
		}
	}
	for key, allowed := range schema.Allowed {
		v, ok := md[key]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if !slices.Contains(allowed, strings.ToLower(strings.TrimSpace(v))) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidMetadataValue, key, v)
		}
	}
	return nil
}
