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

import "errors"

// Domain validation errors
var (
	// ErrInvalidCandidate indicates a CandidateItem failed validation.
	ErrInvalidCandidate = errors.New("invalid candidate item")

	// ErrInvalidKnowledgeItem indicates a KnowledgeItem failed validation.
	ErrInvalidKnowledgeItem = errors.New("invalid knowledge item")

	// ErrInvalidSessionRecord indicates a SessionRecord failed validation.
	ErrInvalidSessionRecord = errors.New("invalid session record")

	// ErrInvalidCategory indicates an unknown Category value or name.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrMissingMetadata indicates a required metadata key is absent.
	ErrMissingMetadata = errors.New("missing required metadata")

	// ErrInvalidMetadataValue indicates a metadata value outside its allowed set.
	ErrInvalidMetadataValue = errors.New("invalid metadata value")

	// ErrEmptySessionID indicates the SessionID field is empty.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrEmptyFileHash indicates the FileHash field is empty.
	ErrEmptyFileHash = errors.New("file hash cannot be empty")

	// ErrInvalidSearchMode indicates an unknown search mode name.
	ErrInvalidSearchMode = errors.New("invalid search mode")

	// ErrInvalidID indicates a malformed external id.
	ErrInvalidID = errors.New("invalid id")
)
