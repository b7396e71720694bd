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


// Package ai defines the model-facing services used by minutes.
//
// Two interfaces cover everything the pipeline needs from a model:
//
//   - Embedder: turns text into vectors for the vector index
//   - Extractor: turns a chunk of transcript into raw knowledge items
//
// Provider bundles both behind one lifecycle. The ai/openai package talks to
// OpenAI-compatible servers and ai/mock supplies deterministic test doubles.
//
// Extraction failures are reported by wrapping ErrTimeout, ErrRateLimited,
// ErrMalformedResponse or ErrUnavailable, which lets callers classify a
// failure with errors.Is before deciding to retry.
//
// Public constructors in ai/openai return interface types. The mock
// constructors return concrete types so tests can inject behavior and read
// call counts.
package ai
