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

// Package search answers queries against the keyword index, the vector
// index, or both.
//
// Keyword mode returns the keyword index ranking. Vector mode embeds the
// query with the indexing embedder and ranks by cosine similarity. Hybrid
// mode runs both with an enlarged candidate pool and fuses the two rankings
// with Reciprocal Rank Fusion, which needs no normalization between the
// dissimilar score scales.
//
// The Engine holds no per-query state and caches nothing.
package search
