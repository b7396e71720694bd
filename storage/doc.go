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


// Package storage provides the storage abstraction layer for minutes.
//
// This package defines the interfaces that decouple persistence from the
// chunking, deduplication and retrieval logic. Four kinds of state exist:
//
//   - ItemRepository: the canonical store of deduplicated knowledge items
//   - KeywordIndex: ranked full-text search over item text
//   - VectorIndex: nearest-neighbor search over item embeddings
//   - SessionLog and CheckpointRepository: processing history and chunk progress
//
// Implementations live in sub-packages:
//
//   - storage/badger: items, session log, checkpoints and an exact vector index on BadgerDB
//   - storage/bleve: the keyword index
//   - storage/qdrant: a remote vector index
//
// The keyword and vector indexes know nothing of each other. The index.Manager
// keeps them consistent with the item store.
//
// # Usage
//
// Open the BadgerDB stores:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	items, err := badger.NewItemRepository(backend)
//
// Use in tests with in-memory storage:
//
//	stores, err := badger.NewMemoryStores()
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer stores.Close()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
