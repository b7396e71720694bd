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


package badger

import "errors"

// Stores groups every BadgerDB-backed store sharing one backend.
type Stores struct {
	Backend     *Backend
	Items       *ItemRepository
	Sessions    *SessionLog
	Checkpoints *CheckpointRepository
	Vectors     *VectorIndex
}

// OpenStores opens (or creates) the database at path and builds every store on it.
func OpenStores(path string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	sessions, err := NewSessionLog(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Stores{
		Backend:     backend,
		Items:       NewItemRepository(backend),
		Sessions:    sessions,
		Checkpoints: NewCheckpointRepository(backend),
		Vectors:     NewVectorIndex(backend),
	}, nil
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must call Close when done.
func NewMemoryStores() (*Stores, error) {
	return OpenStores("", true)
}

// Close releases the session sequence and closes the backend.
func (s *Stores) Close() error {
	return errors.Join(s.Sessions.Close(), s.Backend.Close())
}
