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

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// Save persists the chunk checkpoint of a session.
func (r *CheckpointRepository) Save(ctx context.Context, checkpoint *core.ChunkCheckpoint) error {
	if checkpoint.SessionID == "" {
		return core.ErrEmptySessionID
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		checkpoint.UpdatedAt = time.Now().UTC()
		key := makeCheckpointKey(checkpoint.SessionID)
		value := storage.MarshalChunkCheckpoint(checkpoint)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Load retrieves the checkpoint of a session.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) Load(ctx context.Context, sessionID string) (*core.ChunkCheckpoint, error) {
	var checkpoint *core.ChunkCheckpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(sessionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			checkpoint, unmarshalErr = storage.UnmarshalChunkCheckpoint(val)
			return unmarshalErr
		})
	}, false)

	return checkpoint, err
}

// Delete removes the checkpoint of a session.
func (r *CheckpointRepository) Delete(ctx context.Context, sessionID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(sessionID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
