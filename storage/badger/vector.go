package badger

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// VectorIndex implements storage.VectorIndex for BadgerDB with an exact
// brute-force cosine scan. Vectors are normalized on insert so cosine
// similarity reduces to a dot product.
//
// The dimension is fixed by the first insert and persisted.
type VectorIndex struct {
	backend *Backend
	mu      sync.Mutex
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (v *VectorIndex) Close() error {
	return nil
}

// Ping reports whether the underlying database is open.
func (v *VectorIndex) Ping(ctx context.Context) error {
	if v.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Dimension returns the stored dimension, or 0 if nothing was inserted yet.
func (v *VectorIndex) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		dim, err = readDimension(tx)
		return err
	}, false)
	return dim, err
}

// InsertVector stores or replaces the embedding of an item.
func (v *VectorIndex) InsertVector(ctx context.Context, id core.ID, vector []float32) error {
	if len(vector) == 0 {
		return storage.ErrEmptyVector
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := readDimension(tx)
		if err != nil {
			return err
		}
		switch {
		case dim == 0:
			buf := binary.BigEndian.AppendUint32(nil, uint32(len(vector)))
			if err := tx.Set([]byte(vectorDimensionKey), buf); err != nil {
				return err
			}
		case dim != len(vector):
			return fmt.Errorf("%w: got %d, index has %d", storage.ErrDimensionMismatch, len(vector), dim)
		}

		normalized := core.NormalizeVector(vector)
		if err := tx.Set(makeVectorKey(id), storage.MarshalVector(normalized)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes embeddings. Missing IDs are ignored.
func (v *VectorIndex) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Nearest returns up to limit neighbors ordered by ascending cosine distance.
// Ties are broken by ID.
func (v *VectorIndex) Nearest(ctx context.Context, vector []float32, limit int) ([]storage.Neighbor, error) {
	if len(vector) == 0 {
		return nil, storage.ErrEmptyVector
	}
	if limit <= 0 {
		return nil, nil
	}
	query := core.NormalizeVector(vector)

	var neighbors []storage.Neighbor
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := readDimension(tx)
		if err != nil {
			return err
		}
		if dim == 0 {
			return nil
		}
		if dim != len(query) {
			return fmt.Errorf("%w: got %d, index has %d", storage.ErrDimensionMismatch, len(query), dim)
		}

		return scanPrefix(tx, []byte(vectorPrefix+":"), func(key, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, ok := idFromKeySuffix(key)
			if !ok {
				return nil
			}
			stored, err := storage.UnmarshalVector(val)
			if err != nil {
				return err
			}
			// Calculate cosine similarity (dot product for normalized vectors)
			similarity := core.DotProduct(query, stored)
			neighbors = append(neighbors, storage.Neighbor{
				ID:       id,
				Distance: 1 - float64(similarity),
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(neighbors, func(a, b storage.Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

// IDs lists every item that has an embedding.
func (v *VectorIndex) IDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, []byte(vectorPrefix+":"), func(key []byte) error {
			if id, ok := idFromKeySuffix(key); ok {
				ids = append(ids, id)
			}
			return nil
		})
	}, false)
	return ids, err
}

func readDimension(tx *badger.Txn) (int, error) {
	entry, err := tx.Get([]byte(vectorDimensionKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var dim int
	err = entry.Value(func(val []byte) error {
		if len(val) != 4 {
			return storage.ErrTruncatedData
		}
		dim = int(binary.BigEndian.Uint32(val))
		return nil
	})
	return dim, err
}
