package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// ItemRepository implements storage.ItemRepository for BadgerDB.
//
// Besides the primary record, three secondary indices are maintained:
// items by project, items by first-seen session, and vector-pending items.
type ItemRepository struct {
	backend *Backend
}

var _ storage.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(backend *Backend) *ItemRepository {
	return &ItemRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *ItemRepository) Close() error {
	return nil
}

// PutItems inserts or replaces items by ID.
func (r *ItemRepository) PutItems(ctx context.Context, items ...*core.KnowledgeItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, item := range items {
			if err := core.ValidateKnowledgeItem(item); err != nil {
				return err
			}
			key := makeItemKey(item.Id)

			old, err := readItem(tx, key)
			if err != nil {
				return err
			}
			if old != nil {
				if err := deleteItemIndices(tx, old); err != nil {
					return err
				}
				if item.CreatedAt.IsZero() {
					item.CreatedAt = old.CreatedAt
				}
			}
			if item.CreatedAt.IsZero() {
				item.CreatedAt = now
			}
			item.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalKnowledgeItem(item)); err != nil {
				return err
			}
			if err := setItemIndices(tx, item); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetItem retrieves a single item by ID.
func (r *ItemRepository) GetItem(ctx context.Context, id core.ID) (*core.KnowledgeItem, error) {
	var item *core.KnowledgeItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		item, err = readItem(tx, makeItemKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, storage.ErrNotFound
	}
	return item, nil
}

// GetItems retrieves multiple items by their IDs.
func (r *ItemRepository) GetItems(ctx context.Context, ids ...core.ID) ([]*core.KnowledgeItem, error) {
	items := make([]*core.KnowledgeItem, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item != nil {
				items = append(items, item)
			}
		}
		return nil
	}, false)
	return items, err
}

// DeleteItems removes items and their secondary indices.
func (r *ItemRepository) DeleteItems(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeItemKey(id)
			old, err := readItem(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				continue
			}
			if err := deleteItemIndices(tx, old); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ItemsByProject returns every item of a project ordered by ID.
func (r *ItemRepository) ItemsByProject(ctx context.Context, project string) ([]*core.KnowledgeItem, error) {
	return r.itemsByIndex(ctx, makePartialScopedKey(itemProjectPrefix, project))
}

// ItemsBySession returns the items first seen in a session ordered by ID.
func (r *ItemRepository) ItemsBySession(ctx context.Context, sessionID string) ([]*core.KnowledgeItem, error) {
	return r.itemsByIndex(ctx, makePartialScopedKey(itemSessionPrefix, sessionID))
}

// PendingItems returns the items still waiting for an embedding.
func (r *ItemRepository) PendingItems(ctx context.Context) ([]*core.KnowledgeItem, error) {
	return r.itemsByIndex(ctx, []byte(itemPendingPrefix+":"))
}

// ForEachItem calls fn for every stored item.
func (r *ItemRepository) ForEachItem(ctx context.Context, fn func(*core.KnowledgeItem) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeItemScanPrefix(), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := storage.UnmarshalKnowledgeItem(val)
			if err != nil {
				return err
			}
			return fn(item)
		})
	}, false)
}

// CountByCategory counts items per category.
func (r *ItemRepository) CountByCategory(ctx context.Context, project string) (map[core.Category]int, error) {
	counts := make(map[core.Category]int)
	err := r.ForEachItem(ctx, func(item *core.KnowledgeItem) error {
		if project == "" || item.Project == project {
			counts[item.Category]++
		}
		return nil
	})
	return counts, err
}

func (r *ItemRepository) itemsByIndex(ctx context.Context, prefix []byte) ([]*core.KnowledgeItem, error) {
	var items []*core.KnowledgeItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, prefix, func(key []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, ok := idFromKeySuffix(key)
			if !ok {
				return nil
			}
			item, err := readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item != nil {
				items = append(items, item)
			}
			return nil
		})
	}, false)
	return items, err
}

// readItem reads a knowledge item within a transaction.
// Returns nil, nil if the key does not exist.
func readItem(tx *badger.Txn, key []byte) (*core.KnowledgeItem, error) {
	entry, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var item *core.KnowledgeItem
	err = entry.Value(func(val []byte) error {
		var unmarshalErr error
		item, unmarshalErr = storage.UnmarshalKnowledgeItem(val)
		return unmarshalErr
	})
	return item, err
}

func setItemIndices(tx *badger.Txn, item *core.KnowledgeItem) error {
	id := storage.MarshalID(item.Id)
	if err := tx.Set(makeScopedKey(itemProjectPrefix, item.Project, item.Id), id); err != nil {
		return err
	}
	if err := tx.Set(makeScopedKey(itemSessionPrefix, item.SessionID, item.Id), id); err != nil {
		return err
	}
	if item.VectorPending {
		return tx.Set(makePendingKey(item.Id), id)
	}
	return nil
}

func deleteItemIndices(tx *badger.Txn, item *core.KnowledgeItem) error {
	keys := [][]byte{
		makeScopedKey(itemProjectPrefix, item.Project, item.Id),
		makeScopedKey(itemSessionPrefix, item.SessionID, item.Id),
		makePendingKey(item.Id),
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
