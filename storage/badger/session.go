package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// SessionLog implements storage.SessionLog for BadgerDB.
// Records are keyed by a monotonically increasing sequence and never rewritten.
type SessionLog struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.SessionLog = (*SessionLog)(nil)

// NewSessionLog creates a new SessionLog.
func NewSessionLog(backend *Backend) (*SessionLog, error) {
	seq, err := backend.GetSequence(sessionSeq)
	if err != nil {
		return nil, err
	}

	return &SessionLog{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence.
func (l *SessionLog) Close() error {
	return l.seq.Release()
}

// Append adds a record to the log and assigns its sequence number.
func (l *SessionLog) Append(ctx context.Context, rec *core.SessionRecord) (*core.SessionRecord, error) {
	if err := core.ValidateSessionRecord(rec); err != nil {
		return nil, err
	}
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		next, err := l.seq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if next == 0 {
			if next, err = l.seq.Next(); err != nil {
				return err
			}
		}
		rec.Seq = next
		if rec.ProcessedAt.IsZero() {
			rec.ProcessedAt = time.Now().UTC()
		}

		if err := tx.Set(makeSessionKey(rec.Seq), storage.MarshalSessionRecord(rec)); err != nil {
			return err
		}
		seqBytes := binary.BigEndian.AppendUint64(nil, rec.Seq)
		if err := tx.Set(makeSessionHashKey(rec.FileHash), seqBytes); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByHash returns the latest record for a file hash.
// Returns nil, nil if the hash was never processed.
func (l *SessionLog) FindByHash(ctx context.Context, fileHash string) (*core.SessionRecord, error) {
	var rec *core.SessionRecord
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		entry, err := tx.Get(makeSessionHashKey(fileHash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		var seq uint64
		err = entry.Value(func(val []byte) error {
			if len(val) != 8 {
				return storage.ErrTruncatedData
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return err
		}
		rec, err = readSessionRecord(tx, makeSessionKey(seq))
		return err
	}, false)
	return rec, err
}

// List returns matching records in append order.
func (l *SessionLog) List(ctx context.Context, filter storage.SessionFilter) ([]*core.SessionRecord, error) {
	var records []*core.SessionRecord
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(sessionPrefix+":"), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := storage.UnmarshalSessionRecord(val)
			if err != nil {
				return err
			}
			if matchesSessionFilter(rec, filter) {
				records = append(records, rec)
			}
			return nil
		})
	}, false)
	return records, err
}

func matchesSessionFilter(rec *core.SessionRecord, filter storage.SessionFilter) bool {
	if filter.Project != "" && rec.Project != filter.Project {
		return false
	}
	if !filter.Since.IsZero() && rec.ProcessedAt.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && !rec.ProcessedAt.Before(filter.Until) {
		return false
	}
	return true
}

func readSessionRecord(tx *badger.Txn, key []byte) (*core.SessionRecord, error) {
	entry, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec *core.SessionRecord
	err = entry.Value(func(val []byte) error {
		var unmarshalErr error
		rec, unmarshalErr = storage.UnmarshalSessionRecord(val)
		return unmarshalErr
	})
	return rec, err
}
