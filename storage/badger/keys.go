package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/minutes/core"
)

// Key prefixes for different data types
const (
	itemPrefix         = "kitem"
	itemProjectPrefix  = "kitemp"
	itemSessionPrefix  = "kitems"
	itemPendingPrefix  = "kitemv"
	sessionPrefix      = "sesrec"
	sessionHashPrefix  = "sesrech"
	sessionSeq         = "sesrecseq"
	checkpointPrefix   = "chkpt"
	vectorPrefix       = "vecrec"
	vectorDimensionKey = "vecdim"
)

// makeItemKey generates a key for a knowledge item by ID.
func makeItemKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", itemPrefix, id))
}

// makeItemScanPrefix matches only primary item keys, not the index keys that
// share the "kitem" stem.
func makeItemScanPrefix() []byte {
	return []byte(itemPrefix + ":")
}

// makeScopedKey generates a composite key for a string-scoped index.
// Format: prefix:scope\x00id
func makeScopedKey(prefix, scope string, id core.ID) []byte {
	buf := makePartialScopedKey(prefix, scope)
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makePartialScopedKey generates the scan prefix of a string-scoped index.
// Format: prefix:scope\x00
func makePartialScopedKey(prefix, scope string) []byte {
	buf := make([]byte, 0, len(prefix)+len(scope)+10)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, scope...)
	return append(buf, 0)
}

// makePendingKey generates a key in the vector-pending index.
// Format: prefix:id
func makePendingKey(id core.ID) []byte {
	buf := []byte(itemPendingPrefix + ":")
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// idFromKeySuffix reads the BigEndian ID stored in the last 8 bytes of an index key.
func idFromKeySuffix(key []byte) (core.ID, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), true
}

// makeSessionKey generates a key for a session record by sequence number.
// BigEndian so the log iterates in append order.
func makeSessionKey(seq uint64) []byte {
	buf := []byte(sessionPrefix + ":")
	return binary.BigEndian.AppendUint64(buf, seq)
}

// makeSessionHashKey generates a key mapping a file hash to its latest sequence.
func makeSessionHashKey(fileHash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sessionHashPrefix, fileHash))
}

// makeCheckpointKey generates a key for session chunk checkpoints.
func makeCheckpointKey(sessionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, sessionID))
}

// makeVectorKey generates a key for an item embedding.
func makeVectorKey(id core.ID) []byte {
	buf := []byte(vectorPrefix + ":")
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}
