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


package storage

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/minutes/core"
)

// Record layout version written as the first varint of every value.
const formatVersion = 1

type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

type encoder struct {
	buf []byte
}

func put[T any](e *encoder, s serializer[T], v T) {
	off := len(e.buf)
	e.buf = append(e.buf, make([]byte, s.Size(v))...)
	s.Marshal(v, e.buf[off:])
}

func (e *encoder) putUint(v uint64) { put[uint64](e, varint.Uint64, v) }
func (e *encoder) putInt(v int) { put[int64](e, varint.Int64, int64(v)) }
func (e *encoder) putString(v string) { put[string](e, ord.String, v) }
func (e *encoder) putBool(v bool) { put[bool](e, ord.Bool, v) }
func (e *encoder) putFloat32(v float32) { put[uint32](e, varint.Uint32, math.Float32bits(v)) }
func (e *encoder) putTime(v time.Time) {
	if v.IsZero() {
		e.putInt(0)
		return
	}
	put[int64](e, varint.Int64, v.UnixNano())
}

// putMap writes a map with its keys in sorted order so equal maps encode identically.
func (e *encoder) putMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	e.putUint(uint64(len(keys)))
	for _, k := range keys {
		e.putString(k)
		e.putString(m[k])
	}
}

type decoder struct {
	bs  []byte
	n   int
	err error
}

func get[T any](d *decoder, s serializer[T]) T {
	var zero T
	if d.err != nil {
		return zero
	}
	if d.n >= len(d.bs) {
		d.err = ErrTruncatedData
		return zero
	}
	v, n, err := s.Unmarshal(d.bs[d.n:])
	if err != nil {
		d.err = err
		return zero
	}
	d.n += n
	return v
}

func (d *decoder) readUint() uint64 { return get[uint64](d, varint.Uint64) }
func (d *decoder) readInt() int { return int(get[int64](d, varint.Int64)) }
func (d *decoder) readString() string { return get[string](d, ord.String) }
func (d *decoder) readBool() bool { return get[bool](d, ord.Bool) }
func (d *decoder) readFloat32() float32 { return math.Float32frombits(get[uint32](d, varint.Uint32)) }
func (d *decoder) readTime() time.Time {
	ns := get[int64](d, varint.Int64)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (d *decoder) readMap() map[string]string {
	count := d.readUint()
	if d.err != nil {
		return nil
	}
	if count > uint64(len(d.bs)) {
		d.err = ErrTruncatedData
		return nil
	}
	m := make(map[string]string, count)
	for i := uint64(0); i < count && d.err == nil; i++ {
		k := d.readString()
		m[k] = d.readString()
	}
	return m
}

func (d *decoder) header() {
	if v := d.readUint(); d.err == nil && v != formatVersion {
		d.err = fmt.Errorf("unsupported format version %d", v)
	}
}

func (d *decoder) finish() error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := &decoder{bs: data}
	id := d.readUint()
	return core.ID(id), d.finish()
}

// MarshalKnowledgeItem serializes a KnowledgeItem to bytes.
func MarshalKnowledgeItem(item *core.KnowledgeItem) []byte {
	e := &encoder{buf: make([]byte, 0, 64+len(item.Text))}
	e.putUint(formatVersion)
	e.putUint(uint64(item.Id))
	e.putInt(int(item.Category))
	e.putString(item.Text)
	e.putMap(item.Metadata)
	e.putInt(item.OccurrenceCount)
	e.putInt(item.FirstSeenChunk)
	e.putString(item.SessionID)
	e.putString(item.Project)
	e.putBool(item.VectorPending)
	e.putString(item.EmbeddingModel)
	e.putTime(item.CreatedAt)
	e.putTime(item.UpdatedAt)
	return e.buf
}

// UnmarshalKnowledgeItem deserializes a KnowledgeItem from bytes.
func UnmarshalKnowledgeItem(data []byte) (*core.KnowledgeItem, error) {
	d := &decoder{bs: data}
	d.header()
	item := &core.KnowledgeItem{
		Id:              core.ID(d.readUint()),
		Category:        core.Category(d.readInt()),
		Text:            d.readString(),
		Metadata:        d.readMap(),
		OccurrenceCount: d.readInt(),
		FirstSeenChunk:  d.readInt(),
		SessionID:       d.readString(),
		Project:         d.readString(),
		VectorPending:   d.readBool(),
		EmbeddingModel:  d.readString(),
		CreatedAt:       d.readTime(),
		UpdatedAt:       d.readTime(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return item, nil
}

// MarshalSessionRecord serializes a SessionRecord to bytes.
func MarshalSessionRecord(rec *core.SessionRecord) []byte {
	e := &encoder{}
	e.putUint(formatVersion)
	e.putUint(rec.Seq)
	e.putString(rec.SessionID)
	e.putString(rec.Project)
	e.putString(rec.FileHash)
	e.putTime(rec.ProcessedAt)
	e.putInt(rec.ItemCount)
	e.putInt(rec.DroppedCount)
	e.putInt(rec.FailedChunks)
	return e.buf
}

// UnmarshalSessionRecord deserializes a SessionRecord from bytes.
func UnmarshalSessionRecord(data []byte) (*core.SessionRecord, error) {
	d := &decoder{bs: data}
	d.header()
	rec := &core.SessionRecord{
		Seq:          d.readUint(),
		SessionID:    d.readString(),
		Project:      d.readString(),
		FileHash:     d.readString(),
		ProcessedAt:  d.readTime(),
		ItemCount:    d.readInt(),
		DroppedCount: d.readInt(),
		FailedChunks: d.readInt(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarshalChunkCheckpoint serializes a ChunkCheckpoint to bytes.
func MarshalChunkCheckpoint(checkpoint *core.ChunkCheckpoint) []byte {
	e := &encoder{}
	e.putUint(formatVersion)
	e.putString(checkpoint.SessionID)
	e.putString(checkpoint.FileHash)
	e.putInt(checkpoint.LastChunk)
	e.putTime(checkpoint.UpdatedAt)
	return e.buf
}

// UnmarshalChunkCheckpoint deserializes a ChunkCheckpoint from bytes.
func UnmarshalChunkCheckpoint(data []byte) (*core.ChunkCheckpoint, error) {
	d := &decoder{bs: data}
	d.header()
	checkpoint := &core.ChunkCheckpoint{
		SessionID: d.readString(),
		FileHash:  d.readString(),
		LastChunk: d.readInt(),
		UpdatedAt: d.readTime(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// MarshalVector serializes an embedding to bytes.
func MarshalVector(vector []float32) []byte {
	e := &encoder{buf: make([]byte, 0, 1+len(vector)*5)}
	e.putUint(uint64(len(vector)))
	for _, v := range vector {
		e.putFloat32(v)
	}
	return e.buf
}

// UnmarshalVector deserializes an embedding from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	d := &decoder{bs: data}
	count := d.readUint()
	if d.err == nil && count > uint64(len(data)) {
		d.err = ErrTruncatedData
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	vector := make([]float32, count)
	for i := range vector {
		vector[i] = d.readFloat32()
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return vector, nil
}
