// Package qdrant implements storage.VectorIndex on a remote Qdrant collection.
//
// Item IDs map directly onto numeric point IDs. The collection is created
// lazily with cosine distance on the first insert, sized to that vector.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/qdrant/go-client/qdrant"
)

const (
	defaultGRPCPort = 6334
	scrollPageSize  = 256
)

// Option configures an Index.
type Option func(*Index)

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(i *Index) {
		i.apiKey = key
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		i.logger = logger
	}
}

// Index implements storage.VectorIndex.
type Index struct {
	client     *qdrant.Client
	collection string
	apiKey     string
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
}

var _ storage.VectorIndex = (*Index)(nil)

// Endpoint is a parsed Qdrant address.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool
}

// ParseURL converts a Qdrant URL into a gRPC endpoint.
// "grpc://host:port" is used as given. For http(s) URLs the gRPC port is
// derived as the HTTP port plus one (6333 becomes 6334).
func ParseURL(rawURL string) (Endpoint, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid Qdrant URL: %w", err)
	}
	ep := Endpoint{
		Host:   parsed.Hostname(),
		Port:   defaultGRPCPort,
		UseTLS: parsed.Scheme == "https",
	}
	if ep.Host == "" {
		ep.Host = "localhost"
	}
	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid Qdrant port %q: %w", p, err)
		}
		if parsed.Scheme == "grpc" {
			ep.Port = port
		} else {
			ep.Port = port + 1
		}
	}
	return ep, nil
}

// Open connects to Qdrant and binds the index to a collection.
// No request is made until the index is used.
func Open(rawURL, collection string, opts ...Option) (*Index, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	idx := &Index{
		collection: collection,
		logger:     slog.Default().With("component", "qdrant"),
	}
	for _, opt := range opts {
		opt(idx)
	}

	ep, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	// Keep Open free of network calls; Ping reports reachability.
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   ep.Host,
		Port:                   ep.Port,
		APIKey:                 idx.apiKey,
		UseTLS:                 ep.UseTLS,
		PoolSize:               1,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	idx.client = client
	return idx, nil
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	return i.client.Close()
}

// Ping reports whether the Qdrant server answers health checks.
func (i *Index) Ping(ctx context.Context) error {
	if _, err := i.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// ensureCollection creates the collection on first use and caches its dimension.
func (i *Index) ensureCollection(ctx context.Context, dimension int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dimension != 0 {
		if i.dimension != dimension {
			return fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, dimension, i.dimension)
		}
		return nil
	}

	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	if exists {
		info, err := i.client.GetCollectionInfo(ctx, i.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}
		actual := collectionDimension(info)
		if actual != 0 && actual != dimension {
			return fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, dimension, actual)
		}
		i.dimension = dimension
		return nil
	}

	i.logger.Info("creating collection", "collection", i.collection, "vector_size", dimension)
	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	i.dimension = dimension
	return nil
}

func collectionDimension(info *qdrant.CollectionInfo) int {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	vectorsConfig := info.Config.Params.GetVectorsConfig()
	if vectorsConfig == nil || vectorsConfig.GetParams() == nil {
		return 0
	}
	return int(vectorsConfig.GetParams().Size)
}

// InsertVector upserts the embedding of an item.
func (i *Index) InsertVector(ctx context.Context, id core.ID, vector []float32) error {
	if len(vector) == 0 {
		return storage.ErrEmptyVector
	}
	if err := i.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(id)),
				Vectors: qdrant.NewVectors(vector...),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Delete removes embeddings. Missing IDs are ignored.
func (i *Index) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	if !exists {
		return nil
	}
	_, err = i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Nearest returns up to limit neighbors ordered by ascending cosine distance.
func (i *Index) Nearest(ctx context.Context, vector []float32, limit int) ([]storage.Neighbor, error) {
	if len(vector) == 0 {
		return nil, storage.ErrEmptyVector
	}
	if limit <= 0 {
		return nil, nil
	}
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	if !exists {
		return nil, nil
	}

	l := uint64(limit)
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &l,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	neighbors := make([]storage.Neighbor, 0, len(points))
	for _, p := range points {
		if p.GetId() == nil {
			continue
		}
		neighbors = append(neighbors, storage.Neighbor{
			ID:       core.ID(p.GetId().GetNum()),
			Distance: 1 - float64(p.GetScore()),
		})
	}
	return neighbors, nil
}

// IDs lists every point in the collection by paging through it in ID order.
func (i *Index) IDs(ctx context.Context) ([]core.ID, error) {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	if !exists {
		return nil, nil
	}

	var ids []core.ID
	var offset *qdrant.PointId
	for {
		page, err := i.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: i.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		for _, p := range page {
			ids = append(ids, core.ID(p.GetId().GetNum()))
		}
		if len(page) < scrollPageSize {
			return ids, nil
		}
		// Offsets are inclusive
		last := page[len(page)-1].GetId().GetNum()
		if last == ^uint64(0) {
			return ids, nil
		}
		offset = qdrant.NewIDNum(last + 1)
	}
}

func pointIDs(ids []core.ID) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qdrant.NewIDNum(uint64(id)))
	}
	return out
}
