// Package chroma stores translation memory in a Chroma collection over its REST API.
package chroma

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/pkg/httpjson"
	"github.com/xxxsen/ratrans/internal/vector"
)

const (
	DefaultCollectionName = "translation_memory"

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

type Config struct {
	// URL is the Chroma server URL, e.g. http://localhost:8000.
	URL            string `json:"url"`
	CollectionName string `json:"collection"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	dimension      int
	httpClient     *http.Client
}

func init() {
	vector.Register("chroma", func(args interface{}, dimension int) (vector.Driver, error) {
		cfg := Config{}
		if err := vector.DecodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		return New(context.Background(), cfg, dimension)
	})
}

func New(ctx context.Context, c Config, dimension int) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("chroma embedding dimension must be positive")
	}
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}
	timeout := 60 * time.Second
	if c.TimeoutSeconds > 0 {
		timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	d := &Driver{
		baseURL:        strings.TrimSuffix(c.URL, "/"),
		collectionName: c.CollectionName,
		dimension:      dimension,
		httpClient:     &http.Client{Timeout: timeout},
	}

	var collection chromaCollection
	if err := httpjson.Post(ctx, d.httpClient, d.baseURL+collectionsPath, nil, chromaCreateRequest{
		Name:        c.CollectionName,
		GetOrCreate: true,
		Metadata:    map[string]any{"hnsw:space": "l2"},
	}, &collection); err != nil {
		return nil, fmt.Errorf("getting or creating collection %q: %w", c.CollectionName, err)
	}
	d.collectionID = collection.ID

	logutil.GetLogger(ctx).Info("connected to chroma",
		zap.String("url", d.baseURL),
		zap.String("collection", c.CollectionName),
		zap.String("collection_id", collection.ID),
	)
	return d, nil
}

func (d *Driver) endpoint(op string) string {
	return d.baseURL + collectionsPath + "/" + d.collectionID + "/" + op
}

func where(filter vector.Filter) map[string]any {
	if filter.Empty() {
		return nil
	}
	return map[string]any{"username": filter.Username}
}

func (d *Driver) checkDimension(v []float32) error {
	if len(v) != d.dimension {
		return fmt.Errorf("embedding dimension %d, want %d: %w", len(v), d.dimension, appErr.ErrInvalid)
	}
	return nil
}

func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	req := chromaUpsertRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
		Documents:  make([]string, len(records)),
	}
	for i, rec := range records {
		if err := d.checkDimension(rec.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		translations, err := vector.EncodeTranslations(rec.Translations)
		if err != nil {
			return fmt.Errorf("encoding translations for %s: %w", rec.ID, err)
		}
		req.IDs[i] = rec.ID
		req.Embeddings[i] = rec.Embedding
		req.Documents[i] = rec.ChunkText
		// metadata values must be scalars, so translations travel as JSON text
		req.Metadatas[i] = map[string]any{
			"username":     rec.Username,
			"session_id":   rec.SessionID,
			"position":     rec.Position,
			"created_at":   rec.CreatedAt,
			"translations": translations,
		}
	}
	if err := httpjson.Post(ctx, d.httpClient, d.endpoint("upsert"), nil, req, nil); err != nil {
		return fmt.Errorf("upserting records: %w", err)
	}
	logutil.GetLogger(ctx).Debug("upserted records into chroma", zap.Int("count", len(records)))
	return nil
}

func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]model.MemoryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := d.checkDimension(embedding); err != nil {
		return nil, err
	}
	var resp chromaQueryResponse
	if err := httpjson.Post(ctx, d.httpClient, d.endpoint("query"), nil, chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Where:           where(filter),
		Include:         []string{"metadatas", "documents", "distances"},
	}, &resp); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	out := make([]model.MemoryMatch, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		m := model.MemoryMatch{MemoryRecord: model.MemoryRecord{ID: id}}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			applyMetadata(&m.MemoryRecord, resp.Metadatas[0][i])
		}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			m.ChunkText = resp.Documents[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			// chroma reports squared L2
			m.Distance = float32(math.Sqrt(float64(max(resp.Distances[0][i], 0))))
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *Driver) ids(ctx context.Context, filter vector.Filter) ([]string, error) {
	var resp chromaGetResponse
	if err := httpjson.Post(ctx, d.httpClient, d.endpoint("get"), nil, chromaGetRequest{
		Where:   where(filter),
		Include: []string{},
	}, &resp); err != nil {
		return nil, fmt.Errorf("listing record ids: %w", err)
	}
	return resp.IDs, nil
}

func (d *Driver) Delete(ctx context.Context, filter vector.Filter) (int, error) {
	ids, err := d.ids(ctx, filter)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := httpjson.Post(ctx, d.httpClient, d.endpoint("delete"), nil, chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	logutil.GetLogger(ctx).Debug("deleted records from chroma", zap.Int("count", len(ids)))
	return len(ids), nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := httpjson.Get(ctx, d.httpClient, d.endpoint("count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (d *Driver) Location() string {
	return d.baseURL + "/" + d.collectionName
}

func (d *Driver) Close() error {
	return nil
}

func applyMetadata(rec *model.MemoryRecord, md map[string]any) {
	if md == nil {
		return
	}
	rec.Username, _ = md["username"].(string)
	rec.SessionID, _ = md["session_id"].(string)
	if v, ok := md["position"].(float64); ok {
		rec.Position = int(v)
	}
	if v, ok := md["created_at"].(float64); ok {
		rec.CreatedAt = int64(v)
	}
	if v, ok := md["translations"].(string); ok {
		rec.Translations = vector.DecodeTranslations(v)
	}
}
