// Package qdrantvec stores translation memory in a Qdrant collection.
package qdrantvec

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector"
)

const (
	DefaultCollection = "translation_memory"
	DefaultPort       = 6334

	fieldRecordID     = "record_id"
	fieldUsername     = "username"
	fieldSessionID    = "session_id"
	fieldPosition     = "position"
	fieldChunkText    = "chunk_text"
	fieldCreatedAt    = "created_at"
	fieldTranslations = "translations"
)

type Config struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"api_key"`
	UseTLS     bool   `json:"use_tls"`
	Collection string `json:"collection"`
}

// client is the subset of *qdrant.Client the driver needs.
type client interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

type Driver struct {
	client     client
	collection string
	dimension  int
	location   string
}

func init() {
	vector.Register("qdrant", func(args interface{}, dimension int) (vector.Driver, error) {
		cfg := Config{}
		if err := vector.DecodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		return New(context.Background(), cfg, dimension)
	})
}

func New(ctx context.Context, cfg Config, dimension int) (*Driver, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	location := "qdrant://" + cfg.Host + ":" + strconv.Itoa(cfg.Port) + "/" + cfg.Collection
	d, err := newDriver(ctx, c, cfg.Collection, dimension, location)
	if err != nil {
		c.Close()
		return nil, err
	}
	return d, nil
}

func newDriver(ctx context.Context, c client, collection string, dimension int, location string) (*Driver, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrant embedding dimension must be positive")
	}
	exists, err := c.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		if err := c.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Euclid,
			}),
		}); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", collection, err)
		}
		logutil.GetLogger(ctx).Info("qdrant collection created", zap.String("collection", collection), zap.Int("dimension", dimension))
	}
	return &Driver{client: c, collection: collection, dimension: dimension, location: location}, nil
}

// PointID maps a record id to a stable UUID, since Qdrant only accepts
// integers and UUIDs as point ids.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func usernameFilter(filter vector.Filter) *qdrant.Filter {
	if filter.Empty() {
		return nil
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(fieldUsername, filter.Username)}}
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
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		if err := d.checkDimension(rec.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(toPayload(rec.MemoryRecord)),
		})
	}
	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]model.MemoryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := d.checkDimension(embedding); err != nil {
		return nil, err
	}
	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         usernameFilter(filter),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	out := make([]model.MemoryMatch, 0, len(points))
	for _, p := range points {
		out = append(out, model.MemoryMatch{
			MemoryRecord: fromPayload(p.GetPayload()),
			// Euclid collections report the distance as the score.
			Distance: p.GetScore(),
		})
	}
	return out, nil
}

func (d *Driver) Delete(ctx context.Context, filter vector.Filter) (int, error) {
	f := usernameFilter(filter)
	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Filter:         f,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if f == nil {
		f = &qdrant.Filter{}
	}
	if _, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(f),
	}); err != nil {
		return 0, fmt.Errorf("delete points: %w", err)
	}
	return int(n), nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int(n), nil
}

func (d *Driver) Location() string {
	return d.location
}

func (d *Driver) Close() error {
	return d.client.Close()
}

func toPayload(rec model.MemoryRecord) map[string]any {
	translations := make(map[string]any, len(rec.Translations))
	for lang, text := range rec.Translations {
		translations[lang] = text
	}
	return map[string]any{
		fieldRecordID:     rec.ID,
		fieldUsername:     rec.Username,
		fieldSessionID:    rec.SessionID,
		fieldPosition:     int64(rec.Position),
		fieldChunkText:    rec.ChunkText,
		fieldCreatedAt:    rec.CreatedAt,
		fieldTranslations: translations,
	}
}

func fromPayload(payload map[string]*qdrant.Value) model.MemoryRecord {
	rec := model.MemoryRecord{
		ID:        payload[fieldRecordID].GetStringValue(),
		Username:  payload[fieldUsername].GetStringValue(),
		SessionID: payload[fieldSessionID].GetStringValue(),
		Position:  int(payload[fieldPosition].GetIntegerValue()),
		ChunkText: payload[fieldChunkText].GetStringValue(),
		CreatedAt: payload[fieldCreatedAt].GetIntegerValue(),
	}
	fields := payload[fieldTranslations].GetStructValue().GetFields()
	if len(fields) > 0 {
		rec.Translations = make(map[string]string, len(fields))
		for lang, v := range fields {
			rec.Translations[lang] = v.GetStringValue()
		}
	}
	return rec
}
