// Package inmemory is a brute-force vector driver kept in process memory.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xxxsen/ratrans/internal/model"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
	"github.com/xxxsen/ratrans/internal/vector"
)

func init() {
	vector.Register("inmemory", func(args interface{}, dimension int) (vector.Driver, error) {
		return New(dimension), nil
	})
}

type Driver struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	records   map[string]vector.Record
}

func New(dimension int) *Driver {
	return &Driver{dimension: dimension, records: map[string]vector.Record{}}
}

func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rec := range records {
		if d.dimension > 0 && len(rec.Embedding) != d.dimension {
			return fmt.Errorf("record %s has dimension %d, want %d: %w", rec.ID, len(rec.Embedding), d.dimension, appErr.ErrInvalid)
		}
		if _, ok := d.records[rec.ID]; !ok {
			d.order = append(d.order, rec.ID)
		}
		d.records[rec.ID] = cloneRecord(rec)
	}
	return nil
}

func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]model.MemoryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if d.dimension > 0 && len(embedding) != d.dimension {
		return nil, fmt.Errorf("query dimension %d, want %d: %w", len(embedding), d.dimension, appErr.ErrInvalid)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	matches := make([]model.MemoryMatch, 0, len(d.records))
	for _, id := range d.order {
		rec := d.records[id]
		if !filter.Empty() && rec.Username != filter.Username {
			continue
		}
		matches = append(matches, model.MemoryMatch{
			MemoryRecord: cloneRecord(rec).MemoryRecord,
			Distance:     vector.L2(embedding, rec.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (d *Driver) Delete(ctx context.Context, filter vector.Filter) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.order[:0]
	removed := 0
	for _, id := range d.order {
		if filter.Empty() || d.records[id].Username == filter.Username {
			delete(d.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	d.order = kept
	return removed, nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records), nil
}

func (d *Driver) Location() string {
	return "memory"
}

func (d *Driver) Close() error {
	return nil
}

func cloneRecord(rec vector.Record) vector.Record {
	out := rec
	out.Embedding = append([]float32(nil), rec.Embedding...)
	if rec.Translations != nil {
		out.Translations = make(map[string]string, len(rec.Translations))
		for k, v := range rec.Translations {
			out.Translations[k] = v
		}
	}
	return out
}
