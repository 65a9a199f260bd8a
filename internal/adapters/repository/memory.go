package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/pkg/metrics"
)

const driverMemory = "memory"

// MemoryStore keeps records in a map guarded by a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.PropertyRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*model.PropertyRecord)}
}

// LoadFile upserts the JSON array of records at path.
func (s *MemoryStore) LoadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "memory: read seed file %s", path)
	}
	var recs []*model.PropertyRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return 0, eris.Wrapf(err, "memory: decode seed file %s", path)
	}
	return s.Upsert(ctx, recs...)
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.PropertyRecord, error) {
	defer observe(driverMemory, "get", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("memory: get %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Candidates(ctx context.Context, target *model.PropertyRecord, limit, minSameCounty int) ([]*model.PropertyRecord, error) {
	defer observe(driverMemory, "candidates", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	return selectCandidates(ctx, limit, minSameCounty, func(_ context.Context, same bool, n int) ([]*model.PropertyRecord, error) {
		return s.collect(n, func(r *model.PropertyRecord) bool {
			return r.ID != target.ID &&
				r.BuildingArea > 0 &&
				strings.EqualFold(r.CountyID, target.CountyID) == same
		}), nil
	})
}

func (s *MemoryStore) Search(_ context.Context, f Filter) ([]*model.PropertyRecord, error) {
	defer observe(driverMemory, "search", time.Now())
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(f.EffectiveLimit(), f.Match), nil
}

func (s *MemoryStore) CountByCounty(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int)
	for _, r := range s.records {
		out[strings.ToLower(r.CountyID)]++
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, recs ...*model.PropertyRecord) (int, error) {
	defer observe(driverMemory, "upsert", time.Now())
	for _, r := range recs {
		if err := ValidateRecord(r); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		s.records[r.ID] = r.Clone()
	}
	metrics.UpdateStoreRecords(len(s.records))
	return len(recs), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Close() error { return nil }

// collect returns up to limit matching records ordered by id.
func (s *MemoryStore) collect(limit int, match func(*model.PropertyRecord) bool) []*model.PropertyRecord {
	ids := make([]string, 0, len(s.records))
	for id, r := range s.records {
		if match(r) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*model.PropertyRecord, len(ids))
	for i, id := range ids {
		out[i] = s.records[id].Clone()
	}
	return out
}

func observe(driver, op string, start time.Time) {
	metrics.RecordStoreQuery(driver, op, float64(time.Since(start).Microseconds())/1000)
}
