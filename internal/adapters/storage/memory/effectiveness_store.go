package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// EffectivenessStore holds the global per-intervention aggregate.
type EffectivenessStore struct {
	mu      sync.RWMutex
	records map[domain.InterventionKey]domain.EffectivenessRecord
}

func NewEffectivenessStore() *EffectivenessStore {
	return &EffectivenessStore{
		records: make(map[domain.InterventionKey]domain.EffectivenessRecord),
	}
}

func (s *EffectivenessStore) GlobalEffectiveness(_ context.Context) (map[domain.InterventionKey]domain.EffectivenessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.InterventionKey]domain.EffectivenessRecord, len(s.records))
	for k, r := range s.records {
		r.Recent = append([]domain.Outcome(nil), r.Recent...)
		out[k] = r
	}
	return out, nil
}

func (s *EffectivenessStore) AddGlobalOutcome(_ context.Context, key domain.InterventionKey, o domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = domain.EffectivenessRecord{Key: key}
	}
	s.records[key] = rec.Apply(o)
	return nil
}

// All returns a copy of every record, for snapshots.
func (s *EffectivenessStore) All() map[domain.InterventionKey]domain.EffectivenessRecord {
	out, _ := s.GlobalEffectiveness(context.Background())
	return out
}

// Replace swaps the whole record set, as when restoring a snapshot.
func (s *EffectivenessStore) Replace(records map[domain.InterventionKey]domain.EffectivenessRecord) {
	next := make(map[domain.InterventionKey]domain.EffectivenessRecord, len(records))
	for k, r := range records {
		next[k] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = next
}
