// Package store implements the transactional Memory record persistence
// contract over a hierarchical-key [kv.Store], defaulting to the
// BadgerDB-backed engine for a single-file, write-ahead-logged store with
// concurrent readers and serialized writers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/pkg/kv"
)

// ErrNotFound is returned when a requested record id does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the Memory record persistence contract.
type Store struct {
	kv kv.Store
}

// New wraps an already-open [kv.Store]. Callers are responsible for opening
// and closing the underlying engine (e.g. via [kv.NewBadger]).
func New(underlying kv.Store) *Store {
	return &Store{kv: underlying}
}

// Close releases the underlying engine.
func (s *Store) Close() error { return s.kv.Close() }

// indexEntries returns the secondary-index entries for m, written when a
// record is added or updated; indexKeys returns the same keys for removal.
func indexEntries(m *record.Memory) []kv.Entry {
	entries := []kv.Entry{
		{Key: levelIndexKey(m.CurrentLevel, m.ID), Value: []byte{}},
		{Key: createdIndexKey(m.Created.UnixNano(), m.ID), Value: []byte{}},
		{Key: scoreIndexKey(m.RetentionScore, m.ID), Value: []byte{}},
	}
	if m.ArchivedAt != nil {
		entries = append(entries, kv.Entry{Key: archivedIndexKey(m.ArchivedAt.UnixNano(), m.ID), Value: []byte{}})
	}
	return entries
}

func indexKeys(m *record.Memory) []kv.Key {
	keys := []kv.Key{
		levelIndexKey(m.CurrentLevel, m.ID),
		createdIndexKey(m.Created.UnixNano(), m.ID),
		scoreIndexKey(m.RetentionScore, m.ID),
	}
	if m.ArchivedAt != nil {
		keys = append(keys, archivedIndexKey(m.ArchivedAt.UnixNano(), m.ID))
	}
	return keys
}

// Add persists a brand-new record and its secondary indexes atomically.
func (s *Store) Add(ctx context.Context, m *record.Memory) error {
	data, err := marshalRecord(m)
	if err != nil {
		return err
	}
	entries := append([]kv.Entry{{Key: recordKey(m.ID), Value: data}}, indexEntries(m)...)
	return s.kv.BatchSet(ctx, entries)
}

// Get retrieves a single record by id.
func (s *Store) Get(ctx context.Context, id string) (*record.Memory, error) {
	data, err := s.kv.Get(ctx, recordKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return unmarshalRecord(data)
}

// GetAll returns every record. When includeArchived is false, archived
// (level 4) records are excluded.
func (s *Store) GetAll(ctx context.Context, includeArchived bool) ([]*record.Memory, error) {
	var out []*record.Memory
	for entry, err := range s.kv.List(ctx, recordPrefix()) {
		if err != nil {
			return nil, err
		}
		m, err := unmarshalRecord(entry.Value)
		if err != nil {
			return nil, err
		}
		if !includeArchived && m.IsArchived() {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetActive returns every non-archived record.
func (s *Store) GetActive(ctx context.Context) ([]*record.Memory, error) {
	all, err := s.GetAll(ctx, true)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if !m.IsArchived() {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetArchived returns every archived (level 4) record.
func (s *Store) GetArchived(ctx context.Context) ([]*record.Memory, error) {
	var out []*record.Memory
	for entry, err := range s.kv.List(ctx, archivedIndexPrefix()) {
		if err != nil {
			return nil, err
		}
		id := entry.Key[len(entry.Key)-1]
		m, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // index/record drift; tolerate on read
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetByLevel returns every record at the given level. When includeArchived
// is false and level == 4, the result is always empty (archived records are
// only reachable by explicitly requesting level 4 with includeArchived).
func (s *Store) GetByLevel(ctx context.Context, level int, includeArchived bool) ([]*record.Memory, error) {
	if level == 4 && !includeArchived {
		return nil, nil
	}
	var out []*record.Memory
	for entry, err := range s.kv.List(ctx, levelIndexPrefix(level)) {
		if err != nil {
			return nil, err
		}
		id := entry.Key[len(entry.Key)-1]
		m, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Update atomically replaces a record with newValue, rewriting its
// secondary indexes (removing stale entries for the old level/score/archived
// state and writing fresh ones). Returns [ErrNotFound] if id does not exist.
func (s *Store) Update(ctx context.Context, id string, newValue *record.Memory) error {
	old, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if newValue.ID != id {
		return fmt.Errorf("store: update id mismatch: %s != %s", newValue.ID, id)
	}

	data, err := marshalRecord(newValue)
	if err != nil {
		return err
	}

	oldKeys := indexKeys(old)
	newEntries := indexEntries(newValue)
	entries := append([]kv.Entry{{Key: recordKey(id), Value: data}}, newEntries...)

	// Stale index removal and the record/fresh-index write happen in one
	// engine transaction, so a reader never observes the old index row
	// gone without the new one in place (or vice versa).
	return s.kv.Mutate(ctx, entries, oldKeys)
}

// Delete removes a record and its secondary indexes.
func (s *Store) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	keys := append([]kv.Key{recordKey(id)}, indexKeys(m)...)
	return s.kv.BatchDelete(ctx, keys)
}

// MarkRecalled raises recalled_since_last_batch for every active (non-
// archived) record in ids. Archived records are silently skipped.
func (s *Store) MarkRecalled(ctx context.Context, ids []string) error {
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if m.IsArchived() {
			continue
		}
		m.RecalledSinceLastBatch = true
		if err := s.Update(ctx, id, m); err != nil {
			return err
		}
	}
	return nil
}

// CountByLevel returns the number of records at the given level.
func (s *Store) CountByLevel(ctx context.Context, level int) (int, error) {
	n := 0
	for _, err := range s.kv.List(ctx, levelIndexPrefix(level)) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// CountProtected returns the number of records with protected = true.
func (s *Store) CountProtected(ctx context.Context) (int, error) {
	all, err := s.GetAll(ctx, true)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range all {
		if m.Protected {
			n++
		}
	}
	return n, nil
}

// StateGet reads a state-slot value (e.g. last_compression_run). Returns
// ("", false, nil) if absent.
func (s *Store) StateGet(ctx context.Context, key string) (string, bool, error) {
	data, err := s.kv.Get(ctx, stateKey(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// StateSet writes a state-slot value.
func (s *Store) StateSet(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, stateKey(key), []byte(value))
}

// LastCompressionRun reads the last_compression_run state slot, parsed as
// RFC3339. Returns the zero Time and false if never set.
func (s *Store) LastCompressionRun(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := s.StateGet(ctx, "last_compression_run")
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: parse last_compression_run: %w", err)
	}
	return t, true, nil
}

// SetLastCompressionRun writes the last_compression_run state slot.
func (s *Store) SetLastCompressionRun(ctx context.Context, t time.Time) error {
	return s.StateSet(ctx, "last_compression_run", t.Format(time.RFC3339))
}
