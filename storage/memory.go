package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store implementation for tests and the
// "memory" storage driver. Records are kept JSON-normalized so values
// read back with the same types the Postgres implementation produces.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[Key]Record
}

// NewMemory constructs an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[Key]Record)}
}

func (s *MemoryStore) table(name string) (map[Key]Record, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, wrapErr(name, "table", fmt.Errorf("table does not exist"))
	}
	return t, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, table string, key Key) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	rec, ok := t[key]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(rec)
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, table string, key Key, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return err
	}
	copied, err := deepCopy(rec)
	if err != nil {
		return wrapErr(table, "put", err)
	}
	t[key] = copied
	return nil
}

// Scan implements Store. Records come back in sorted key order, which
// keeps pagination deterministic in tests.
func (s *MemoryStore) Scan(_ context.Context, table string, filter *Filter, projection []string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var out []Record
	for _, k := range keys {
		rec := t[Key(k)]
		if !matches(rec, filter) {
			continue
		}
		copied, err := deepCopy(rec)
		if err != nil {
			return nil, wrapErr(table, "scan", err)
		}
		out = append(out, project(copied, projection))
	}
	return out, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, table string, key Key, ops []FieldOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return err
	}
	rec, ok := t[key]
	if !ok {
		return ErrNotFound
	}
	for _, op := range ops {
		segments := SplitPath(op.Path)
		switch op.Kind {
		case OpSet:
			val, err := deepCopyValue(op.Value)
			if err != nil {
				return wrapErr(table, "update", err)
			}
			setPath(rec, segments, val)
		case OpRemove:
			removePath(rec, segments)
		default:
			return wrapErr(table, "update", fmt.Errorf("unknown field op %d", op.Kind))
		}
	}
	return nil
}

// EnsureTable implements Store.
func (s *MemoryStore) EnsureTable(_ context.Context, table string) error {
	if !validTableName(table) {
		return wrapErr(table, "ensure_table", fmt.Errorf("invalid table name %q", table))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = make(map[Key]Record)
	}
	return nil
}

func matches(rec Record, filter *Filter) bool {
	if filter == nil || filter.Field == "" || len(filter.Values) == 0 {
		return true
	}
	have, ok := rec[filter.Field]
	if !ok {
		return false
	}
	for _, want := range filter.Values {
		if stringify(have) == stringify(want) {
			return true
		}
	}
	return false
}

func setPath(rec map[string]any, segments []string, value any) {
	cur := rec
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
}

func removePath(rec map[string]any, segments []string) {
	cur := rec
	for i, seg := range segments {
		if i == len(segments)-1 {
			delete(cur, seg)
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
}

func deepCopy(rec Record) (Record, error) {
	v, err := deepCopyValue(rec)
	if err != nil {
		return nil, err
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record is not an object")
	}
	return out, nil
}

// deepCopyValue round-trips through JSON, both isolating the caller's
// value and normalizing types to what a real store would return.
func deepCopyValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
