package chunk

import (
	"context"
	"path"
	"sort"

	"github.com/kailas-cloud/audiosearch/internal/db"
)

// memStore is an in-memory implementation of the consumer interface.
type memStore struct {
	hashes  map[string]map[string]string
	indexes map[string]*db.IndexDefinition

	createErr error
	dropErr   error
	searchFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	lastQuery *db.KNNQuery
	deleted   []string
}

func newMemStore() *memStore {
	return &memStore{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (m *memStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		h, ok := m.hashes[it.Key]
		if !ok {
			h = make(map[string]string)
			m.hashes[it.Key] = h
		}
		for k, v := range it.Fields {
			h[k] = v
		}
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	h, ok := m.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return h, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.hashes, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var out []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.indexes[def.Name] = def
	return nil
}

func (m *memStore) DropIndex(_ context.Context, name string) error {
	if m.dropErr != nil {
		return m.dropErr
	}
	if _, ok := m.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(m.indexes, name)
	return nil
}

func (m *memStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *memStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastQuery = q
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}
