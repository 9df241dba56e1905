// Package chunk stores embedded chunk documents in a vector index and retrieves nearest chunks.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/audiosearch/internal/db"
	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// IndexConfig describes the vector field.
type IndexConfig struct {
	Dimensions     int
	Algorithm      db.VectorAlgorithm
	Distance       db.DistanceMetric
	M              int
	EFConstruction int
}

// Repo implements the index and retrieval collaborator over a Valkey/Redis store.
type Repo struct {
	store  store
	prefix string
	cfg    IndexConfig
}

// New creates a chunk repository. keyPrefix namespaces every key, e.g. "audiosearch:".
func New(s store, keyPrefix string, cfg IndexConfig) *Repo {
	if cfg.Algorithm == "" {
		cfg.Algorithm = db.VectorHNSW
	}
	if cfg.Distance == "" {
		cfg.Distance = db.DistanceCosine
	}
	return &Repo{store: s, prefix: keyPrefix, cfg: cfg}
}

// Metric returns the score key written on retrieved matches, e.g. "cosine".
func (r *Repo) Metric() string {
	return strings.ToLower(string(r.cfg.Distance))
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.prefix + "chunks:idx" }

func (r *Repo) chunkPrefix() string { return r.prefix + "chunk:" }
func (r *Repo) parentPrefix() string { return r.prefix + "parent:" }
func (r *Repo) chunkKey(id string) string { return r.chunkPrefix() + id }
func (r *Repo) parentKey(id string) string { return r.parentPrefix() + id }

// EnsureIndex creates the chunk index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}
	def, err := buildIndex(r.IndexName(), r.chunkPrefix(), r.cfg)
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// CheckIndex returns domain.ErrNotFound when the chunk index is missing.
func (r *Repo) CheckIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if !exists {
		return fmt.Errorf("index %s: %w", r.IndexName(), domain.ErrNotFound)
	}
	return nil
}

// Reset drops the index and deletes every chunk and parent record.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	for _, pattern := range []string{r.chunkPrefix() + "*", r.parentPrefix() + "*"} {
		keys, err := r.store.Scan(ctx, pattern)
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if err := r.store.Del(ctx, keys...); err != nil {
			return fmt.Errorf("delete %s: %w", pattern, err)
		}
	}
	return nil
}

// Upsert writes every chunk of parent plus a parent record. Chunks left over
// from a previous, longer version of the same parent are removed.
func (r *Repo) Upsert(ctx context.Context, parent *document.Document) error {
	if parent.ID == "" {
		return errors.New("parent id is required")
	}

	items := make([]db.HashSetItem, 0, len(parent.Chunks)+1)
	ids := make([]string, 0, len(parent.Chunks))
	for _, c := range parent.Chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s: %w: missing embedding", c.ID, domain.ErrEmbeddingFailed)
		}
		if err := domain.CheckDimensions(c.Embedding, r.cfg.Dimensions); err != nil {
			return fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		fields, err := chunkFields(c)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: r.chunkKey(c.ID), Fields: fields})
		ids = append(ids, c.ID)
	}

	previous, err := r.chunkIDs(ctx, parent.ID)
	if err != nil {
		return err
	}

	pf, err := parentFields(parent, ids)
	if err != nil {
		return err
	}
	items = append(items, db.HashSetItem{Key: r.parentKey(parent.ID), Fields: pf})

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store chunks of %s: %w", parent.ID, err)
	}

	current := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		current[id] = struct{}{}
	}
	var stale []string
	for _, id := range previous {
		if _, ok := current[id]; !ok {
			stale = append(stale, r.chunkKey(id))
		}
	}
	if err := r.store.Del(ctx, stale...); err != nil {
		return fmt.Errorf("delete stale chunks of %s: %w", parent.ID, err)
	}
	return nil
}

// Delete removes a parent and its chunks. Missing parents yield domain.ErrNotFound.
func (r *Repo) Delete(ctx context.Context, parentID string) error {
	rec, err := r.store.HGetAll(ctx, r.parentKey(parentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get parent %s: %w", parentID, err)
	}
	keys := []string{r.parentKey(parentID)}
	for _, id := range splitIDs(rec[fieldChunkIDs]) {
		keys = append(keys, r.chunkKey(id))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete parent %s: %w", parentID, err)
	}
	return nil
}

// Get returns the stored record of an indexed parent, without chunks.
func (r *Repo) Get(ctx context.Context, parentID string) (Parent, error) {
	rec, err := r.store.HGetAll(ctx, r.parentKey(parentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Parent{}, domain.ErrNotFound
		}
		return Parent{}, fmt.Errorf("get parent %s: %w", parentID, err)
	}
	return parseParent(parentID, rec)
}

// Count returns the number of indexed parents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.parentPrefix()+"*")
	if err != nil {
		return 0, fmt.Errorf("scan parents: %w", err)
	}
	return len(keys), nil
}

// Search returns the k chunks nearest to vector as match documents. Each match
// carries ParentID, URI, tags and Scores[Metric()] set to the raw distance.
// A non-empty excludeParent filters out chunks of that parent.
func (r *Repo) Search(ctx context.Context, vector []float32, k int, excludeParent string) ([]*document.Document, error) {
	if err := domain.CheckDimensions(vector, r.cfg.Dimensions); err != nil {
		return nil, err
	}
	q := &db.KNNQuery{
		IndexName:    r.IndexName(),
		VectorField:  fieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	}
	if excludeParent != "" {
		q.Filter = db.ExcludeTag(fieldParentID, excludeParent)
	}

	res, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	metric := r.Metric()
	out := make([]*document.Document, 0, len(res.Entries))
	for _, e := range res.Entries {
		m, err := matchFromFields(strings.TrimPrefix(e.Key, r.chunkPrefix()), e.Fields)
		if err != nil {
			return nil, fmt.Errorf("decode match %s: %w", e.Key, err)
		}
		m.SetScore(metric, e.Score)
		out = append(out, m)
	}
	return out, nil
}

func (r *Repo) chunkIDs(ctx context.Context, parentID string) ([]string, error) {
	rec, err := r.store.HGetAll(ctx, r.parentKey(parentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get parent %s: %w", parentID, err)
	}
	return splitIDs(rec[fieldChunkIDs]), nil
}

func buildIndex(name, prefix string, cfg IndexConfig) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(name).
		Prefix(prefix).
		Tag(fieldParentID).
		Numeric(fieldBegInMs).
		Numeric(fieldEndInMs).
		Vector(fieldVector, cfg.Dimensions, cfg.Algorithm, cfg.Distance, cfg.M, cfg.EFConstruction).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return def, nil
}
