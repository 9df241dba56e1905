package health

import "context"

// DBPinger is satisfied by the Valkey/Redis store.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports whether the chunk vector index is present.
type IndexChecker interface {
	CheckIndex(ctx context.Context) error
}

// EmbeddingChecker probes the log-mel embedder (or the cache in front of it).
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
