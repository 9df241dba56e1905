package redis

import (
	"context"

	"github.com/kailas-cloud/audiosearch/internal/db"
)

// CreateIndex creates an FT index over hashes.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := def.CreateArgs()
	if err != nil {
		return err
	}
	if err := s.do(ctx, s.b().Arbitrary(db.OpCreateIndex).Args(args...).Build()).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return db.Wrap(db.OpCreateIndex, def.Name, err)
	}
	return nil
}

// DropIndex removes an FT index, keeping the indexed hashes.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if err := s.do(ctx, s.b().Arbitrary(db.OpDropIndex).Args(name).Build()).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return db.ErrIndexNotFound
		}
		return db.Wrap(db.OpDropIndex, name, err)
	}
	return nil
}

// IndexExists probes the index via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := s.do(ctx, s.b().Arbitrary(db.OpIndexInfo).Args(name).Build()).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return false, nil
		}
		return false, db.Wrap(db.OpIndexInfo, name, err)
	}
	return true, nil
}
