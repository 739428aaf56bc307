package redis

import (
	"context"

	"github.com/kailas-cloud/finsight/internal/db"
)

// CreateIndex runs FT.CREATE for def. A concurrent creator surfaces as db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := def.Args()
	if err != nil {
		return err
	}

	err = s.do(ctx, s.b().Arbitrary(db.OpCreateIndex).Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return db.Wrap(db.OpCreateIndex, def.Name, err)
	}
}

// DropIndex removes the index but keeps the hashes it covered.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.do(ctx, s.b().Arbitrary(db.OpDropIndex).Args(name).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isMissingIndex(err):
		return db.ErrIndexNotFound
	default:
		return db.Wrap(db.OpDropIndex, name, err)
	}
}

// IndexExists asks FT.INFO; an unknown-index reply means false.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary(db.OpIndexInfo).Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isMissingIndex(err):
		return false, nil
	default:
		return false, db.Wrap(db.OpIndexInfo, name, err)
	}
}

// isMissingIndex matches both the Valkey Search and RediSearch wordings.
func isMissingIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "not found")
}
