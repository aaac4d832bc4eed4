package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/port"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var _ port.KVStorage = LevelDB{}

// LevelDB is an embedded on-disk key-value store. Writes are synced
// before they return.
type LevelDB struct {
	db *leveldb.DB
}

func NewLevelDB(path string) (LevelDB, error) {
	const op = "NewLevelDB"

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return LevelDB{}, fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("leveldb is opened", "op", op, "path", path)
	return LevelDB{db}, nil
}

func (s LevelDB) Get(ctx context.Context, key string) (string, error) {
	const op = "LevelDB.Get"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	v, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, port.ErrKeyNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(v), nil
}

func (s LevelDB) Set(ctx context.Context, key, value string) error {
	const op = "LevelDB.Set"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.db.Put([]byte(key), []byte(value), &opt.WriteOptions{Sync: true})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s LevelDB) Remove(ctx context.Context, key string) error {
	const op = "LevelDB.Remove"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.db.Delete([]byte(key), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s LevelDB) Close() {
	const op = "LevelDB.Close"
	log := slog.With("op", op)

	log.Info("closing leveldb...")

	if err := s.db.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("leveldb is closed")
}
