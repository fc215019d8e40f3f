package models

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/livetranslate/billing-service/config/database"
	"github.com/livetranslate/billing-service/config/redis"
)

// IsNotFound reports whether a store error means the row does not exist, as
// opposed to the query failing.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

type ApiStore struct {
	db *database.DB
}

func NewApiStore(db *database.DB) *ApiStore {
	return &ApiStore{
		db: db,
	}
}

// FlagStore records user ids whose cached entitlements must be recomputed,
// in a Redis set consumed by the app backend.
type FlagStore struct {
	name    string
	context context.Context
	db      *redis.RedisDB
}

type Flagger interface {
	Flag(value string) error
}

func NewFlagStore(ctx context.Context, redis *redis.RedisDB, name string) *FlagStore {
	return &FlagStore{
		name:    name,
		context: ctx,
		db:      redis,
	}
}

func (store *FlagStore) Flag(value string) error {
	result := store.db.Client.SAdd(store.context, store.name, value)
	if err := result.Err(); err != nil {
		return err
	}

	return nil
}

func (store *FlagStore) Close() error {
	return store.db.Client.Close()
}
