package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// Store é um cache chave/valor simples sobre Redis, usado como read-through
// (a fonte da verdade continua sendo o Postgres)
type Store struct{ R *redis.Client }

func NewStore(r *redis.Client) *Store { return &Store{R: r} }

// Get retorna (valor, encontrado, erro); chave ausente não é erro
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	return s.R.Set(ctx, key, v, ttl).Err()
}

func (s *Store) Del(ctx context.Context, key string) error {
	return s.R.Del(ctx, key).Err()
}
