package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RevocationStore interface {
	Revoke(ctx context.Context, tokenId string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenId string) (bool, error)
}

type RedisRevocationStore struct {
	client *redis.Client
}

func NewRedisRevocationStore(addr, password string) (*RedisRevocationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisRevocationStore{client: client}, nil
}

func revocationKey(tokenId string) string {
	return "gochat:revoked:" + tokenId
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenId string, ttl time.Duration) error {
	return s.client.Set(ctx, revocationKey(tokenId), 1, ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenId string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKey(tokenId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) Close() error {
	return s.client.Close()
}
