package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/trader-console/internal/domain"
)

type redisCredentialRepository struct {
	client *redis.Client
	key    string
}

// NewRedisCredentialRepository stores the credential as a plain string under key.
func NewRedisCredentialRepository(client *redis.Client, key string) CredentialRepository {
	return &redisCredentialRepository{client: client, key: key}
}

func (r *redisCredentialRepository) Get(ctx context.Context) (domain.Credential, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return domain.Credential(val), nil
}

func (r *redisCredentialRepository) Set(ctx context.Context, credential domain.Credential) error {
	return r.client.Set(ctx, r.key, string(credential), 0).Err()
}

func (r *redisCredentialRepository) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
