package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andyleap/authd/internal/models"
)

// RedisCredentialStore persists credentials in Redis under two keys per
// record, one per index path. Both keys are written in a single
// pipeline so a reader never sees one index without the other. The
// prefix separates logical stores (auth codes vs access tokens) sharing
// one Redis database.
type RedisCredentialStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCredentialStore(client *redis.Client, prefix string) *RedisCredentialStore {
	return &RedisCredentialStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisCredentialStore) valueKey(value string) string {
	return fmt.Sprintf("%s:value:%s", r.prefix, value)
}

func (r *RedisCredentialStore) ownerKey(clientID, username string) string {
	return fmt.Sprintf("%s:owner:%s:%s", r.prefix, clientID, username)
}

func (r *RedisCredentialStore) Put(ctx context.Context, record *models.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	var ttl time.Duration
	if record.ExpiresAt != nil {
		ttl = time.Until(*record.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("credential already expired")
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.valueKey(record.Value), data, ttl)
		pipe.Set(ctx, r.ownerKey(record.ClientID, record.Username), data, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

func (r *RedisCredentialStore) GetByValue(ctx context.Context, value string) (*models.CredentialRecord, error) {
	return r.get(ctx, r.valueKey(value))
}

func (r *RedisCredentialStore) GetByOwner(ctx context.Context, clientID, username string) (*models.CredentialRecord, error) {
	return r.get(ctx, r.ownerKey(clientID, username))
}

func (r *RedisCredentialStore) get(ctx context.Context, key string) (*models.CredentialRecord, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var record models.CredentialRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return &record, nil
}

func (r *RedisCredentialStore) Remove(ctx context.Context, record *models.CredentialRecord) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.valueKey(record.Value))
		pipe.Del(ctx, r.ownerKey(record.ClientID, record.Username))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
	}
}

func (r *RedisSessionStore) SaveSession(ctx context.Context, session *models.Session) error {
	key := fmt.Sprintf("session:%s", session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (r *RedisSessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := fmt.Sprintf("session:%s", sessionID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		r.client.Del(ctx, key)
		return nil, nil
	}

	return &session, nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("session:%s", sessionID)
	return r.client.Del(ctx, key).Err()
}
