package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore はサインアウト済みセッションの失効リスト。
type RevocationStore interface {
	// Revoke はセッションをuntilまで失効させる。untilが過去の場合は何もしない。
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	// IsRevoked はセッションが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

const revocationKeyPrefix = "revoked_session:"

// RedisRevocationStore はRedisを使用した失効リスト。
// キーのTTLをトークンの残り有効期間にするため、期限切れエントリは自動的に消える。
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore はRedisRevocationStoreを生成する。
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke はセッションをuntilまで失効させる。
func (s *RedisRevocationStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revocationKeyPrefix+sessionID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revocation: %w", err)
	}
	return nil
}

// IsRevoked はセッションが失効済みかどうかを返す。
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revocation: %w", err)
	}
	return n > 0, nil
}

// NewRedisClient はURLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// MemoryRevocationStore は単一プロセス用の失効リスト。
// REDIS_URL未設定時に使用する。複数インスタンス構成では共有されない。
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationStore はMemoryRevocationStoreを生成する。
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke はセッションをuntilまで失効させ、期限切れエントリを掃除する。
func (s *MemoryRevocationStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, id)
		}
	}
	if !until.After(now) {
		return nil
	}
	s.entries[sessionID] = until
	return nil
}

// IsRevoked はセッションが失効済みかどうかを返す。
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[sessionID]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.entries, sessionID)
		return false, nil
	}
	return true, nil
}

// Len は保持しているエントリ数を返す。テスト用。
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// compile-time interface checks
var _ RevocationStore = (*RedisRevocationStore)(nil)
var _ RevocationStore = (*MemoryRevocationStore)(nil)
