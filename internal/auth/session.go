package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session expired or revoked")

// SessionStore 保存 refresh token 的 jti → userID
type SessionStore interface {
	Save(ctx context.Context, jti, userID string, ttl time.Duration) error
	Lookup(ctx context.Context, jti string) (string, error)
	Delete(ctx context.Context, jti string) error
	// DeleteUser 作废该用户的全部 refresh token
	DeleteUser(ctx context.Context, userID string) error
}

const (
	refreshKeyPrefix     = "token:refresh:"
	userSessionKeyPrefix = "token:user:"
)

// RedisSessionStore Redis实现
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

// Save 写入 jti，同时记入用户索引集合，集合随最后一次写入续期
func (s *RedisSessionStore) Save(ctx context.Context, jti, userID string, ttl time.Duration) error {
	userKey := userSessionKeyPrefix + userID
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, refreshKeyPrefix+jti, userID, ttl)
		pipe.SAdd(ctx, userKey, jti)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

func (s *RedisSessionStore) Lookup(ctx context.Context, jti string) (string, error) {
	userID, err := s.rdb.Get(ctx, refreshKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	return userID, err
}

func (s *RedisSessionStore) Delete(ctx context.Context, jti string) error {
	return s.rdb.Del(ctx, refreshKeyPrefix+jti).Err()
}

func (s *RedisSessionStore) DeleteUser(ctx context.Context, userID string) error {
	userKey := userSessionKeyPrefix + userID
	jtis, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, refreshKeyPrefix+jti)
	}
	keys = append(keys, userKey)
	return s.rdb.Del(ctx, keys...).Err()
}

// MemorySessionStore 进程内实现，未启用Redis时使用
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	userID  string
	expires time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemorySessionStore) Save(_ context.Context, jti, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[jti] = memorySession{userID: userID, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Lookup(_ context.Context, jti string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[jti]
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.now().After(sess.expires) {
		delete(s.sessions, jti)
		return "", ErrSessionNotFound
	}
	return sess.userID, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	return nil
}

func (s *MemorySessionStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, jti)
		}
	}
	return nil
}
