package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the redis client for the chat API's cross-request coordination:
// per-session turn locks and a lastSeen write-through cache.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// AcquireTurnLock claims the single-active-turn slot of a session. The
// summary append is last-writer-wins, which is only safe while one turn per
// session is in flight; this lock enforces that instead of assuming it.
// Returns false when another turn already holds the slot.
func (s *Store) AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, "chat:turn:"+sessionID, 1, ttl).Result()
}

// ReleaseTurnLock frees the slot early; the TTL covers crashed holders.
func (s *Store) ReleaseTurnLock(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, "chat:turn:"+sessionID).Err()
}

// CacheLastSeen records the user's most recent activity with a short TTL so
// presence lookups avoid the database.
func (s *Store) CacheLastSeen(ctx context.Context, email string, at time.Time) error {
	return s.rdb.Set(ctx, "user:lastseen:"+email, at.Unix(), time.Hour).Err()
}

func (s *Store) LastSeen(ctx context.Context, email string) (time.Time, bool, error) {
	v, err := s.rdb.Get(ctx, "user:lastseen:"+email).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(v, 0), true, nil
}
