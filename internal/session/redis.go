package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
)

// releaseLockScript deletes the lock only if it is still owned by the caller's token.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockRetryInterval = 20 * time.Millisecond

// RedisStore keeps sessions in Redis so several server instances can share them.
// Turns for one session are serialized by a lock key; the write itself is
// additionally guarded by WATCH on the session key and a version check.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	lockTTL   time.Duration
	lockWait  time.Duration

	releaseScript *redis.Script
}

func newRedisStore(o storeOptions) *RedisStore {
	return &RedisStore{
		client:        o.redisClient,
		keyPrefix:     o.keyPrefix,
		ttl:           o.ttl,
		lockTTL:       o.lockTTL,
		lockWait:      o.lockWait,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := storeOptions{
		redisClient: client,
		keyPrefix:   defaultKeyPrefix,
		lockTTL:     defaultLockTTL,
		lockWait:    defaultLockWait,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return newRedisStore(o)
}

func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*Context, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	fresh := NewContext(sessionID, userID)
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.client.SetNX(ctx, s.sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return nil, supporterrors.NewStoreUnavailableError("get_or_create", err)
	}
	return s.Get(ctx, sessionID)
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Context, error) {
	c, err := s.load(ctx, s.client, sessionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUnknownSession
	}
	return c, nil
}

func (s *RedisStore) Update(ctx context.Context, sessionID, userID string, fn UpdateFunc) (*Context, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	key := s.sessionKey(sessionID)
	var (
		written *Context
		fnErr   error
	)
	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if current == nil {
			current = NewContext(sessionID, userID)
		}
		expected := current.Version

		working := current.Clone()
		if fnErr = fn(working); fnErr != nil {
			return fnErr
		}
		working.SessionID = sessionID
		working.Version = expected + 1
		working.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("session: marshal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		written = working
		return nil
	}

	err = s.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return written, nil
	case errors.Is(err, redis.TxFailedErr):
		return nil, supporterrors.NewStoreUnavailableError("update", fmt.Errorf("concurrent write to session %s: %w", sessionID, err))
	case fnErr != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		var se *supporterrors.SupportError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, supporterrors.NewStoreUnavailableError("update", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return false, err
	}
	defer release()

	n, err := s.client.Del(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return false, supporterrors.NewStoreUnavailableError("delete", err)
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Context, error) {
	var out []*Context
	iter := s.client.Scan(ctx, 0, s.keyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), s.keyPrefix+":")
		c, err := s.load(ctx, s.client, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, supporterrors.NewStoreUnavailableError("list", err)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return supporterrors.NewStoreUnavailableError("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, cmd redis.Cmdable, sessionID string) (*Context, error) {
	data, err := cmd.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, supporterrors.NewStoreUnavailableError("get", err)
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	if c.CollectedInfo == nil {
		c.CollectedInfo = NewContext(sessionID, c.UserID).CollectedInfo
	}
	return &c, nil
}

// acquire takes the per-session lock, polling until lockWait elapses or ctx is done.
func (s *RedisStore) acquire(ctx context.Context, sessionID string) (func(), error) {
	key := s.lockKey(sessionID)
	token := uuid.NewString()
	deadline := time.Now().Add(s.lockWait)

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, supporterrors.NewStoreUnavailableError("lock", err)
		}
		if ok {
			return func() {
				// The turn context may already be cancelled; release with a fresh one.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = s.releaseScript.Run(releaseCtx, s.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, supporterrors.NewStoreUnavailableError("lock", ErrLockTimeout)
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.keyPrefix + ":" + sessionID
}

func (s *RedisStore) lockKey(sessionID string) string {
	return s.keyPrefix + "-lock:" + sessionID
}
