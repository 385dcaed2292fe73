package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownSession is returned by Get for ids the store has never seen or has deleted.
var ErrUnknownSession = errors.New("session: unknown session")

// ErrLockTimeout is returned when a per-session lock could not be acquired in time.
var ErrLockTimeout = errors.New("session: lock acquisition timed out")

// UpdateFunc mutates a session inside a store transaction.
// Returning an error aborts the write; the stored context is left unchanged.
type UpdateFunc func(c *Context) error

// Store persists session contexts.
type Store interface {
	// GetOrCreate returns a snapshot of the session, creating it when absent.
	GetOrCreate(ctx context.Context, sessionID, userID string) (*Context, error)

	// Get returns a snapshot of an existing session or ErrUnknownSession.
	Get(ctx context.Context, sessionID string) (*Context, error)

	// Update runs fn against the session under a per-session lock and persists the result.
	// It creates the session when absent and returns a snapshot of the written context.
	Update(ctx context.Context, sessionID, userID string, fn UpdateFunc) (*Context, error)

	// Delete removes the session. It reports false when nothing was stored.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// List returns snapshots of every stored session.
	List(ctx context.Context) ([]*Context, error)

	// Close releases backend resources.
	Close() error
}

// StoreType selects a Store backend.
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreRedis  StoreType = "redis"
)

const (
	defaultKeyPrefix = "supportdesk:session"
	defaultLockTTL   = 60 * time.Second
	defaultLockWait  = 65 * time.Second
)

type storeOptions struct {
	redisClient redis.UniversalClient
	keyPrefix   string
	ttl         time.Duration
	lockTTL     time.Duration
	lockWait    time.Duration
}

// Option configures a Store.
type Option func(*storeOptions)

// WithRedisClient sets the client used by the redis backend.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *storeOptions) {
		o.redisClient = client
	}
}

// WithKeyPrefix sets the redis key prefix (default: "supportdesk:session").
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) {
		o.keyPrefix = prefix
	}
}

// WithTTL expires idle sessions in the redis backend. Zero keeps sessions forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

// WithLockTTL sets how long a redis session lock lives before it is considered abandoned.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *storeOptions) {
		o.lockTTL = ttl
	}
}

// WithLockWait bounds how long Update waits for a busy session.
func WithLockWait(wait time.Duration) Option {
	return func(o *storeOptions) {
		o.lockWait = wait
	}
}

// NewStore builds a Store of the requested type.
func NewStore(storeType StoreType, opts ...Option) (Store, error) {
	o := storeOptions{
		keyPrefix: defaultKeyPrefix,
		lockTTL:   defaultLockTTL,
		lockWait:  defaultLockWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch storeType {
	case StoreMemory, "":
		return NewMemoryStore(), nil
	case StoreRedis:
		if o.redisClient == nil {
			return nil, fmt.Errorf("session: redis store requires a redis client")
		}
		return newRedisStore(o), nil
	default:
		return nil, fmt.Errorf("session: unsupported store type %q", storeType)
	}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}
