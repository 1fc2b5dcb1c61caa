// Package redislock provides store.Locking over redis for stores without a native lock, such as mongo.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/store"
	"github.com/autom8ter/docrepo/util"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

// Options configure the redis client
type Options struct {
	Addr     string `json:"addr" validate:"required"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// renew extends the lease only while the caller still owns it
var renew = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// release deletes the lock only while the caller still owns it
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locking hands out lease locks stored in redis
type Locking struct {
	client *redis.Client
	prefix string
}

// Open connects to redis. params are decoded into Options.
func Open(ctx context.Context, params map[string]any) (*Locking, error) {
	var opts Options
	if err := util.Decode(params, &opts); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid redis params")
	}
	if err := util.ValidateStruct(&opts); err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = "docrepo:locks:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.Internal, "failed to connect to redis at %s", opts.Addr)
	}
	return New(client, opts.Prefix), nil
}

// New returns a Locking over an existing client
func New(client *redis.Client, prefix string) *Locking {
	return &Locking{
		client: client,
		prefix: prefix,
	}
}

// NewLocker returns a lock whose lease lasts 4 lease intervals and is renewed every interval while held
func (l *Locking) NewLocker(name string, leaseInterval time.Duration) (store.Locker, error) {
	if leaseInterval <= 0 {
		return nil, errors.New(errors.Validation, "lease interval must be positive")
	}
	return &locker{
		client:        l.client,
		key:           l.prefix + name,
		id:            ksuid.New().String(),
		leaseInterval: leaseInterval,
	}, nil
}

// Close closes the redis client
func (l *Locking) Close() error {
	return l.client.Close()
}

type locker struct {
	client        *redis.Client
	key           string
	id            string
	leaseInterval time.Duration
	mu            sync.Mutex
	unlock        chan struct{}
	hasUnlocked   chan struct{}
}

func (l *locker) lease() time.Duration {
	return 4 * l.leaseInterval
}

func (l *locker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlock != nil {
		return true, nil
	}
	gotLock, err := l.client.SetNX(ctx, l.key, l.id, l.lease()).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.Internal, "failed to acquire lock %s", l.key)
	}
	if gotLock {
		l.unlock = make(chan struct{})
		l.hasUnlocked = make(chan struct{})
		go l.keepalive(l.unlock, l.hasUnlocked)
	}
	return gotLock, nil
}

func (l *locker) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlock == nil {
		return
	}
	close(l.unlock)
	<-l.hasUnlocked
	l.unlock = nil
	l.hasUnlocked = nil
}

func (l *locker) keepalive(unlock <-chan struct{}, hasUnlocked chan<- struct{}) {
	defer close(hasUnlocked)
	ctx := context.Background()
	ticker := time.NewTicker(l.leaseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// a failed renewal is retried on the next tick
			_ = renew.Run(ctx, l.client, []string{l.key}, l.id, l.lease().Milliseconds()).Err()
		case <-unlock:
			_ = release.Run(ctx, l.client, []string{l.key}, l.id).Err()
			return
		}
	}
}
