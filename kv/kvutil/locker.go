package kvutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/segmentio/ksuid"
)

// NewLocker returns a lease based lock stored under key in db. The holder renews its lease every
// leaseInterval; a lease that has not been renewed for 4 intervals is considered abandoned.
func NewLocker(db kv.DB, key []byte, leaseInterval time.Duration) (kv.Locker, error) {
	if leaseInterval <= 0 {
		return nil, errors.New(errors.Validation, "lease interval must be positive")
	}
	return &leaseLock{
		id:            ksuid.New().String(),
		key:           key,
		db:            db,
		leaseInterval: leaseInterval,
	}, nil
}

type leaseLock struct {
	id            string
	key           []byte
	db            kv.DB
	leaseInterval time.Duration
	mu            sync.Mutex
	start         time.Time
	unlock        chan struct{}
	hasUnlocked   chan struct{}
}

type lockMeta struct {
	ID         string    `json:"id"`
	Start      time.Time `json:"start"`
	LastUpdate time.Time `json:"lastUpdate"`
	Key        []byte    `json:"key"`
}

func (l *leaseLock) expired(current *lockMeta) bool {
	return time.Since(current.LastUpdate) > 4*l.leaseInterval
}

func (l *leaseLock) IsLocked(ctx context.Context) (bool, error) {
	isLocked := false
	err := l.db.Tx(ctx, false, func(tx kv.Tx) error {
		current, err := l.getLock(ctx, tx)
		if err != nil {
			return err
		}
		isLocked = current != nil && !l.expired(current)
		return nil
	})
	return isLocked, err
}

func (l *leaseLock) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlock != nil {
		return true, nil
	}
	l.start = time.Now()
	gotLock := false
	err := l.db.Tx(ctx, true, func(tx kv.Tx) error {
		current, err := l.getLock(ctx, tx)
		if err != nil {
			return err
		}
		if current == nil || current.ID == l.id || l.expired(current) {
			if err := l.setLock(ctx, tx); err != nil {
				return err
			}
			gotLock = true
		}
		return nil
	})
	if err == nil && gotLock {
		l.unlock = make(chan struct{})
		l.hasUnlocked = make(chan struct{})
		go l.keepalive(l.unlock, l.hasUnlocked)
	}
	return gotLock, err
}

func (l *leaseLock) Unlock() {
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

func (l *leaseLock) setLock(ctx context.Context, tx kv.Tx) error {
	meta := &lockMeta{
		ID:         l.id,
		Start:      l.start,
		LastUpdate: time.Now(),
		Key:        l.key,
	}
	bits, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.Set(ctx, l.key, bits)
}

func (l *leaseLock) getLock(ctx context.Context, tx kv.Tx) (*lockMeta, error) {
	val, err := tx.Get(ctx, l.key)
	if err != nil || val == nil {
		return nil, err
	}
	var m lockMeta
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// keepalive renews the lease until unlock is closed, then deletes the lock if it is still owned
func (l *leaseLock) keepalive(unlock <-chan struct{}, hasUnlocked chan<- struct{}) {
	defer close(hasUnlocked)
	ctx := context.Background()
	ticker := time.NewTicker(l.leaseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// a failed renewal is retried on the next tick
			_ = l.db.Tx(ctx, true, func(tx kv.Tx) error {
				current, err := l.getLock(ctx, tx)
				if err != nil {
					return err
				}
				if current != nil && current.ID == l.id {
					return l.setLock(ctx, tx)
				}
				return nil
			})
		case <-unlock:
			_ = l.db.Tx(ctx, true, func(tx kv.Tx) error {
				current, err := l.getLock(ctx, tx)
				if err != nil {
					return err
				}
				if current != nil && current.ID == l.id {
					return tx.Delete(ctx, l.key)
				}
				return nil
			})
			return
		}
	}
}
