package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/danmarrec/storelane-backend/pkg/redis"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (s *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestRedisLockMutualExclusion(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx := context.Background()

	first, err := NewRedisLock(store, "storelane:lock:sweeper", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, "storelane:lock:sweeper", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second instance acquired a held lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseIgnoresStolenLock(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx := context.Background()

	lock, err := NewRedisLock(store, "storelane:lock:sweeper", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// TTL expiry followed by another instance grabbing the key.
	store.values["storelane:lock:sweeper"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["storelane:lock:sweeper"] != "someone-else" {
		t.Fatal("release deleted a lock it no longer owned")
	}
}
