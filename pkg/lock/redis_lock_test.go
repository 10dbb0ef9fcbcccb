package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	srv := startMiniredis(t)
	l := NewRedisLock(srv.Addr(), "", 0, "metadata-dir", 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Acquire(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestRedisLock_SecondHolderBlocksUntilReleased(t *testing.T) {
	srv := startMiniredis(t)

	first := NewRedisLock(srv.Addr(), "", 0, "metadata-dir", 30*time.Second)
	ctx := context.Background()
	if err := first.Acquire(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	second := NewRedisLock(srv.Addr(), "", 0, "metadata-dir", 30*time.Second)
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := second.Acquire(shortCtx, 10*time.Millisecond); err == nil {
		t.Fatal("expected second Acquire to time out while first holds the lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("first Release: %v", err)
	}

	unblockedCtx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	third := NewRedisLock(srv.Addr(), "", 0, "metadata-dir", 30*time.Second)
	if err := third.Acquire(unblockedCtx, 10*time.Millisecond); err != nil {
		t.Fatalf("third Acquire after release: %v", err)
	}
	_ = third.Release(context.Background())
}

func TestRedisLock_ReleaseAfterLeaseExpiryIsNoop(t *testing.T) {
	srv := startMiniredis(t)
	l := NewRedisLock(srv.Addr(), "", 0, "metadata-dir", 10*time.Millisecond)

	ctx := context.Background()
	if err := l.Acquire(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	srv.FastForward(100 * time.Millisecond)

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release after expiry should be a no-op, got: %v", err)
	}
}
