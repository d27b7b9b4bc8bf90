package geoip

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T, ttl time.Duration) *DiskCache {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache", "geoip.db")
	d, err := OpenDiskCache(context.Background(), path, ttl)
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestDiskCache_PutGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := openTestCache(t, 0)

	if _, ok, err := d.Get(ctx, "1.2.3.4"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := d.Put(ctx, "1.2.3.4", "DE"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Put(ctx, "1.2.3.4", "FR"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := d.Get(ctx, "1.2.3.4")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != "FR" {
		t.Fatalf("got %q, want FR", got)
	}
}

func TestDiskCache_TTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := openTestCache(t, time.Hour)

	base := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return base }
	if err := d.Put(ctx, "1.2.3.4", "DE"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	d.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, ok, _ := d.Get(ctx, "1.2.3.4"); !ok {
		t.Fatalf("expected fresh entry")
	}

	d.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok, _ := d.Get(ctx, "1.2.3.4"); ok {
		t.Fatalf("expected expired entry to miss")
	}

	n, err := d.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d entries, want 1", n)
	}
}
