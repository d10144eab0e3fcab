package ptr

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

type fakeResolver struct {
	calls atomic.Int32
	names []string
	err   error
	delay time.Duration
}

func (f *fakeResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}

func TestResolvePositiveCaching(t *testing.T) {
	fr := &fakeResolver{names: []string{"host.example.com."}}
	c := New(fr, time.Minute, time.Second)

	ip := net.ParseIP("192.168.1.5")
	for i := 0; i < 3; i++ {
		name, ok := c.Resolve(context.Background(), ip)
		if !ok || name != "host.example.com." {
			t.Fatalf("call %d: got %q,%v", i, name, ok)
		}
	}
	if fr.calls.Load() != 1 {
		t.Errorf("expected exactly 1 resolver call due to caching, got %d", fr.calls.Load())
	}
}

func TestResolveNegativeCaching(t *testing.T) {
	fr := &fakeResolver{err: errors.New("no such host")}
	c := New(fr, time.Minute, time.Minute)

	ip := net.ParseIP("10.0.0.9")
	name, ok := c.Resolve(context.Background(), ip)
	if ok {
		t.Fatalf("expected miss, got %q", name)
	}

	// second call should be served from the negative cache entry, not
	// issue a second resolver call
	c.Resolve(context.Background(), ip)
	if fr.calls.Load() != 1 {
		t.Errorf("expected negative cache to suppress repeated lookups, got %d calls", fr.calls.Load())
	}
}

func TestResolveDeadlineExceeded(t *testing.T) {
	fr := &fakeResolver{names: []string{"slow.example.com."}, delay: 50 * time.Millisecond}
	c := New(fr, time.Minute, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, ok := c.Resolve(ctx, net.ParseIP("172.16.0.1"))
	if ok {
		t.Fatal("expected deadline to be exceeded before resolver returned")
	}
}

func TestEvictExpiredRemovesOnlyPastDeadlineEntries(t *testing.T) {
	fr := &fakeResolver{names: []string{"host.example.com."}}
	c := New(fr, time.Minute, time.Minute)

	c.Resolve(context.Background(), net.ParseIP("192.168.1.5"))
	c.Resolve(context.Background(), net.ParseIP("192.168.1.6"))

	// nothing expired yet
	if n := c.EvictExpired(func() time.Time { return time.Now() }); n != 0 {
		t.Fatalf("expected 0 evicted, got %d", n)
	}

	future := time.Now().Add(2 * time.Minute)
	if n := c.EvictExpired(func() time.Time { return future }); n != 2 {
		t.Fatalf("expected 2 evicted, got %d", n)
	}
	if len(c.entries) != 0 {
		t.Errorf("expected cache empty after eviction, got %d entries", len(c.entries))
	}
}
