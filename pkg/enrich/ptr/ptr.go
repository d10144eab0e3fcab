/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ptr implements C6's reverse-DNS cache and resolver actor per
// spec.md §4.6: a TTL cache keyed by IP with negative caching for misses,
// backed by a resolver that de-duplicates concurrent lookups of the same
// address with singleflight. The entry shape follows the teacher's
// decaying_cache.go templateElement (deadline + created + value), adapted
// from templates to resolved hostnames.
package ptr

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry mirrors the teacher's templateElement: a deadline alongside the
// cached value, plus a negative flag for cached-miss entries.
type entry struct {
	deadline time.Time
	name     string
	negative bool
}

// Resolver performs the actual PTR lookup; net.Resolver satisfies this via
// LookupAddr, wrapped by NetResolver below.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Cache is the shared, thread-safe PTR cache plus resolver actor described
// in spec.md §4.6. A single Cache is shared across all of a worker pool's
// workers; singleflight.Group coalesces concurrent lookups for the same
// address into one resolver call, matching "a single-threaded DNS polling
// task ... owns the resolver handle."
type Cache struct {
	mu       sync.RWMutex
	entries  map[[16]byte]entry
	group    singleflight.Group
	resolver Resolver

	positiveTTL time.Duration
	negativeTTL time.Duration
}

// New builds a Cache with the given positive/negative TTLs (spec.md §4.6:
// "a miss is cached as a negative entry with a shorter TTL").
func New(resolver Resolver, positiveTTL, negativeTTL time.Duration) *Cache {
	return &Cache{
		entries:     make(map[[16]byte]entry),
		resolver:    resolver,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

func (c *Cache) lookupFresh(addr [16]byte) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[addr]
	if !ok || time.Now().After(e.deadline) {
		return entry{}, false
	}
	return e, true
}

// Resolve returns the PTR name for ip, honoring ctx's deadline per spec.md
// §5 ("PTR lookups have a per-record deadline after which the DNS keys
// are simply omitted"). ok is false on a cache miss that could not be
// resolved before ctx expired, or on a cached negative entry.
func (c *Cache) Resolve(ctx context.Context, ip net.IP) (string, bool) {
	var key [16]byte
	copy(key[:], ip.To16())

	if e, ok := c.lookupFresh(key); ok {
		return e.name, !e.negative
	}

	type result struct {
		name     string
		negative bool
	}
	resCh := c.group.DoChan(string(key[:]), func() (any, error) {
		names, err := c.resolver.LookupAddr(context.Background(), ip.String())
		now := time.Now()
		if err != nil || len(names) == 0 {
			c.mu.Lock()
			c.entries[key] = entry{deadline: now.Add(c.negativeTTL), negative: true}
			c.mu.Unlock()
			return result{negative: true}, nil
		}
		name := names[0]
		c.mu.Lock()
		c.entries[key] = entry{deadline: now.Add(c.positiveTTL), name: name}
		c.mu.Unlock()
		return result{name: name}, nil
	})

	select {
	case r := <-resCh:
		if r.Err != nil {
			return "", false
		}
		res := r.Val.(result)
		return res.name, !res.negative
	case <-ctx.Done():
		return "", false
	}
}

// EvictExpired drops every cache entry whose deadline has passed. A worker
// pool runs this periodically from a dedicated goroutine (spec.md §4.6/§5's
// "single-threaded DNS polling task") so the cache doesn't grow unbounded
// with stale negative entries from addresses never seen again.
func (c *Cache) EvictExpired(now func() time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now()
	n := 0
	for k, e := range c.entries {
		if cutoff.After(e.deadline) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// NetResolver adapts *net.Resolver to the Resolver interface.
type NetResolver struct {
	*net.Resolver
}

func (n NetResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	r := n.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	return r.LookupAddr(ctx, addr)
}
