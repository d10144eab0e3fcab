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

// Package etcdregistry adapts pkg/template.Registry to be backed by a
// shared etcd cluster, so a fleet of flowforged workers can share learned
// templates instead of each relearning them from a cold cache after a
// restart. It is an optional addition: spec.md's registry is in-memory by
// default (pkg/template.Registry); this package only matters when workers
// are horizontally scaled across processes.
package etcdregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/flowforge/flowforge/pkg/template"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

// wireKey is the JSON-friendly projection of template.Key used as the
// etcd value's key field, since template.Key's [16]byte isn't textual.
type wireKey struct {
	SensorIP      string `json:"sensor_ip"`
	ObservationID uint32 `json:"observation_id"`
	TemplateID    uint16 `json:"template_id"`
}

func encodeKey(k template.Key) string {
	return fmt.Sprintf("%s/%d/%d", net.IP(k.SensorIP[:]), k.ObservationID, k.TemplateID)
}

type wireTemplate struct {
	Key    wireKey           `json:"key"`
	Fields []template.Field  `json:"fields"`
}

// Registry mirrors writes to an etcd prefix and serves reads from a local
// in-memory pkg/template.Registry, following the teacher's
// addons/etcd/etcd_template_cache.go split between a stateful remote store
// and a fast local cache of it.
type Registry struct {
	client *clientv3.Client
	local  *template.Registry

	mu     sync.Mutex
	prefix string
}

// New wraps client under prefix "templates/", namespacing its KV/Watcher
// exactly as the teacher's etcd addon does.
func New(client *clientv3.Client) *Registry {
	const prefix = "templates/"
	client.KV = namespace.NewKV(client.KV, prefix)
	client.Watcher = namespace.NewWatcher(client.Watcher, prefix)
	client.Lease = namespace.NewLease(client.Lease, prefix)
	return &Registry{client: client, local: template.New(), prefix: prefix}
}

// Upsert writes through to etcd before updating the local cache, so a
// watcher-driven peer observes the same ordering this process does.
func (r *Registry) Upsert(ctx context.Context, key template.Key, t *template.Template) error {
	wt := wireTemplate{
		Key: wireKey{
			SensorIP:      net.IP(key.SensorIP[:]).String(),
			ObservationID: key.ObservationID,
			TemplateID:    key.TemplateID,
		},
		Fields: t.Fields,
	}
	b, err := json.Marshal(wt)
	if err != nil {
		return fmt.Errorf("etcdregistry: marshal template: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.client.Put(ctx, encodeKey(key), string(b)); err != nil {
		return fmt.Errorf("etcdregistry: put %s: %w", encodeKey(key), err)
	}
	r.local.Upsert(key, t)
	return nil
}

// Lookup serves from the local cache; Watch keeps it current.
func (r *Registry) Lookup(key template.Key) (*template.Template, error) {
	return r.local.Lookup(key)
}

// Hydrate loads every currently-stored template from etcd into the local
// cache, for startup before Watch takes over incremental updates.
func (r *Registry) Hydrate(ctx context.Context) error {
	res, err := r.client.Get(ctx, "", clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("etcdregistry: hydrate: %w", err)
	}
	for _, kv := range res.Kvs {
		var wt wireTemplate
		if err := json.Unmarshal(kv.Value, &wt); err != nil {
			return fmt.Errorf("etcdregistry: hydrate: decode %s: %w", kv.Key, err)
		}
		key := template.NewKey(net.ParseIP(wt.Key.SensorIP), wt.Key.ObservationID, wt.Key.TemplateID)
		r.local.Upsert(key, &template.Template{ID: wt.Key.TemplateID, Fields: wt.Fields})
	}
	return nil
}

// Watch runs until ctx is cancelled, applying every etcd PUT under this
// registry's prefix to the local cache. Deletes are ignored: spec.md's
// registry never actively expires templates outside of Sensor teardown,
// which this shared-registry mode does not model.
func (r *Registry) Watch(ctx context.Context) error {
	wc := r.client.Watch(ctx, "", clientv3.WithPrefix())
	for resp := range wc {
		if err := resp.Err(); err != nil {
			return fmt.Errorf("etcdregistry: watch: %w", err)
		}
		for _, ev := range resp.Events {
			if ev.Type != clientv3.EventTypePut {
				continue
			}
			var wt wireTemplate
			if err := json.Unmarshal(ev.Kv.Value, &wt); err != nil {
				continue
			}
			key := template.NewKey(net.ParseIP(wt.Key.SensorIP), wt.Key.ObservationID, wt.Key.TemplateID)
			r.local.Upsert(key, &template.Template{ID: wt.Key.TemplateID, Fields: wt.Fields})
		}
	}
	return ctx.Err()
}
