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

package worker

import (
	"context"
	"net"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/flowforge/flowforge/pkg/flowctx"
	"github.com/flowforge/flowforge/pkg/template"
	"github.com/flowforge/flowforge/pkg/wire"
)

// Config tunes a Pool's fixed geometry. Zero fields take defaults: one
// worker (the flowforged -workers flag passes one per CPU), 1024-slot
// queues, and a 500ms submit timeout before a job is counted and dropped
// instead of blocking a producer forever.
type Config struct {
	Workers        int
	QueueSize      int
	SubmitTimeout  time.Duration
	EvictionPeriod time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 500 * time.Millisecond
	}
	if c.EvictionPeriod <= 0 {
		c.EvictionPeriod = time.Minute
	}
	return c
}

// Pool is a fixed set of Workers, each pinned a slice of the sensor address
// space by xxhash so one sensor's datagrams are always processed in order
// on the same worker, per spec.md §5 "Ordering ... within one (sensor,
// observation domain) pair is preserved by routing it to a single worker."
type Pool struct {
	cfg     Config
	fctx    *flowctx.Context
	workers []*Worker
}

// NewPool builds a Pool of cfg.Workers Workers sharing fctx.
func NewPool(fctx *flowctx.Context, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{cfg: cfg, fctx: fctx, workers: make([]*Worker, cfg.Workers)}
	for i := range p.workers {
		p.workers[i] = newWorker(i, fctx, cfg.QueueSize)
	}
	return p
}

// workerFor hashes sensorIP to a stable worker index.
func (p *Pool) workerFor(sensorIP net.IP) *Worker {
	h := xxhash.Sum64(sensorIP.To16())
	return p.workers[h%uint64(len(p.workers))]
}

// SubmitTemplateSet decodes a template-set flowset and enqueues each
// resulting template record on the worker that owns sensorIP, per spec.md
// §4.8's "template records for the same sensor are processed before any
// data record that depends on them, on the same worker."
func (p *Pool) SubmitTemplateSet(ctx context.Context, sensorIP net.IP, obsID uint32, ref wire.FlowsetRef) error {
	named, err := template.DecodeTemplateSet(ref.Payload)
	if err != nil {
		return err
	}
	w := p.workerFor(sensorIP)
	for _, n := range named {
		job := templateJob{sensorIP: sensorIP, obsID: obsID, named: n}
		if err := submitTemplate(ctx, w, job, p.cfg.SubmitTimeout); err != nil {
			return err
		}
	}
	return nil
}

// SubmitTemplate enqueues one already-built Template directly, bypassing
// wire decoding — used for the built-in NetFlow v5 synthetic template
// (template.V5()), which never arrives as wire bytes but still has to be
// upserted on the same worker, ahead of any v5 data, as every other
// template.
func (p *Pool) SubmitTemplate(ctx context.Context, sensorIP net.IP, obsID uint32, id uint16, tmpl *template.Template) error {
	w := p.workerFor(sensorIP)
	job := templateJob{sensorIP: sensorIP, obsID: obsID, named: template.Named{ID: id, Template: tmpl}}
	return submitTemplate(ctx, w, job, p.cfg.SubmitTimeout)
}

// SubmitOptionsTemplateSet is SubmitTemplateSet's options-template twin.
func (p *Pool) SubmitOptionsTemplateSet(ctx context.Context, sensorIP net.IP, obsID uint32, ref wire.FlowsetRef) error {
	named, err := template.DecodeOptionsTemplateSet(ref.Payload)
	if err != nil {
		return err
	}
	w := p.workerFor(sensorIP)
	for _, n := range named {
		job := templateJob{sensorIP: sensorIP, obsID: obsID, named: n}
		if err := submitTemplate(ctx, w, job, p.cfg.SubmitTimeout); err != nil {
			return err
		}
	}
	return nil
}

// SubmitData enqueues one data flowset for assembly on the worker that owns
// sensorIP.
func (p *Pool) SubmitData(ctx context.Context, sensorIP net.IP, obsID uint32, ref wire.FlowsetRef, datagramType string) error {
	w := p.workerFor(sensorIP)
	job := dataJob{sensorIP: sensorIP, obsID: obsID, ref: ref, datagramType: datagramType}
	return submitData(ctx, w, job, p.cfg.SubmitTimeout)
}

// Run starts every worker plus a periodic PTR cache evictor under an
// errgroup and returns once all of them have returned; ctx cancellation
// triggers the cooperative shutdown spec.md §5
// describes: producers are expected to stop calling Submit* first, then Run
// drains each worker's queues once more before returning.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range p.workers {
		w := w
		g.Go(func() error { return w.Run(gctx) })
	}

	if p.fctx.PTR != nil {
		g.Go(func() error { return p.runEvictor(gctx) })
	}

	return g.Wait()
}

func (p *Pool) runEvictor(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.EvictionPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.fctx.PTR.EvictExpired(p.fctx.Clock)
		}
	}
}
