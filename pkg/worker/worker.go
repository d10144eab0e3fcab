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

// Package worker implements C8: a fixed pool of workers, each owning its
// own template/data queue pair, draining templates to empty before ever
// touching a data flowset, per spec.md §4.8. Sensors are pinned to workers
// by hash so a sensor's stream is totally ordered on one worker, per §5.
package worker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/flowforge/flowforge/pkg/assembler"
	"github.com/flowforge/flowforge/pkg/flowctx"
	"github.com/flowforge/flowforge/pkg/flowlog"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/template"
	"github.com/flowforge/flowforge/pkg/wire"
)

// templateJob carries one already-decoded template or options-template
// record to be upserted into the registry.
type templateJob struct {
	sensorIP net.IP
	obsID    uint32
	named    template.Named
}

// dataJob carries one data flowset to be assembled against whatever
// template its TemplateID resolves to at drain time.
type dataJob struct {
	sensorIP     net.IP
	obsID        uint32
	ref          wire.FlowsetRef
	datagramType string
}

// Worker owns one (templateQ, dataQ) pair and runs on its own goroutine.
// Flow Cache allocation is worker-local: two workers never share one, per
// spec.md §4.8's "Flow Cache allocation is worker-local and non-shared."
type Worker struct {
	id   string
	fctx *flowctx.Context

	templateQ chan templateJob
	dataQ     chan dataJob

	// templatesApplied counts every template upsert this worker has
	// drained, for test synchronisation per spec.md §4.8's "queue
	// draining is observable via a counter."
	templatesApplied atomic.Int64
}

func newWorker(id int, fctx *flowctx.Context, queueSize int) *Worker {
	return &Worker{
		id:        strconv.Itoa(id),
		fctx:      fctx,
		templateQ: make(chan templateJob, queueSize),
		dataQ:     make(chan dataJob, queueSize),
	}
}

// TemplatesApplied returns the number of templates this worker has upserted
// so far, for tests that need to wait for a submitted template to take
// effect before submitting dependent data.
func (w *Worker) TemplatesApplied() int64 {
	return w.templatesApplied.Load()
}

// Run processes jobs until ctx is cancelled, at which point it drains
// whatever is already buffered in both queues once more and returns — the
// cooperative shutdown spec.md §5 describes: "producers stop enqueuing,
// each worker drains its queues."
func (w *Worker) Run(ctx context.Context) error {
	for {
		w.drainTemplates()

		metrics.WorkerQueueDepth.WithLabelValues(w.id, "template").Set(float64(len(w.templateQ)))
		metrics.WorkerQueueDepth.WithLabelValues(w.id, "data").Set(float64(len(w.dataQ)))

		select {
		case <-ctx.Done():
			w.drainTemplates()
			w.drainData()
			return nil
		case job, ok := <-w.templateQ:
			if ok {
				w.applyTemplate(job)
			}
		case job, ok := <-w.dataQ:
			if !ok {
				return nil
			}
			w.processData(job)
		}
	}
}

// drainTemplates empties templateQ without blocking, guaranteeing every
// template a same-datagram data record depends on is applied first.
func (w *Worker) drainTemplates() {
	for {
		select {
		case job, ok := <-w.templateQ:
			if !ok {
				return
			}
			w.applyTemplate(job)
		default:
			return
		}
	}
}

// drainData empties whatever is left in dataQ at shutdown, best-effort.
func (w *Worker) drainData() {
	for {
		select {
		case job, ok := <-w.dataQ:
			if !ok {
				return
			}
			w.processData(job)
		default:
			return
		}
	}
}

func (w *Worker) applyTemplate(job templateJob) {
	key := template.NewKey(job.sensorIP, job.obsID, job.named.ID)
	w.fctx.Templates.Upsert(key, job.named.Template)
	w.templatesApplied.Add(1)

	kind := "template"
	if job.named.Template.IsOption {
		kind = "options_template"
	}
	metrics.TemplateUpsertsTotal.WithLabelValues(kind).Inc()
}

func (w *Worker) processData(job dataJob) {
	key := template.NewKey(job.sensorIP, job.obsID, job.ref.TemplateID)
	tmpl, err := w.fctx.Templates.Lookup(key)
	if err != nil {
		// spec.md invariant (i): a data flowset without a matching
		// template is silently dropped, counted, never fatal.
		metrics.DroppedRecordsTotal.WithLabelValues("missing_template").Inc()
		return
	}

	sensor := w.fctx.Sensors.Observe(job.sensorIP)
	lines := assembler.AssembleSet(w.fctx, sensor, job.obsID, tmpl, job.ref.Payload, job.datagramType)
	if len(lines) == 0 || w.fctx.Output == nil {
		return
	}

	ctx := context.Background()
	for _, line := range lines {
		if err := w.fctx.Output.Publish(ctx, sensor.Network, line); err != nil {
			flowlog.FromContext(ctx).Error(err, "failed to publish assembled line", "sensor", sensor.Network)
		}
	}
}

// ErrQueueFull is returned by a Pool's Submit* methods when a worker's
// queue stayed full for the whole submit timeout, per spec.md §7 "Output
// queue full: apply backpressure ... block bounded time, then drop with a
// counter."
var ErrQueueFull = fmt.Errorf("worker: queue full")

func submitTemplate(ctx context.Context, w *Worker, job templateJob, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case w.templateQ <- job:
		return nil
	case <-t.C:
		metrics.DroppedRecordsTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func submitData(ctx context.Context, w *Worker, job dataJob, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case w.dataQ <- job:
		return nil
	case <-t.C:
		metrics.DroppedRecordsTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}
