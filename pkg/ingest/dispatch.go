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

// Package ingest is C1's dispatch half: turn one raw transport datagram
// into header + flowset decoding (pkg/wire) and hand every resulting
// template, options-template, or data flowset to the worker pool that owns
// its sensor, per spec.md §4.1/§4.8. The transport itself (pkg/transport)
// only ever hands this package a ([]byte, net.IP) pair.
package ingest

import (
	"context"
	"fmt"

	"github.com/flowforge/flowforge/pkg/flowlog"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/template"
	"github.com/flowforge/flowforge/pkg/wire"
	"github.com/flowforge/flowforge/pkg/worker"

	"net"
)

// Submitter is the subset of *worker.Pool a Dispatcher needs; an interface
// so dispatch logic can be unit-tested against a recording fake instead of
// a real Pool and its goroutines.
type Submitter interface {
	SubmitTemplate(ctx context.Context, sensorIP net.IP, obsID uint32, id uint16, tmpl *template.Template) error
	SubmitTemplateSet(ctx context.Context, sensorIP net.IP, obsID uint32, ref wire.FlowsetRef) error
	SubmitOptionsTemplateSet(ctx context.Context, sensorIP net.IP, obsID uint32, ref wire.FlowsetRef) error
	SubmitData(ctx context.Context, sensorIP net.IP, obsID uint32, ref wire.FlowsetRef, datagramType string) error
}

var _ Submitter = (*worker.Pool)(nil)

// Dispatcher decodes datagrams and routes their contents to a Submitter.
type Dispatcher struct {
	pool Submitter
}

// New builds a Dispatcher over pool.
func New(pool Submitter) *Dispatcher {
	return &Dispatcher{pool: pool}
}

// HandleDatagram decodes one datagram from sensorIP and submits every
// flowset it carries. A malformed header or flowset framing is logged and
// counted rather than propagated, per spec.md §7 "a datagram that fails to
// parse at all is dropped with a logged warning, never fatal."
func (d *Dispatcher) HandleDatagram(ctx context.Context, sensorIP net.IP, datagram []byte) {
	h, headerLen, err := wire.DecodeHeader(datagram)
	if err != nil {
		flowlog.FromContext(ctx).V(0).Info("dropping unparseable datagram", "sensor", sensorIP.String(), "error", err.Error())
		metrics.DatagramsDropped.WithLabelValues("bad_header").Inc()
		return
	}
	metrics.DatagramsTotal.Inc()
	body := datagram[headerLen:]

	var derr error
	if h.Version == wire.NetFlowV5 {
		derr = d.handleV5(ctx, sensorIP, h, body)
	} else {
		derr = d.handleV9OrIPFIX(ctx, sensorIP, h, body)
	}
	if derr != nil {
		flowlog.FromContext(ctx).V(0).Info("dropping datagram", "sensor", sensorIP.String(), "version", h.Version.String(), "error", derr.Error())
		metrics.DatagramsDropped.WithLabelValues("bad_flowset").Inc()
	}
}

// handleV5 ensures the synthetic v5 template is registered, then submits
// the whole resolved record body as a single data flowset (see
// pkg/template.V5 and pkg/wire.ResolveV5Record/SyntheticV5Flowset).
func (d *Dispatcher) handleV5(ctx context.Context, sensorIP net.IP, h wire.Header, body []byte) error {
	if err := d.pool.SubmitTemplate(ctx, sensorIP, 0, wire.SyntheticV5TemplateID, template.V5()); err != nil {
		return err
	}

	resolved := make([]byte, 0, len(body)*2)
	for offset := 0; offset+template.V5RecordLength <= len(body); offset += template.V5RecordLength {
		r := wire.ResolveV5Record(h, body[offset:offset+template.V5RecordLength])
		if r == nil {
			break
		}
		resolved = append(resolved, r...)
	}

	ref := wire.SyntheticV5Flowset(resolved)
	return d.pool.SubmitData(ctx, sensorIP, 0, ref, wire.NetFlowV5.String())
}

// handleV9OrIPFIX walks the datagram's flowsets and routes each by kind.
func (d *Dispatcher) handleV9OrIPFIX(ctx context.Context, sensorIP net.IP, h wire.Header, body []byte) error {
	refs, err := wire.Flowsets(body, h)
	if err != nil && len(refs) == 0 {
		return err
	}

	datagramType := h.Version.String()
	for _, ref := range refs {
		var submitErr error
		switch ref.Kind {
		case wire.KindTemplate:
			submitErr = d.pool.SubmitTemplateSet(ctx, sensorIP, h.ObservationDomainId, ref)
		case wire.KindOptionsTemplate:
			submitErr = d.pool.SubmitOptionsTemplateSet(ctx, sensorIP, h.ObservationDomainId, ref)
		case wire.KindData:
			submitErr = d.pool.SubmitData(ctx, sensorIP, h.ObservationDomainId, ref, datagramType)
		}
		if submitErr != nil {
			return fmt.Errorf("flowset set-id %d: %w", ref.SetID, submitErr)
		}
	}
	return err
}
