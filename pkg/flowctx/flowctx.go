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

// Package flowctx implements spec.md §9's "Design Notes" replacement for
// the original's process-wide database handles: a single explicit Context
// value, built once at startup and passed into the worker pool, bundling
// every lookup collaborator a record's assembly might consult (home-net,
// MAC db, GeoIP, app/selector/interface, PTR cache, output sink, clock).
// Handlers and the assembler never reach for package-level globals; they
// only see what Context hands them, which is what makes pkg/handlers
// unit-testable with a stub Enrichment.
package flowctx

import (
	"context"
	"net"
	"time"

	"github.com/flowforge/flowforge/pkg/enrich"
	"github.com/flowforge/flowforge/pkg/enrich/ptr"
	"github.com/flowforge/flowforge/pkg/sensors"
	"github.com/flowforge/flowforge/pkg/template"
)

// OutputSink publishes one assembled JSON line to the downstream message
// bus (spec.md §6 "one UTF-8 JSON object per line on a configured
// message-bus topic"). Out of scope per spec.md §2: the bus client itself
// is an external collaborator behind this interface.
type OutputSink interface {
	Publish(ctx context.Context, sensor string, line []byte) error
}

// Clock is the injectable time source, so tests can freeze "now" instead
// of depending on wall-clock time; production wiring passes time.Now.
type Clock func() time.Time

// Sources bundles the process-wide enrichment lookups from pkg/enrich.
// Fields are interfaces so geoippg.Source or a test double can stand in
// for the default in-memory implementations.
type Sources struct {
	MACVendors enrich.MACVendors
	MACNames   enrich.MACNames
	GeoIP      enrich.GeoIP
	Protocols  enrich.ProtocolNames
}

// Context is the single value threaded into every worker at startup.
type Context struct {
	Sensors   *sensors.Database
	Templates *template.Registry
	Sources   Sources
	PTR       *ptr.Cache

	// PTRDeadline bounds how long the assembler waits for a PTR
	// completion before omitting the DNS key, per spec.md §4.6.
	PTRDeadline time.Duration

	Output OutputSink
	Clock  Clock
}

// New builds a Context from its collaborators, defaulting Clock to
// time.Now when nil is passed.
func New(sensorsDB *sensors.Database, templates *template.Registry, sources Sources, ptrCache *ptr.Cache, output OutputSink, ptrDeadline time.Duration, clock Clock) *Context {
	if clock == nil {
		clock = time.Now
	}
	return &Context{
		Sensors:     sensorsDB,
		Templates:   templates,
		Sources:     sources,
		PTR:         ptrCache,
		PTRDeadline: ptrDeadline,
		Output:      output,
		Clock:       clock,
	}
}

// Enrichment composes the process-wide Sources with one Observation's
// scoped tables (home-nets, app/selector/interface) into the single
// handlers.Enrichment interface view a record's handler dispatch needs.
// It is built fresh per-record (a cheap struct wrapping pointers already
// owned elsewhere) rather than stored in Context, since the Observation
// varies per sensor and source-id.
type Enrichment struct {
	Sources     Sources
	Observation *sensors.Observation
}

func (e Enrichment) MACVendor(mac [6]byte) (string, bool) {
	if e.Sources.MACVendors == nil {
		return "", false
	}
	return e.Sources.MACVendors.Lookup(mac)
}

func (e Enrichment) MACName(mac [6]byte) (string, bool) {
	if e.Sources.MACNames == nil {
		return "", false
	}
	return e.Sources.MACNames.Lookup(mac)
}

func (e Enrichment) CountryCode(ip net.IP) (string, bool) {
	if e.Sources.GeoIP == nil {
		return "", false
	}
	return e.Sources.GeoIP.CountryCode(ip)
}

func (e Enrichment) ASNumber(ip net.IP) (uint32, bool) {
	if e.Sources.GeoIP == nil {
		return 0, false
	}
	asn, _, ok := e.Sources.GeoIP.ASNumber(ip)
	return asn, ok
}

func (e Enrichment) ApplicationName(id uint32) (string, bool) {
	if e.Observation == nil {
		return "", false
	}
	return e.Observation.ApplicationName(id)
}

func (e Enrichment) SelectorName(id uint64) (string, bool) {
	if e.Observation == nil {
		return "", false
	}
	return e.Observation.SelectorName(id)
}

func (e Enrichment) InterfaceName(id uint64) (string, bool) {
	if e.Observation == nil {
		return "", false
	}
	return e.Observation.InterfaceName(id)
}

func (e Enrichment) NetworkName(ip net.IP) (string, bool) {
	if e.Observation == nil {
		return "", false
	}
	return e.Observation.NetworkName(ip)
}

func (e Enrichment) FallbackFirstSwitch() int64 {
	if e.Observation == nil {
		return 0
	}
	return e.Observation.FallbackFirstSwitch()
}
