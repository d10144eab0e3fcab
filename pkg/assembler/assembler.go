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

// Package assembler implements C7, the Record Assembler: per-record JSON
// line construction from a resolved template plus a data record's raw
// bytes, per spec.md §4.7. It owns the one place spec.md Design Notes
// §9's Open Question 3bis resolves: direction and the keys that depend on
// it (client_mac, client_name, target_name, src_net*/dst_net*, country
// code, AS) are never bound to a real wire field, so they are emitted as a
// fixed epilogue after the template's real fields have all run, using the
// same handlers.Dispatch tagged-variant mechanism the per-field walk uses.
package assembler

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/flowforge/flowforge/pkg/fields"
	"github.com/flowforge/flowforge/pkg/flowcache"
	"github.com/flowforge/flowforge/pkg/flowctx"
	"github.com/flowforge/flowforge/pkg/flowlog"
	"github.com/flowforge/flowforge/pkg/handlers"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/sensors"
	"github.com/flowforge/flowforge/pkg/template"
	"github.com/flowforge/flowforge/pkg/wire"
)

// AssembleSet walks every data record in payload against tmpl, emitting one
// JSON line per record for a regular template. A flowset may hold as many
// records as fit in its length (spec.md §4.7); a trailing partial record
// shorter than one template record is truncated rather than erroring the
// whole flowset (Open Question decision 3 in DESIGN.md).
//
// An options template never emits lines: per spec.md §4.2/§9 "the Record
// Assembler branches on is_option to decide whether handler output is
// written to the line buffer or redirected to Observation lookup tables",
// each record instead teaches the Observation an id→name mapping via
// assembleOptionsOne.
func AssembleSet(fctx *flowctx.Context, sensor *sensors.Sensor, obsID uint32, tmpl *template.Template, payload []byte, datagramType string) [][]byte {
	obs := sensor.Observe(obsID)

	var lines [][]byte
	offset := 0
	for offset < len(payload) {
		var (
			consumed int
			line     []byte
			err      error
		)
		if tmpl.IsOption {
			consumed, err = assembleOptionsOne(obs, tmpl, payload[offset:])
		} else {
			line, consumed, err = assembleOne(fctx, obs, tmpl, payload[offset:], datagramType)
		}
		if err != nil {
			flowlog.FromContext(context.Background()).V(0).Info("short data flowset, truncating",
				"sensor", sensor.Network, "observation", obsID, "template", tmpl.ID,
				"remaining_bytes", len(payload)-offset, "error", err.Error())
			metrics.DroppedRecordsTotal.WithLabelValues("truncated_record").Inc()
			break
		}
		if line != nil {
			lines = append(lines, line)
			metrics.DecodedRecordsTotal.WithLabelValues(sensor.Network).Inc()
		}
		offset += consumed
	}
	return lines
}

// walkFields decodes record against tmpl's fields, calling visit(index,
// field, raw) for each one; shared between the regular per-field JSON walk
// and the options-record scope/name extraction below.
func walkFields(tmpl *template.Template, record []byte, visit func(i int, f template.Field, raw []byte)) (int, error) {
	offset := 0
	for i, f := range tmpl.Fields {
		var raw []byte
		if f.IsVariable() {
			length, prefixLen, ok := wire.VariableLengthPrefix(record[offset:])
			if !ok {
				return 0, fmt.Errorf("truncated variable-length prefix at offset %d", offset)
			}
			offset += prefixLen
			if offset+length > len(record) {
				return 0, fmt.Errorf("variable-length field of %d bytes overruns record at offset %d", length, offset)
			}
			raw = record[offset : offset+length]
			offset += length
		} else {
			n := int(f.Length)
			if offset+n > len(record) {
				return 0, fmt.Errorf("fixed field of %d bytes overruns record at offset %d", n, offset)
			}
			raw = record[offset : offset+n]
			offset += n
		}
		visit(i, f, raw)
	}
	return offset, nil
}

// assembleOne decodes exactly one regular-template record starting at
// record[0], returning the assembled line and the number of bytes consumed.
func assembleOne(fctx *flowctx.Context, obs *sensors.Observation, tmpl *template.Template, record []byte, datagramType string) ([]byte, int, error) {
	cache := flowcache.New()
	env := flowctx.Enrichment{Sources: fctx.Sources, Observation: obs}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	handlers.WriteString(&buf, &first, "type", datagramType)

	offset, err := walkFields(tmpl, record, func(_ int, f template.Field, raw []byte) {
		entry, ok := fields.Lookup(f.PEN, f.ID)
		if !ok {
			return
		}
		handlers.Dispatch(&buf, &first, entry.JSONKey, entry.Handler, entry.Side, raw, cache, env)
	})
	if err != nil {
		return nil, 0, err
	}

	appendEpilogue(fctx, obs, cache, env, &buf, &first)

	obs.AppendEnrichmentSuffix(&buf)
	buf.WriteByte('}')
	buf.WriteByte('\n')
	return buf.Bytes(), offset, nil
}

// assembleOptionsOne decodes one options-template record and teaches the
// Observation whatever id→name mapping it carries, per spec.md §4.2: the
// first ScopeFieldCount fields are the scope id (applicationId, selectorId,
// an interface index, ...), and the first field after the scope is the name
// string associated with it. Which Observation table the mapping belongs to
// is decided by the scope field's dictionary JSON key, not its position.
func assembleOptionsOne(obs *sensors.Observation, tmpl *template.Template, record []byte) (int, error) {
	var (
		scopeKey  string
		scopeID   uint64
		haveScope bool
		name      string
		haveName  bool
	)

	offset, err := walkFields(tmpl, record, func(i int, f template.Field, raw []byte) {
		if i < int(tmpl.ScopeFieldCount) {
			if haveScope {
				return // only the first scope field selects the table
			}
			scopeID = wire.Uint(raw)
			haveScope = true
			if entry, ok := fields.Lookup(f.PEN, f.ID); ok {
				scopeKey = entry.JSONKey
			}
			return
		}
		if haveName {
			return // only the first option field is the learned name
		}
		name = string(trimNul(raw))
		haveName = true
	})
	if err != nil {
		return 0, err
	}

	if haveScope && haveName {
		switch scopeKey {
		case "application_id_name":
			obs.AddApplication(scopeID, name)
		case "selector_name":
			obs.AddSelector(scopeID, name)
		case "in_if_name", "out_if_name":
			obs.AddInterface(scopeID, name)
		}
	}
	return offset, nil
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// appendEpilogue resolves direction and emits every key that depends on
// it, per Open Question 3bis. It runs strictly after the template's real
// fields have populated the Flow Cache.
func appendEpilogue(fctx *flowctx.Context, obs *sensors.Observation, cache *flowcache.Cache, env flowctx.Enrichment, buf *bytes.Buffer, first *bool) {
	cache.ResolveDirection(obs.SpanPort(), obs.IsRouterMAC, obs.InHomeNet)

	handlers.Dispatch(buf, first, "direction", handlers.PrintDirection, handlers.SideNone, nil, cache, env)

	if mac, ok := cache.ClientMAC(obs.SpanPort()); ok {
		handlers.Dispatch(buf, first, "client_mac", handlers.PrintClientMAC, handlers.SideNone, mac[:], cache, env)
	}

	resolveDNSNames(fctx, obs, cache)
	handlers.Dispatch(buf, first, "client_name", handlers.PrintClientName, handlers.SideNone, nil, cache, env)
	handlers.Dispatch(buf, first, "target_name", handlers.PrintTargetName, handlers.SideNone, nil, cache, env)

	appendNetworkKeys(obs, cache, buf, first)

	if cache.HaveSrc {
		src := net.IP(cache.SrcAddr[:])
		handlers.Dispatch(buf, first, "src_country_code", handlers.PrintCountryCode, handlers.SideNone, src.To16(), cache, env)
		handlers.Dispatch(buf, first, "src_as", handlers.PrintAS, handlers.SideNone, src.To16(), cache, env)
	}
	if cache.HaveDst {
		dst := net.IP(cache.DstAddr[:])
		handlers.Dispatch(buf, first, "dst_country_code", handlers.PrintCountryCode, handlers.SideNone, dst.To16(), cache, env)
		handlers.Dispatch(buf, first, "dst_as", handlers.PrintAS, handlers.SideNone, dst.To16(), cache, env)
	}
}

// appendNetworkKeys emits src_net/src_net_name and dst_net/dst_net_name
// using the Observation's home-network table directly, since network_ip
// (CIDR text) and network_name (operator label) are two distinct lookups
// over the same matched range, per the original's print_net/print_net_name
// split — not one handler tag trying to serve both.
func appendNetworkKeys(obs *sensors.Observation, cache *flowcache.Cache, buf *bytes.Buffer, first *bool) {
	if cache.HaveSrc {
		ip := net.IP(cache.SrcAddr[:])
		if cidr, ok := obs.NetworkCIDR(ip); ok {
			handlers.WriteString(buf, first, "src_net", cidr)
		}
		if name, ok := obs.NetworkName(ip); ok {
			handlers.WriteString(buf, first, "src_net_name", name)
		}
	}
	if cache.HaveDst {
		ip := net.IP(cache.DstAddr[:])
		if cidr, ok := obs.NetworkCIDR(ip); ok {
			handlers.WriteString(buf, first, "dst_net", cidr)
		}
		if name, ok := obs.NetworkName(ip); ok {
			handlers.WriteString(buf, first, "dst_net_name", name)
		}
	}
}

// resolveDNSNames issues PTR lookups for the client/target addresses when
// the Observation wants them, bounded by fctx.PTRDeadline per spec.md
// §4.6; a lapsed deadline simply leaves the Flow Cache's DNSName unset, so
// the subsequent PrintClientName/PrintTargetName dispatch omits the key.
func resolveDNSNames(fctx *flowctx.Context, obs *sensors.Observation, cache *flowcache.Cache) {
	if fctx.PTR == nil {
		return
	}

	if obs.WantClientDNS() {
		if ip, ok := cache.ClientIP(); ok {
			ctx, cancel := context.WithTimeout(context.Background(), fctx.PTRDeadline)
			if name, ok := fctx.PTR.Resolve(ctx, ip); ok {
				cache.ClientName = flowcache.Owning(name)
				metrics.PTRLookupsTotal.WithLabelValues("hit").Inc()
			} else {
				metrics.PTRLookupsTotal.WithLabelValues("miss").Inc()
			}
			cancel()
		}
	}
	if obs.WantTargetDNS() {
		if ip, ok := cache.TargetIP(); ok {
			ctx, cancel := context.WithTimeout(context.Background(), fctx.PTRDeadline)
			if name, ok := fctx.PTR.Resolve(ctx, ip); ok {
				cache.TargetName = flowcache.Owning(name)
				metrics.PTRLookupsTotal.WithLabelValues("hit").Inc()
			} else {
				metrics.PTRLookupsTotal.WithLabelValues("miss").Inc()
			}
			cancel()
		}
	}
}
