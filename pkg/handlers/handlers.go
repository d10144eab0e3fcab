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

package handlers

import (
	"bytes"
	"fmt"
	"net"
	"strconv"

	"github.com/flowforge/flowforge/pkg/flowcache"
	"github.com/flowforge/flowforge/pkg/wire"
)

// Enrichment bundles the lookup services a handful of handlers consult.
// Defined here rather than imported from pkg/enrich so pkg/handlers stays a
// one-way dependency on pkg/flowcache/pkg/wire only; pkg/enrich's concrete
// types satisfy this interface structurally.
type Enrichment interface {
	MACVendor(mac [6]byte) (string, bool)
	MACName(mac [6]byte) (string, bool)
	CountryCode(ip net.IP) (string, bool)
	ASNumber(ip net.IP) (uint32, bool)
	ApplicationName(id uint32) (string, bool)
	SelectorName(id uint64) (string, bool)
	InterfaceName(id uint64) (string, bool)
	NetworkName(ip net.IP) (string, bool)
	FallbackFirstSwitch() int64
}

// macLabel implements spec.md §4.3's MAC-name/MAC-vendor fallback chain:
// a configured label overrides the vendor lookup; without a label, a vendor
// match renders as "<vendor>:xx:xx:xx" (the last three octets); with
// neither, it falls back to the raw colon-hex MAC.
func macLabel(env Enrichment, mac [6]byte) string {
	if env != nil {
		if name, ok := env.MACName(mac); ok {
			return name
		}
		if vendor, ok := env.MACVendor(mac); ok {
			return fmt.Sprintf("%s:%02x:%02x:%02x", vendor, mac[3], mac[4], mac[5])
		}
	}
	return wire.MAC48(mac)
}

func writeComma(buf *bytes.Buffer, first *bool) {
	if *first {
		*first = false
		return
	}
	buf.WriteByte(',')
}

func writeKey(buf *bytes.Buffer, first *bool, key string) {
	writeComma(buf, first)
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
}

func writeNumber(buf *bytes.Buffer, first *bool, key string, v int64) {
	writeKey(buf, first, key)
	buf.WriteString(strconv.FormatInt(v, 10))
}

func writeString(buf *bytes.Buffer, first *bool, key string, s string) {
	writeKey(buf, first, key)
	buf.WriteString(strconv.Quote(s))
}

// WriteString and WriteNumber expose the same comma/brace bookkeeping
// Dispatch uses internally, for the assembler's derived-key epilogue
// (direction, client_mac, client_name, target_name, src_net/src_net_name,
// country code, AS — spec.md Open Question 3bis) which has no real wire
// field to dispatch on but still must share one "first" flag and one
// JSON line buffer with the template-driven field walk.
func WriteString(buf *bytes.Buffer, first *bool, key string, s string) {
	writeString(buf, first, key, s)
}

func WriteNumber(buf *bytes.Buffer, first *bool, key string, v int64) {
	writeNumber(buf, first, key, v)
}

func trimNul(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

var protoNames = map[uint64]string{
	1: "icmp", 6: "tcp", 17: "udp", 47: "gre", 50: "esp", 58: "icmpv6", 132: "sctp",
}

var flowEndReasons = map[uint64]string{
	1: "idle timeout", 2: "active timeout", 3: "end of flow", 4: "forced end", 5: "lack of resources",
}

var biflowDirections = map[uint64]string{
	0: "arbitrary", 1: "initiator", 2: "reverse initiator", 3: "perimeter",
}

// Dispatch is the one switch statement C5's ~30 handler variants reduce to,
// per spec.md Design Notes §9. raw is the field's still-undecoded bytes,
// already sliced to its wire length by the caller. side disambiguates a
// handler shared between a src and a dst template field. cache is the
// current record's Flow Cache; env may be nil, in which case name lookups
// degrade to printing the raw numeric/address form, and the country-code
// and AS handlers print nothing.
//
// Dispatch returns whether it appended anything to buf; handlers tagged
// save-only (IsSaveOnly) always return false even though they may still
// mutate cache.
func Dispatch(buf *bytes.Buffer, first *bool, key string, tag Tag, side Side, raw []byte, cache *flowcache.Cache, env Enrichment) bool {
	switch tag {
	case PrintNumber:
		writeNumber(buf, first, key, wire.Int(raw))
		return true

	case PrintString:
		writeString(buf, first, key, string(trimNul(raw)))
		return true

	case PrintIPv4Addr:
		if len(raw) < 4 {
			return false
		}
		var b [4]byte
		copy(b[:], raw)
		addr := wire.IPv4ToIPv6(b)
		writeString(buf, first, key, net.IP(addr[:]).String())
		return true

	case PrintIPv6Addr:
		if len(raw) < 16 {
			return false
		}
		writeString(buf, first, key, net.IP(raw[:16]).String())
		return true

	case PrintMAC:
		if len(raw) < 6 {
			return false
		}
		var b [6]byte
		copy(b[:], raw)
		writeString(buf, first, key, wire.MAC48(b))
		return true

	case PrintPort:
		port := uint16(wire.Uint(raw))
		switch side {
		case SideSrc:
			cache.SrcPort = port
		case SideDst:
			cache.DstPort = port
		}
		writeNumber(buf, first, key, int64(port))
		return true

	case PrintProtoName:
		n := wire.Uint(raw)
		if name, ok := protoNames[n]; ok {
			writeString(buf, first, key, name)
		} else {
			writeNumber(buf, first, key, int64(n))
		}
		return true

	case PrintEngineID:
		writeNumber(buf, first, key, int64(wire.Uint(raw)))
		return true

	case PrintApplicationID:
		id := uint32(wire.Uint(raw))
		if env != nil {
			if name, ok := env.ApplicationName(id); ok {
				writeString(buf, first, key, name)
				return true
			}
		}
		writeNumber(buf, first, key, int64(id))
		return true

	case PrintDirection:
		if cache.Direction == flowcache.Unset {
			return false
		}
		writeString(buf, first, key, cache.Direction.String())
		return true

	case PrintFlowEndReason:
		n := wire.Uint(raw)
		if name, ok := flowEndReasons[n]; ok {
			writeString(buf, first, key, name)
		} else {
			writeNumber(buf, first, key, int64(n))
		}
		return true

	case PrintBiflowDirection:
		n := wire.Uint(raw)
		if name, ok := biflowDirections[n]; ok {
			writeString(buf, first, key, name)
		} else {
			writeNumber(buf, first, key, int64(n))
		}
		return true

	case PrintCountryCode:
		ip := addrFromRaw(raw)
		if ip == nil || env == nil {
			return false
		}
		code, ok := env.CountryCode(ip)
		if !ok {
			return false
		}
		writeString(buf, first, key, code)
		return true

	case PrintAS:
		ip := addrFromRaw(raw)
		if ip == nil || env == nil {
			return false
		}
		asn, ok := env.ASNumber(ip)
		if !ok {
			return false
		}
		writeNumber(buf, first, key, int64(asn))
		return true

	case PrintHTTPURL, PrintHTTPHost, PrintHTTPUserAgent, PrintHTTPReferer, PrintHTTPSCommonName:
		writeString(buf, first, key, string(trimNul(raw)))
		return true

	case PrintClientMAC:
		if cache.ClientMACPrinted() || len(raw) < 6 {
			return false
		}
		var b [6]byte
		copy(b[:], raw)
		writeString(buf, first, key, macLabel(env, b))
		cache.MarkClientMACPrinted()
		return true

	case PrintClientName:
		name, ok := cache.ClientName.Resolve()
		if !ok {
			return false
		}
		writeString(buf, first, key, name)
		return true

	case PrintTargetName:
		name, ok := cache.TargetName.Resolve()
		if !ok {
			return false
		}
		writeString(buf, first, key, name)
		return true

	case PrintFirstSwitched, PrintLastSwitched:
		v := int64(wire.Uint(raw))
		if v == 0 && env != nil {
			v = env.FallbackFirstSwitch()
		}
		writeNumber(buf, first, key, v)
		return true

	case PrintSelectorName:
		id := wire.Uint(raw)
		if env != nil {
			if name, ok := env.SelectorName(id); ok {
				writeString(buf, first, key, name)
				return true
			}
		}
		writeNumber(buf, first, key, int64(id))
		return true

	case PrintInterfaceName:
		id := wire.Uint(raw)
		if env != nil {
			if name, ok := env.InterfaceName(id); ok {
				writeString(buf, first, key, name)
				return true
			}
		}
		writeNumber(buf, first, key, int64(id))
		return true

	case SaveSrcMAC:
		if len(raw) < 6 {
			return false
		}
		var b [6]byte
		copy(b[:], raw)
		cache.SetSrcMAC(b)
		writeString(buf, first, key, macLabel(env, b))
		return true

	case SaveDstMAC:
		if len(raw) < 6 {
			return false
		}
		var b [6]byte
		copy(b[:], raw)
		cache.SetDstMAC(b)
		writeString(buf, first, key, macLabel(env, b))
		return true

	case SavePostSrcMAC:
		if len(raw) >= 6 {
			var b [6]byte
			copy(b[:], raw)
			cache.SetPostSrcMAC(b)
		}
		return false

	case SavePostDstMAC:
		if len(raw) >= 6 {
			var b [6]byte
			copy(b[:], raw)
			cache.SetPostDstMAC(b)
		}
		return false

	case SaveDirection:
		d := flowcache.Unset
		switch wire.Uint(raw) {
		case 0:
			d = flowcache.Ingress
		case 1:
			d = flowcache.Egress
		}
		if d != flowcache.Unset {
			cache.SetDirection(d, true)
		}
		return false

	case SaveIPv4Src:
		if len(raw) < 4 {
			return false
		}
		var b [4]byte
		copy(b[:], raw)
		addr := wire.IPv4ToIPv6(b)
		cache.SetSrc(addr)
		writeString(buf, first, key, net.IP(addr[:]).String())
		return true

	case SaveIPv4Dst:
		if len(raw) < 4 {
			return false
		}
		var b [4]byte
		copy(b[:], raw)
		addr := wire.IPv4ToIPv6(b)
		cache.SetDst(addr)
		writeString(buf, first, key, net.IP(addr[:]).String())
		return true

	case SaveIPv6Src:
		if len(raw) < 16 {
			return false
		}
		var b [16]byte
		copy(b[:], raw)
		cache.SetSrc(b)
		writeString(buf, first, key, net.IP(b[:]).String())
		return true

	case SaveIPv6Dst:
		if len(raw) < 16 {
			return false
		}
		var b [16]byte
		copy(b[:], raw)
		cache.SetDst(b)
		writeString(buf, first, key, net.IP(b[:]).String())
		return true

	default:
		return false
	}
}

// addrFromRaw accepts either a 4-byte or 16-byte address field, the two
// widths spec.md's enrichment-lookup fields (country code, AS, network
// name) can arrive in.
func addrFromRaw(raw []byte) net.IP {
	switch len(raw) {
	case 4:
		var b [4]byte
		copy(b[:], raw)
		addr := wire.IPv4ToIPv6(b)
		return net.IP(addr[:])
	case 16:
		return net.IP(raw[:16])
	default:
		return nil
	}
}
