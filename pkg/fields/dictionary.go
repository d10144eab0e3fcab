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

// Package fields implements C3: the static (enterprise, field id) →
// {JSON key, expected length, handler} table the Record Assembler
// consults for every real wire field. It is deliberately a plain map, not
// a dynamically-extensible registry: spec.md §4.3 describes the dictionary
// as "a single source of truth", closed over a known field set.
package fields

import "github.com/flowforge/flowforge/pkg/handlers"

// Key identifies one field by its enterprise number (0 for IANA-assigned
// IEs) and field id, the same addressing NetFlow v9/IPFIX templates use.
type Key struct {
	PEN uint32
	ID  uint16
}

// Entry is everything the assembler needs to decode and render one field.
// WireLength is the field's IANA/NBAR-documented canonical length. It is
// informational only: no decode path reads it (the synthetic NetFlow v5
// template in pkg/template spells out its own lengths), and for fields
// arriving in a real v9/IPFIX template the template's own declared
// per-field length is what gets decoded, since exporters commonly
// reduce-encode counters to fewer bytes. A WireLength of -1 marks a field that is only
// ever variable-length on the wire.
type Entry struct {
	JSONKey    string
	WireLength int
	Handler    handlers.Tag
	Side       handlers.Side
}

// Dictionary is the immutable (enterprise, id) -> Entry table. Lookups use
// Dictionary[Key{...}] directly; a missing key means "no handler for this
// field", which the assembler treats as "skip it" without logging, per
// spec.md §4.1's decode-tolerance rule.
var Dictionary = map[Key]Entry{
	// Core IPv4/IPv6 address pair. save-ipv4-*/save-ipv6-* both save to the
	// Flow Cache and print, per spec.md §4.3.
	{0, 8}:  {"src", 4, handlers.SaveIPv4Src, handlers.SideNone},
	{0, 12}: {"dst", 4, handlers.SaveIPv4Dst, handlers.SideNone},
	{0, 27}: {"src", 16, handlers.SaveIPv6Src, handlers.SideNone},
	{0, 28}: {"dst", 16, handlers.SaveIPv6Dst, handlers.SideNone},

	// Ports: a single print-port handler, disambiguated by Side.
	{0, 7}:  {"src_port", 2, handlers.PrintPort, handlers.SideSrc},
	{0, 11}: {"dst_port", 2, handlers.PrintPort, handlers.SideDst},

	{0, 4}: {"l4_proto", 1, handlers.PrintProtoName, handlers.SideNone},

	{0, 1}: {"bytes", 4, handlers.PrintNumber, handlers.SideNone},
	{0, 2}: {"pkts", 4, handlers.PrintNumber, handlers.SideNone},
	{0, 85}: {"bytes", 8, handlers.PrintNumber, handlers.SideNone},
	{0, 86}: {"pkts", 8, handlers.PrintNumber, handlers.SideNone},

	{0, 22}: {"first_switched", 4, handlers.PrintFirstSwitched, handlers.SideNone},
	{0, 21}: {"last_switched", 4, handlers.PrintLastSwitched, handlers.SideNone},
	{0, 150}: {"first_switched", 4, handlers.PrintFirstSwitched, handlers.SideNone},
	{0, 151}: {"last_switched", 4, handlers.PrintLastSwitched, handlers.SideNone},

	// MAC addresses. sourceMacAddress/destinationMacAddress both save and
	// print (src_mac/dst_mac, with the MAC-name/vendor fallback chain);
	// post*MacAddress exist only to feed MAC direction inference and never
	// print, per spec.md §4.4's "uses post_dst_mac" rule.
	{0, 56}: {"src_mac", 6, handlers.SaveSrcMAC, handlers.SideNone},
	{0, 80}: {"dst_mac", 6, handlers.SaveDstMAC, handlers.SideNone},
	{0, 81}: {"", 6, handlers.SavePostSrcMAC, handlers.SideNone},
	{0, 57}: {"", 6, handlers.SavePostDstMAC, handlers.SideNone},

	// Explicit direction field; folds into the cache, never prints here
	// (spec.md §4.4/§4.5: re-emitted as a fixed epilogue by the assembler).
	{0, 61}: {"", 1, handlers.SaveDirection, handlers.SideNone},

	{0, 136}: {"flow_end_reason", 1, handlers.PrintFlowEndReason, handlers.SideNone},
	{0, 239}: {"biflow_direction", 1, handlers.PrintBiflowDirection, handlers.SideNone},

	// applicationId doubles as the option-template scope field (learns
	// applicationName) and the regular-template lookup key (prints the
	// learned name); the assembler's IsOption branch decides which.
	{0, 95}: {"application_id_name", -1, handlers.PrintApplicationID, handlers.SideNone},
	{0, 96}: {"application_name", -1, handlers.PrintString, handlers.SideNone},

	// engineId has no IANA IE; NetFlow v5 carries it in the fixed header
	// and the synthetic v5 template (pkg/template) exposes it as field id
	// 0xFFFE so it flows through the same dictionary-driven path as v9/
	// IPFIX engine-id option fields.
	{0, 0xFFFE}: {"engine_id_name", 1, handlers.PrintEngineID, handlers.SideNone},

	// Interface/selector option-populated names.
	{0, 10}:  {"in_if_name", 4, handlers.PrintInterfaceName, handlers.SideNone},
	{0, 14}:  {"out_if_name", 4, handlers.PrintInterfaceName, handlers.SideNone},
	{0, 302}: {"selector_name", 4, handlers.PrintSelectorName, handlers.SideNone},

	// NBAR-adjacent HTTP/TLS metadata, modeled as ordinary enterprise
	// fields (PEN 9, Cisco) rather than reproducing the original's raw
	// NBAR2 sub-selector byte matching — see DESIGN.md.
	{9, 12235}: {"http_url", -1, handlers.PrintHTTPURL, handlers.SideNone},
	{9, 12236}: {"http_host", -1, handlers.PrintHTTPHost, handlers.SideNone},
	{9, 12237}: {"http_user_agent", -1, handlers.PrintHTTPUserAgent, handlers.SideNone},
	{9, 12238}: {"http_referer", -1, handlers.PrintHTTPReferer, handlers.SideNone},
	{9, 12239}: {"https_common_name", -1, handlers.PrintHTTPSCommonName, handlers.SideNone},
}

// Lookup returns the Entry for (pen, id) and whether it was found.
func Lookup(pen uint32, id uint16) (Entry, bool) {
	e, ok := Dictionary[Key{PEN: pen, ID: id}]
	return e, ok
}
