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

// Package handlers implements C5: the closed set of field handlers the
// Field Dictionary (pkg/fields) dispatches to. Design Notes §9 calls for a
// tagged variant dispatched with a single switch rather than virtual calls,
// so Tag is a plain enum and Dispatch is the one switch statement.
package handlers

// Tag identifies one of the handler variants named in spec.md §4.3.
type Tag uint8

const (
	Unknown Tag = iota

	PrintNumber
	PrintString
	PrintIPv4Addr
	PrintIPv6Addr
	PrintMAC
	PrintPort
	PrintProtoName
	PrintEngineID
	PrintApplicationID
	PrintDirection
	PrintFlowEndReason
	PrintBiflowDirection
	PrintCountryCode
	PrintAS
	PrintHTTPURL
	PrintHTTPHost
	PrintHTTPUserAgent
	PrintHTTPReferer
	PrintHTTPSCommonName
	PrintClientMAC
	PrintClientName
	PrintTargetName
	PrintFirstSwitched
	PrintLastSwitched
	PrintSelectorName
	PrintInterfaceName

	SaveSrcMAC
	SaveDstMAC
	SavePostSrcMAC
	SavePostDstMAC
	SaveDirection
	SaveIPv4Src
	SaveIPv4Dst
	SaveIPv6Src
	SaveIPv6Dst

	// saveOnly reports true for handlers whose emitted byte count must
	// always be treated as 0 regardless of what Dispatch computes
	// internally, per spec.md §4.3 ("the emitter treats 'save-only'
	// handlers as always returning 0").
)

// Side disambiguates which slot of the Flow Cache a directional handler
// (PrintPort, PrintMAC when used generically, ...) reads/writes. Most tags
// ignore it; it exists because spec.md's "print_src_port both save and
// print" and its dst counterpart are the same handler variant applied to
// two different template fields.
type Side uint8

const (
	SideNone Side = iota
	SideSrc
	SideDst
	SidePostSrc
	SidePostDst
)

// saveOnly holds the handful of tags with no corresponding output key at
// all: postSourceMacAddress/postDestinationMacAddress exist only to feed MAC
// direction inference (spec.md §4.4), and the explicit DIRECTION field is
// folded into the cache and re-emitted by the assembler's PrintDirection
// epilogue instead of printing here. SaveSrcMAC/SaveDstMAC/SaveIPv4Src/
// SaveIPv4Dst/SaveIPv6Src/SaveIPv6Dst are NOT save-only: spec.md §4.3 calls
// them out explicitly as "save and print" (src_mac/dst_mac/src/dst), so
// their handlers return a real byte count.
var saveOnly = map[Tag]bool{
	SavePostSrcMAC: true,
	SavePostDstMAC: true,
	SaveDirection:  true,
}

// IsSaveOnly reports whether tag never contributes to the output line.
func IsSaveOnly(tag Tag) bool {
	return saveOnly[tag]
}
