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

package template

import "github.com/flowforge/flowforge/pkg/wire"

// reservedPEN marks synthetic v5 record bytes that have no Field
// Dictionary entry (pad bytes, AS/mask bytes spec.md's field set doesn't
// cover) — a sequential id under this PEN is guaranteed never to collide
// with a real dictionary entry, so the generic per-field walk silently
// skips them exactly as it would an unrecognized v9/IPFIX field.
const reservedPEN uint32 = 0xFFFFFFFF

// V5RecordLength is the fixed size of one NetFlow v5 flow record as it
// appears on the wire; the ingest dispatcher uses this to split a v5
// datagram body into as many whole 48-byte records as it holds before
// resolution (the header's Count is not consulted, and trailing bytes
// shorter than one record are ignored).
const V5RecordLength = 48

// V5 returns the built-in Template standing in for NetFlow v5's flow
// record layout (spec.md §4.1), keyed by wire.SyntheticV5TemplateID so it
// is looked up exactly like any wire-learned template.
//
// Its Fields describe the RESOLVED per-record buffer the Wire Reader
// builds from each raw 48-byte record, not the raw wire bytes themselves:
// the 1-byte engine id is prepended from the datagram header (NetFlow v5
// carries it there, not in the record), and first/last are widened from
// their raw 4-byte SysUptime-relative encoding to pre-resolved 8-byte
// absolute millisecond timestamps, combining the header's
// SysUptime/UnixSecs/UnixNsecs — both transforms spec.md's §4.1 "16- or
// 24-byte header" note implies are needed before v5 can flow through the
// same template-driven field walk as v9/IPFIX.
func V5() *Template {
	return &Template{
		ID: wire.SyntheticV5TemplateID,
		Fields: []Field{
			{PEN: 0, ID: 0xFFFE, Length: 1},       // engine id (from header, prepended)
			{PEN: 0, ID: 8, Length: 4},            // srcaddr -> src
			{PEN: 0, ID: 12, Length: 4},           // dstaddr -> dst
			{PEN: reservedPEN, ID: 1, Length: 4},  // nexthop
			{PEN: 0, ID: 10, Length: 2},           // input -> in_if_name
			{PEN: 0, ID: 14, Length: 2},           // output -> out_if_name
			{PEN: 0, ID: 2, Length: 4},            // dPkts -> pkts
			{PEN: 0, ID: 1, Length: 4},            // dOctets -> bytes
			{PEN: 0, ID: 22, Length: 8},           // first -> first_switched (pre-resolved, abs ms)
			{PEN: 0, ID: 21, Length: 8},           // last -> last_switched (pre-resolved, abs ms)
			{PEN: 0, ID: 7, Length: 2},            // srcport -> src_port
			{PEN: 0, ID: 11, Length: 2},           // dstport -> dst_port
			{PEN: reservedPEN, ID: 2, Length: 1},  // pad1
			{PEN: reservedPEN, ID: 3, Length: 1},  // tcp_flags
			{PEN: 0, ID: 4, Length: 1},            // prot -> l4_proto
			{PEN: reservedPEN, ID: 9, Length: 1},  // tos
			{PEN: reservedPEN, ID: 4, Length: 2},  // src_as
			{PEN: reservedPEN, ID: 5, Length: 2},  // dst_as
			{PEN: reservedPEN, ID: 6, Length: 1},  // src_mask
			{PEN: reservedPEN, ID: 7, Length: 1},  // dst_mask
			{PEN: reservedPEN, ID: 8, Length: 2},  // pad2
		},
	}
}
