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

// Package wire implements C1, the Wire Reader: datagram header parsing and
// flowset iteration, shared with the byte-level decode primitives the field
// handlers use.
package wire

import "encoding/binary"

const (
	v5HeaderLength = 24
	// v9 and IPFIX share the same 16-byte header shape: version, a
	// count-or-length word, export time, sequence number, and the
	// observation domain / source id.
	v9HeaderLength    = 16
	ipfixHeaderLength = 16

	setHeaderLength = 4
)

// Header is the decoded datagram header, normalized across v5/v9/IPFIX so
// the rest of the pipeline (C2-C8) doesn't need to branch on version beyond
// this point.
type Header struct {
	Version Version

	// Count is the declared record count for v5/v9. It is informational
	// for IPFIX, where Length is authoritative instead.
	Count uint16

	// Length is the declared total message length, for IPFIX only.
	Length uint16

	ExportTime     uint32
	SequenceNumber uint32

	// ObservationDomainId is the v9 Source ID / IPFIX Observation Domain
	// ID. Zero (and meaningless) for v5.
	ObservationDomainId uint32

	// v5-only fields, kept for completeness of the synthetic v5 decode path.
	SysUptime        uint32
	UnixSecs         uint32
	UnixNsecs        uint32
	EngineType       uint8
	EngineID         uint8
	SamplingInterval uint16
}

// HeaderLength returns the number of header bytes for the datagram's
// version, or 0 if the version is unrecognized.
func HeaderLength(v Version) int {
	switch v {
	case NetFlowV5:
		return v5HeaderLength
	case NetFlowV9:
		return v9HeaderLength
	case IPFIX:
		return ipfixHeaderLength
	default:
		return 0
	}
}

// DecodeHeader parses the leading bytes of datagram as a header. It first
// peeks the version, then dispatches to the version-specific fixed layout.
// Per spec.md §4.1, a truncated header or unrecognized version is reported
// as an error so the caller (the worker dispatcher) can drop the datagram
// with a logged warning — there is no partial output.
func DecodeHeader(datagram []byte) (Header, int, error) {
	if len(datagram) < 2 {
		return Header{}, 0, TruncatedHeader(len(datagram), 2)
	}
	version := Version(binary.BigEndian.Uint16(datagram))
	if !version.Valid() {
		return Header{}, 0, UnknownVersion(version)
	}

	need := HeaderLength(version)
	if len(datagram) < need {
		return Header{}, 0, TruncatedHeader(len(datagram), need)
	}

	var h Header
	h.Version = version

	switch version {
	case NetFlowV5:
		h.Count = binary.BigEndian.Uint16(datagram[2:4])
		h.SysUptime = binary.BigEndian.Uint32(datagram[4:8])
		h.UnixSecs = binary.BigEndian.Uint32(datagram[8:12])
		h.UnixNsecs = binary.BigEndian.Uint32(datagram[12:16])
		h.SequenceNumber = binary.BigEndian.Uint32(datagram[16:20])
		h.EngineType = datagram[20]
		h.EngineID = datagram[21]
		h.SamplingInterval = binary.BigEndian.Uint16(datagram[22:24])
	case NetFlowV9:
		h.Count = binary.BigEndian.Uint16(datagram[2:4])
		h.ExportTime = binary.BigEndian.Uint32(datagram[4:8])
		h.SequenceNumber = binary.BigEndian.Uint32(datagram[8:12])
		h.ObservationDomainId = binary.BigEndian.Uint32(datagram[12:16])
	case IPFIX:
		h.Length = binary.BigEndian.Uint16(datagram[2:4])
		h.ExportTime = binary.BigEndian.Uint32(datagram[4:8])
		h.SequenceNumber = binary.BigEndian.Uint32(datagram[8:12])
		h.ObservationDomainId = binary.BigEndian.Uint32(datagram[12:16])
	}

	return h, need, nil
}
