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

package wire

import "encoding/binary"

// SyntheticV5TemplateID is the built-in template id standing in for NetFlow
// v5's fixed 48-byte record layout, so v5 can be decoded by the same
// template-driven path as v9/IPFIX (spec.md §4.1).
const SyntheticV5TemplateID uint16 = 0xFFFF

// Kind classifies a flowset by its set id, per spec.md §4.1: set-id 0 (v9)
// or 2 (v10) is a template set, 1/3 is an options-template set, and >= 256
// is a data set whose id equals the template id that decodes it.
type Kind int

const (
	KindTemplate Kind = iota
	KindOptionsTemplate
	KindData
)

func classify(setID uint16) Kind {
	switch setID {
	case 0, 2:
		return KindTemplate
	case 1, 3:
		return KindOptionsTemplate
	default:
		return KindData
	}
}

// FlowsetRef is one flowset's header plus its still-undecoded payload. The
// Wire Reader only slices the datagram; decoding the payload against a
// template is C2/C7's job. TemplateID is set to SetID for data flowsets
// since spec.md defines them as equal.
type FlowsetRef struct {
	Kind       Kind
	SetID      uint16
	TemplateID uint16
	Payload    []byte
}

// Flowsets walks the flowset headers following a datagram's fixed header
// and returns a reference to each one's payload. It never copies payload
// bytes; callers that need to retain a FlowsetRef past the lifetime of the
// datagram buffer must copy explicitly.
//
// NetFlow v5 carries no flowset framing at all — callers should use
// SyntheticV5Flowset instead of Flowsets for v5 datagrams.
func Flowsets(datagram []byte, h Header) ([]FlowsetRef, error) {
	var out []FlowsetRef

	for len(datagram) > 0 {
		if len(datagram) < setHeaderLength {
			return out, TruncatedSet(0, setHeaderLength, len(datagram))
		}
		setID := binary.BigEndian.Uint16(datagram[0:2])
		length := binary.BigEndian.Uint16(datagram[2:4])

		if int(length) < setHeaderLength {
			return out, TruncatedSet(setID, int(length), len(datagram))
		}
		if int(length) > len(datagram) {
			return out, TruncatedSet(setID, int(length), len(datagram))
		}

		payload := datagram[setHeaderLength:length]
		kind := classify(setID)

		ref := FlowsetRef{Kind: kind, SetID: setID, Payload: payload}
		if kind == KindData {
			ref.TemplateID = setID
		}
		out = append(out, ref)

		datagram = datagram[length:]
	}

	return out, nil
}

// SyntheticV5Flowset wraps a buffer of NetFlow v5 records already rebuilt
// by ResolveV5Record (concatenated, no set framing) as a single KindData
// FlowsetRef against the
// built-in v5 template id, so the rest of the pipeline (C2 lookup, C7
// assembly) never has to special-case v5.
func SyntheticV5Flowset(body []byte) FlowsetRef {
	return FlowsetRef{
		Kind:       KindData,
		SetID:      SyntheticV5TemplateID,
		TemplateID: SyntheticV5TemplateID,
		Payload:    body,
	}
}
