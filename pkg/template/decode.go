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

import (
	"encoding/binary"
	"fmt"
)

const enterpriseBit = uint16(0x8000)

// Named is one decoded template record plus the id it was registered
// under; a single template-set flowset payload may carry several back to
// back, per spec.md §4.1/§4.2.
type Named struct {
	ID       uint16
	Template *Template
}

// DecodeTemplateSet parses every regular template record in a template-set
// flowset's payload, following the teacher's field-by-field layout
// (`template_record.go`'s `Decode`): a 2-byte template id, a 2-byte field
// count, then that many (field id, length[, PEN]) triples, with the
// top bit of the field id marking an enterprise (PEN-qualified) field.
func DecodeTemplateSet(payload []byte) ([]Named, error) {
	var out []Named
	for len(payload) > 0 {
		if len(payload) < 4 {
			return out, fmt.Errorf("template: truncated template record header, %d bytes left", len(payload))
		}
		id := binary.BigEndian.Uint16(payload[0:2])
		count := binary.BigEndian.Uint16(payload[2:4])
		if count == 0 {
			return out, fmt.Errorf("template: template %d declares zero fields", id)
		}
		payload = payload[4:]

		fields := make([]Field, 0, count)
		for i := 0; i < int(count); i++ {
			f, rest, err := decodeField(payload)
			if err != nil {
				return out, fmt.Errorf("template %d field %d: %w", id, i, err)
			}
			fields = append(fields, f)
			payload = rest
		}
		out = append(out, Named{ID: id, Template: &Template{ID: id, Fields: fields}})
	}
	return out, nil
}

// DecodeOptionsTemplateSet parses every options-template record in an
// options-template-set flowset's payload: a 2-byte template id, a 2-byte
// total field count, a 2-byte scope field count, then that many scope
// fields followed by the remaining option fields — the same field-count
// based layout the teacher's `options_template_record.go` uses (IPFIX
// style; NetFlow v9's older byte-length variant is not emitted by any
// exporter this pipeline targets).
func DecodeOptionsTemplateSet(payload []byte) ([]Named, error) {
	var out []Named
	for len(payload) > 0 {
		if len(payload) < 6 {
			return out, fmt.Errorf("template: truncated options template record header, %d bytes left", len(payload))
		}
		id := binary.BigEndian.Uint16(payload[0:2])
		fieldCount := binary.BigEndian.Uint16(payload[2:4])
		scopeCount := binary.BigEndian.Uint16(payload[4:6])
		if scopeCount == 0 || scopeCount > fieldCount {
			return out, fmt.Errorf("template: options template %d has invalid scope field count %d of %d", id, scopeCount, fieldCount)
		}
		payload = payload[6:]

		fields := make([]Field, 0, fieldCount)
		for i := 0; i < int(fieldCount); i++ {
			f, rest, err := decodeField(payload)
			if err != nil {
				return out, fmt.Errorf("options template %d field %d: %w", id, i, err)
			}
			fields = append(fields, f)
			payload = rest
		}
		out = append(out, Named{ID: id, Template: &Template{
			ID: id, IsOption: true, ScopeFieldCount: scopeCount, Fields: fields,
		}})
	}
	return out, nil
}

func decodeField(b []byte) (Field, []byte, error) {
	if len(b) < 4 {
		return Field{}, nil, fmt.Errorf("truncated field, %d bytes left", len(b))
	}
	rawID := binary.BigEndian.Uint16(b[0:2])
	length := binary.BigEndian.Uint16(b[2:4])
	b = b[4:]

	if rawID&enterpriseBit == 0 {
		return Field{PEN: 0, ID: rawID, Length: length}, b, nil
	}

	if len(b) < 4 {
		return Field{}, nil, fmt.Errorf("truncated enterprise number, %d bytes left", len(b))
	}
	pen := binary.BigEndian.Uint32(b[0:4])
	return Field{PEN: pen, ID: rawID &^ enterpriseBit, Length: length}, b[4:], nil
}
