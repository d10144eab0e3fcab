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

// Package template implements C2: the per-sensor / per-observation-domain
// template registry, plus the NetFlow v5 synthetic template that lets v5
// decode through the same template-driven path as v9/IPFIX.
package template

import (
	"fmt"
	"net"
)

// Field is one (enterprise, id, length) triple from a template record.
// Length 0xFFFF marks a variable-length field, per spec.md §4.1.
type Field struct {
	PEN    uint32
	ID     uint16
	Length uint16
}

// IsVariable reports whether the field's actual length is carried inline
// in each data record rather than fixed by the template.
func (f Field) IsVariable() bool {
	return f.Length == 0xFFFF
}

// Template is either a regular data template or an options template, per
// spec.md §4.2's "model as one Template variant with an is_option flag".
type Template struct {
	ID              uint16
	IsOption        bool
	ScopeFieldCount uint16 // only meaningful when IsOption
	Fields          []Field
}

// FixedLength returns the sum of all non-variable field lengths; variable
// length fields contribute nothing. For a template without variable fields
// this is the size of one data record.
func (t Template) FixedLength() int {
	n := 0
	for _, f := range t.Fields {
		if !f.IsVariable() {
			n += int(f.Length)
		}
	}
	return n
}

// HasVariableFields reports whether any field's length must be read
// inline from each data record.
func (t Template) HasVariableFields() bool {
	for _, f := range t.Fields {
		if f.IsVariable() {
			return true
		}
	}
	return false
}

// Key addresses one template within the registry: sensor + observation
// domain (NetFlow v9 source-id / IPFIX observation-domain-id) + template
// id. Two different sensors, or two observations of the same sensor, may
// reuse the same template id for unrelated layouts.
type Key struct {
	SensorIP       [16]byte
	ObservationID  uint32
	TemplateID     uint16
}

// NewKey builds a Key from a sensor IP (any length net.IP; shorter forms
// are zero-extended) plus observation and template id.
func NewKey(sensorIP net.IP, observationID uint32, templateID uint16) Key {
	var k Key
	ip := sensorIP.To16()
	copy(k.SensorIP[:], ip)
	k.ObservationID = observationID
	k.TemplateID = templateID
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d-%d", net.IP(k.SensorIP[:]), k.ObservationID, k.TemplateID)
}
