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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// FormatVersion is the current on-disk template-dump version. Dump always
// writes this value; Restore skips any record whose stored version
// differs, per spec.md §6: "On startup, entries with a non-current
// version are skipped."
const FormatVersion uint32 = 1

// Dump serializes every template in the registry to w using spec.md §6's
// exact binary layout:
//
//	version:u32, count:u32,
//	(sensor_ip:16, obs_id:u32, template_id:u16, field_count:u16,
//	 (pen:u32, field_id:u16, len:u16){field_count}
//	){count}
func (r *Registry) Dump(w io.Writer) error {
	snap := r.Snapshot()

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, FormatVersion); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(snap))); err != nil {
		return err
	}
	for key, t := range snap {
		buf.Write(key.SensorIP[:])
		if err := binary.Write(&buf, binary.BigEndian, key.ObservationID); err != nil {
			return err
		}
		if err := binary.Write(&buf, binary.BigEndian, key.TemplateID); err != nil {
			return err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(t.Fields))); err != nil {
			return err
		}
		for _, f := range t.Fields {
			if err := binary.Write(&buf, binary.BigEndian, f.PEN); err != nil {
				return err
			}
			if err := binary.Write(&buf, binary.BigEndian, f.ID); err != nil {
				return err
			}
			if err := binary.Write(&buf, binary.BigEndian, f.Length); err != nil {
				return err
			}
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Restore reads a Dump-produced stream and upserts every record whose
// version matches FormatVersion into r; records from another version are
// skipped rather than aborting the whole restore, per spec.md §6.
func (r *Registry) Restore(rd io.Reader) error {
	var version, count uint32
	if err := binary.Read(rd, binary.BigEndian, &version); err != nil {
		return fmt.Errorf("template: restore: read version: %w", err)
	}
	if err := binary.Read(rd, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("template: restore: read count: %w", err)
	}

	skip := version != FormatVersion

	for i := uint32(0); i < count; i++ {
		var key Key
		if _, err := io.ReadFull(rd, key.SensorIP[:]); err != nil {
			return fmt.Errorf("template: restore: record %d: sensor ip: %w", i, err)
		}
		if err := binary.Read(rd, binary.BigEndian, &key.ObservationID); err != nil {
			return fmt.Errorf("template: restore: record %d: observation id: %w", i, err)
		}
		if err := binary.Read(rd, binary.BigEndian, &key.TemplateID); err != nil {
			return fmt.Errorf("template: restore: record %d: template id: %w", i, err)
		}
		var fieldCount uint16
		if err := binary.Read(rd, binary.BigEndian, &fieldCount); err != nil {
			return fmt.Errorf("template: restore: record %d: field count: %w", i, err)
		}

		fields := make([]Field, fieldCount)
		for j := range fields {
			if err := binary.Read(rd, binary.BigEndian, &fields[j].PEN); err != nil {
				return fmt.Errorf("template: restore: record %d field %d: pen: %w", i, j, err)
			}
			if err := binary.Read(rd, binary.BigEndian, &fields[j].ID); err != nil {
				return fmt.Errorf("template: restore: record %d field %d: id: %w", i, j, err)
			}
			if err := binary.Read(rd, binary.BigEndian, &fields[j].Length); err != nil {
				return fmt.Errorf("template: restore: record %d field %d: len: %w", i, j, err)
			}
		}

		if skip {
			continue
		}
		r.Upsert(key, &Template{ID: key.TemplateID, Fields: fields})
	}

	return nil
}
