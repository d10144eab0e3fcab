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

// v5RawRecordLength is the on-the-wire size of one NetFlow v5 record,
// duplicated from pkg/template.V5RecordLength to avoid an import cycle
// (pkg/template already imports pkg/wire for SyntheticV5TemplateID).
const v5RawRecordLength = 48

// ResolveV5Record rebuilds one raw 48-byte NetFlow v5 record into the
// buffer shape pkg/template.V5's synthetic Template describes: the
// header's engine id prepended, and the record's SysUptime-relative
// first/last millisecond offsets widened into absolute 8-byte epoch
// milliseconds using the header's SysUptime/UnixSecs/UnixNsecs, per
// spec.md §4.1.
func ResolveV5Record(h Header, raw []byte) []byte {
	if len(raw) < v5RawRecordLength {
		return nil
	}

	bootMillis := int64(h.UnixSecs)*1000 + int64(h.UnixNsecs)/1_000_000 - int64(h.SysUptime)
	first := bootMillis + int64(binary.BigEndian.Uint32(raw[24:28]))
	last := bootMillis + int64(binary.BigEndian.Uint32(raw[28:32]))

	out := make([]byte, 0, 1+v5RawRecordLength+8)
	out = append(out, h.EngineID)
	out = append(out, raw[0:24]...) // srcaddr..output, dPkts, dOctets
	out = appendUint64(out, uint64(first))
	out = appendUint64(out, uint64(last))
	out = append(out, raw[32:48]...) // srcport..pad2
	return out
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
