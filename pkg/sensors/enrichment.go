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

package sensors

import (
	"bytes"
	"encoding/json"
)

// renderEnrichmentSuffix marshals cfg's enrichment map exactly once at
// Observation construction time, so every line emitted for this
// observation appends byte-identical bytes (spec.md §8 universal 4:
// "the sensor enrichment suffix appears exactly once per line and is
// byte-identical to the configured value"). json.Marshal of a
// map[string]any sorts keys lexically, so this is deterministic across
// calls even though Go map iteration order is not.
func renderEnrichmentSuffix(m map[string]any) []byte {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil || len(b) < 2 {
		return nil
	}
	return b[1 : len(b)-1] // strip the object's own braces; caller splices this into a larger object
}

// AppendEnrichmentSuffix writes the comma-prefixed enrichment fragment to
// buf, or nothing if this observation has no configured enrichment.
func (o *Observation) AppendEnrichmentSuffix(buf *bytes.Buffer) {
	if len(o.enrichmentSuffix) == 0 {
		return
	}
	buf.WriteByte(',')
	buf.Write(o.enrichmentSuffix)
}
