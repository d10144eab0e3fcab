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
	"net"

	"gopkg.in/yaml.v3"
)

// debugTemplate is the human-readable projection of one registered
// template, for the optional operator-facing YAML dump (not part of
// spec.md's binary persistence format, which Dump/Restore implement
// separately).
type debugTemplate struct {
	SensorIP      string  `yaml:"sensor_ip"`
	ObservationID uint32  `yaml:"observation_id"`
	TemplateID    uint16  `yaml:"template_id"`
	Fields        []Field `yaml:"fields"`
}

// DumpYAML renders every registered template as YAML, for debug
// introspection (e.g. an admin CLI or `/debug/templates` endpoint) rather
// than for restore.
func (r *Registry) DumpYAML() ([]byte, error) {
	snap := r.Snapshot()
	out := make([]debugTemplate, 0, len(snap))
	for key, t := range snap {
		out = append(out, debugTemplate{
			SensorIP:      net.IP(key.SensorIP[:]).String(),
			ObservationID: key.ObservationID,
			TemplateID:    key.TemplateID,
			Fields:        t.Fields,
		})
	}
	return yaml.Marshal(out)
}
