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

// Package sensors implements the sensor/observation data model of spec.md
// §4.1/§6: per-exporter configuration, the home-network and router-MAC
// lists an Observation uses for direction inference, and the scoped
// application/selector/interface name tables option templates populate.
package sensors

import (
	"encoding/json"
	"fmt"
	"net"

	"go.uber.org/multierr"
)

// HomeNet is one configured home network, per spec.md §6.
type HomeNet struct {
	Network     string `json:"network"`
	NetworkName string `json:"network_name"`
	Netmask     string `json:"netmask"`

	ipnet *net.IPNet
}

// ObservationConfig is the on-disk shape of one observation_id entry.
type ObservationConfig struct {
	HomeNets            []HomeNet `json:"home_nets"`
	RouterMACs          []string  `json:"routers_macs"`
	Enrichment          map[string]any `json:"enrichment"`
	SpanPort            bool `json:"span_port"`
	ExporterInWANSide   bool `json:"exporter_in_wan_side"`
	DNSClient           bool `json:"dns_client"`
	DNSTarget           bool `json:"dns_target"`
	FallbackFirstSwitch int  `json:"fallback_first_switch"`
}

// SensorConfig is the on-disk shape of one sensor entry, keyed by CIDR in
// the enclosing config file.
type SensorConfig struct {
	Observations map[string]ObservationConfig `json:"observations_id"`
}

// Config is the root of the sensor configuration file: sensors keyed by
// CIDR string, per spec.md §6.
type Config map[string]SensorConfig

// Loader abstracts reading and decoding the sensor configuration file; the
// concrete file-on-disk implementation is out of scope, per spec.md's
// Non-goals ("the sensor configuration file loader" is a named external
// collaborator).
type Loader interface {
	Load() (Config, error)
}

// JSONLoader reads Config from an already-open byte source, for callers
// that manage file opening/watching themselves.
type JSONLoader struct {
	Read func() ([]byte, error)
}

func (l JSONLoader) Load() (Config, error) {
	raw, err := l.Read()
	if err != nil {
		return nil, fmt.Errorf("sensors: load config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("sensors: decode config: %w", err)
	}
	return cfg, nil
}

// Validate parses every CIDR and netmask in cfg, aggregating all
// per-sensor errors with multierr rather than failing on the first bad
// entry, so one operator typo doesn't hide other mistakes in the same
// config load.
func (cfg Config) Validate() error {
	var errs error
	for cidr, sensor := range cfg {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sensor %q: %w", cidr, err))
			continue
		}
		for obsID, obs := range sensor.Observations {
			for i := range obs.HomeNets {
				hn := &obs.HomeNets[i]
				_, ipnet, err := net.ParseCIDR(hn.Network + "/" + hn.Netmask)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("sensor %q observation %q home_net %q: %w", cidr, obsID, hn.Network, err))
					continue
				}
				hn.ipnet = ipnet
			}
			for _, mac := range obs.RouterMACs {
				if _, err := net.ParseMAC(mac); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("sensor %q observation %q router_mac %q: %w", cidr, obsID, mac, err))
				}
			}
		}
	}
	return errs
}
