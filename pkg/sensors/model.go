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
	"net"
	"sync"
)

// homeNetEntry is a resolved, ready-to-match home network.
type homeNetEntry struct {
	ipnet *net.IPNet
	name  string
}

func (e homeNetEntry) cidr() string {
	return e.ipnet.String()
}

// Observation is a sub-scope within a Sensor (NetFlow v9 source-id /
// IPFIX observation-domain-id), per spec.md §3's glossary entry. It is
// created on demand the first time a template references an unknown id
// and destroyed with its Sensor.
type Observation struct {
	ID uint32

	mu sync.RWMutex

	homeNets   []homeNetEntry
	routerMACs map[[6]byte]struct{}

	applications map[uint64]string
	selectors    map[uint64]string
	interfaces   map[uint64]string
	networks     []homeNetEntry

	enrichment       map[string]any
	enrichmentSuffix []byte

	spanPort            bool
	exporterInWANSide   bool
	wantClientDNS       bool
	wantTargetDNS       bool
	fallbackFirstSwitch int64
}

// NewObservation builds an Observation from its on-disk configuration.
// home nets whose CIDR failed to parse during Config.Validate are skipped.
func NewObservation(id uint32, cfg ObservationConfig) *Observation {
	o := &Observation{
		ID:                  id,
		routerMACs:          make(map[[6]byte]struct{}, len(cfg.RouterMACs)),
		applications:        make(map[uint64]string),
		selectors:           make(map[uint64]string),
		interfaces:          make(map[uint64]string),
		enrichment:          cfg.Enrichment,
		enrichmentSuffix:    renderEnrichmentSuffix(cfg.Enrichment),
		spanPort:            cfg.SpanPort,
		exporterInWANSide:   cfg.ExporterInWANSide,
		wantClientDNS:       cfg.DNSClient,
		wantTargetDNS:       cfg.DNSTarget,
		fallbackFirstSwitch: int64(cfg.FallbackFirstSwitch),
	}
	for _, hn := range cfg.HomeNets {
		if hn.ipnet == nil {
			continue
		}
		o.homeNets = append(o.homeNets, homeNetEntry{ipnet: hn.ipnet, name: hn.NetworkName})
	}
	for _, raw := range cfg.RouterMACs {
		mac, err := net.ParseMAC(raw)
		if err != nil || len(mac) != 6 {
			continue
		}
		var b [6]byte
		copy(b[:], mac)
		o.routerMACs[b] = struct{}{}
	}
	return o
}

func (o *Observation) SpanPort() bool          { return o.spanPort }
func (o *Observation) ExporterInWANSide() bool { return o.exporterInWANSide }
func (o *Observation) WantClientDNS() bool     { return o.wantClientDNS }
func (o *Observation) WantTargetDNS() bool     { return o.wantTargetDNS }
func (o *Observation) FallbackFirstSwitch() int64 { return o.fallbackFirstSwitch }
func (o *Observation) Enrichment() map[string]any { return o.enrichment }

// IsRouterMAC reports whether mac belongs to this observation's configured
// router-MAC set, per spec.md §4.4's MAC-inference tie-break.
func (o *Observation) IsRouterMAC(mac [6]byte) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.routerMACs[mac]
	return ok
}

// InHomeNet reports whether addr (IPv4-mapped IPv6 or native IPv6) falls
// in any configured home network, per spec.md §4.4's IP-inference tie-break.
func (o *Observation) InHomeNet(addr [16]byte) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ip := net.IP(addr[:])
	for _, hn := range o.homeNets {
		if hn.ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// NetworkName returns the configured name of the home network containing
// addr, for src_net_name/dst_net_name, per the original's network_name().
func (o *Observation) NetworkName(addr net.IP) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, hn := range o.homeNets {
		if hn.ipnet.Contains(addr) {
			return hn.name, true
		}
	}
	return "", false
}

// NetworkCIDR returns the CIDR text of the home network containing addr,
// for src_net/dst_net, per the original's network_ip() (named "ip" in the
// original but returning the network's CIDR string, not a single address).
func (o *Observation) NetworkCIDR(addr net.IP) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, hn := range o.homeNets {
		if hn.ipnet.Contains(addr) {
			return hn.cidr(), true
		}
	}
	return "", false
}

// AddApplication learns an applicationId -> name mapping from an option
// data record, per spec.md §4.2.
func (o *Observation) AddApplication(id uint64, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applications[id] = name
}

func (o *Observation) ApplicationName(id uint32) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	name, ok := o.applications[uint64(id)]
	return name, ok
}

func (o *Observation) AddSelector(id uint64, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selectors[id] = name
}

func (o *Observation) SelectorName(id uint64) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	name, ok := o.selectors[id]
	return name, ok
}

func (o *Observation) AddInterface(id uint64, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interfaces[id] = name
}

func (o *Observation) InterfaceName(id uint64) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	name, ok := o.interfaces[id]
	return name, ok
}

// Sensor is one configured NetFlow/IPFIX exporter, keyed by its source IP
// (CIDR in configuration, single address at runtime).
type Sensor struct {
	Network string

	mu           sync.RWMutex
	observations map[uint32]*Observation
	defaults     ObservationConfig
}

// NewSensor builds a Sensor from its parsed configuration. cfg's
// observation entries are realized lazily via Observe so that an id
// appearing only in a template (never explicitly configured) still gets a
// usable, zero-value Observation, per spec.md §3 "created on-demand".
func NewSensor(network string, cfg SensorConfig) *Sensor {
	s := &Sensor{
		Network:      network,
		observations: make(map[uint32]*Observation, len(cfg.Observations)),
	}
	for idStr, obsCfg := range cfg.Observations {
		id := parseObservationID(idStr)
		s.observations[id] = NewObservation(id, obsCfg)
	}
	return s
}

func parseObservationID(s string) uint32 {
	var id uint32
	for _, r := range s {
		if r < '0' || r > '9' {
			return id
		}
		id = id*10 + uint32(r-'0')
	}
	return id
}

// Observe returns the Observation for id, creating an empty one on first
// reference, per spec.md §3.
func (s *Sensor) Observe(id uint32) *Observation {
	s.mu.RLock()
	o, ok := s.observations[id]
	s.mu.RUnlock()
	if ok {
		return o
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.observations[id]; ok {
		return o
	}
	o = NewObservation(id, ObservationConfig{})
	s.observations[id] = o
	return o
}

// Database is the shared, read-mostly sensor→Observation table, per
// spec.md §5's "Shared state" description: readers take a shared lock,
// reloads take the writer lock.
type Database struct {
	mu      sync.RWMutex
	byNet   []*net.IPNet
	sensors map[*net.IPNet]*Sensor
}

// NewDatabase builds a Database from a loaded Config.
func NewDatabase(cfg Config) (*Database, error) {
	db := &Database{sensors: make(map[*net.IPNet]*Sensor, len(cfg))}
	for cidr, sensorCfg := range cfg {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		db.byNet = append(db.byNet, ipnet)
		db.sensors[ipnet] = NewSensor(cidr, sensorCfg)
	}
	return db, nil
}

// Reload atomically swaps in a freshly loaded Config under the writer
// lock, per spec.md §5.
func (db *Database) Reload(cfg Config) error {
	next, err := NewDatabase(cfg)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.byNet = next.byNet
	db.sensors = next.sensors
	return nil
}

// Observe returns the Sensor whose configured network contains ip,
// creating a network-less ad hoc Sensor for unconfigured exporters so
// decoding can still proceed (spec.md's out-of-scope note: "validating
// exporter identity beyond source-IP-to-sensor mapping" is not required).
func (db *Database) Observe(ip net.IP) *Sensor {
	db.mu.RLock()
	for _, n := range db.byNet {
		if n.Contains(ip) {
			s := db.sensors[n]
			db.mu.RUnlock()
			return s
		}
	}
	db.mu.RUnlock()
	return NewSensor(ip.String(), SensorConfig{})
}
