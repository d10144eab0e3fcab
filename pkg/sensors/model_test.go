package sensors

import (
	"net"
	"testing"
)

func TestObservationInHomeNetAndRouterMAC(t *testing.T) {
	cfg := ObservationConfig{
		HomeNets:   []HomeNet{{Network: "10.0.0.0", NetworkName: "corp", Netmask: "8"}},
		RouterMACs: []string{"aa:bb:cc:dd:ee:ff"},
	}
	full := Config{"10.0.0.0/8": {Observations: map[string]ObservationConfig{"256": cfg}}}
	if err := full.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	obs := NewObservation(256, full["10.0.0.0/8"].Observations["256"])

	var addr [16]byte
	copy(addr[:], net.ParseIP("10.1.2.3").To16())
	if !obs.InHomeNet(addr) {
		t.Error("expected 10.1.2.3 to be in home net")
	}

	var outside [16]byte
	copy(outside[:], net.ParseIP("8.8.8.8").To16())
	if obs.InHomeNet(outside) {
		t.Error("expected 8.8.8.8 to not be in home net")
	}

	mac := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	if !obs.IsRouterMAC(mac) {
		t.Error("expected configured router MAC to match")
	}

	if name, ok := obs.NetworkName(net.ParseIP("10.1.2.3")); !ok || name != "corp" {
		t.Errorf("got (%q,%v), want (corp,true)", name, ok)
	}
	if cidr, ok := obs.NetworkCIDR(net.ParseIP("10.1.2.3")); !ok || cidr != "10.0.0.0/8" {
		t.Errorf("got (%q,%v), want (10.0.0.0/8,true)", cidr, ok)
	}
	if _, ok := obs.NetworkCIDR(net.ParseIP("8.8.8.8")); ok {
		t.Error("expected no network match outside home net")
	}
}

func TestSensorObserveCreatesOnDemand(t *testing.T) {
	s := NewSensor("10.0.0.0/8", SensorConfig{})
	o1 := s.Observe(42)
	o2 := s.Observe(42)
	if o1 != o2 {
		t.Error("expected repeat Observe calls to return the same Observation")
	}
}

func TestDatabaseObserveFallsBackForUnconfiguredSensor(t *testing.T) {
	db, err := NewDatabase(Config{})
	if err != nil {
		t.Fatal(err)
	}
	s := db.Observe(net.ParseIP("203.0.113.5"))
	if s == nil {
		t.Fatal("expected a fallback Sensor for an unconfigured exporter")
	}
}

func TestApplicationSelectorInterfaceNameTables(t *testing.T) {
	obs := NewObservation(1, ObservationConfig{})
	obs.AddApplication(0x03000050, "http")
	if name, ok := obs.ApplicationName(0x03000050); !ok || name != "http" {
		t.Errorf("got (%q,%v), want (http,true)", name, ok)
	}
	if _, ok := obs.ApplicationName(0xDEADBEEF); ok {
		t.Error("expected unknown application id to miss")
	}
}
