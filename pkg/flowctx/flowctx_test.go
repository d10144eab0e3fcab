package flowctx

import (
	"net"
	"testing"

	"github.com/flowforge/flowforge/pkg/handlers"
	"github.com/flowforge/flowforge/pkg/sensors"
)

type stubGeoIP struct{}

func (stubGeoIP) CountryCode(ip net.IP) (string, bool) { return "US", true }
func (stubGeoIP) ASNumber(ip net.IP) (uint32, string, bool) {
	return 15169, "GOOGLE", true
}

func TestEnrichmentSatisfiesHandlersInterface(t *testing.T) {
	var _ handlers.Enrichment = Enrichment{}
}

func TestEnrichmentASNumberDropsNameForHandlerInterface(t *testing.T) {
	e := Enrichment{Sources: Sources{GeoIP: stubGeoIP{}}}
	asn, ok := e.ASNumber(net.ParseIP("8.8.8.8"))
	if !ok || asn != 15169 {
		t.Fatalf("got %d,%v", asn, ok)
	}
}

func TestEnrichmentNilSourcesAreMisses(t *testing.T) {
	e := Enrichment{}
	if _, ok := e.MACVendor([6]byte{}); ok {
		t.Error("expected miss with nil MACVendors source")
	}
	if _, ok := e.CountryCode(net.ParseIP("1.1.1.1")); ok {
		t.Error("expected miss with nil GeoIP source")
	}
}

func TestEnrichmentDelegatesToObservation(t *testing.T) {
	obs := sensors.NewObservation(1, sensors.ObservationConfig{})
	obs.AddApplication(0x03000050, "http")

	e := Enrichment{Observation: obs}
	name, ok := e.ApplicationName(0x03000050)
	if !ok || name != "http" {
		t.Fatalf("got %q,%v", name, ok)
	}
}
