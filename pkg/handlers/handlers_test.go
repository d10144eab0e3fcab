package handlers

import (
	"bytes"
	"net"
	"testing"

	"github.com/flowforge/flowforge/pkg/flowcache"
)

func TestDispatchPrintIPv4Addr(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	ok := Dispatch(buf, &first, "next_hop", PrintIPv4Addr, SideNone, []byte{192, 0, 2, 1}, flowcache.New(), nil)
	if !ok {
		t.Fatal("expected write")
	}
	if got, want := buf.String(), `"next_hop":"192.0.2.1"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDispatchSaveIPv4SrcSavesAndPrints(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	c := flowcache.New()
	ok := Dispatch(buf, &first, "src", SaveIPv4Src, SideNone, []byte{10, 0, 0, 1}, c, nil)
	if !ok {
		t.Fatal("expected SaveIPv4Src to print, not just save")
	}
	if !c.HaveSrc {
		t.Fatal("expected cache.HaveSrc to be set")
	}
	if got, want := buf.String(), `"src":"10.0.0.1"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDispatchSavePostDstMACNeverPrints(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	c := flowcache.New()
	mac := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	ok := Dispatch(buf, &first, "post_dst_mac", SavePostDstMAC, SideNone, mac, c, nil)
	if ok {
		t.Fatal("SavePostDstMAC must never contribute to output")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no bytes written, got %q", buf.String())
	}
	if !c.HavePostDstMAC {
		t.Fatal("expected post dst mac to be saved for direction inference")
	}
	if !IsSaveOnly(SavePostDstMAC) {
		t.Fatal("SavePostDstMAC must be registered save-only")
	}
}

func TestDispatchSaveDirectionIsExplicitAndNeverOverwritten(t *testing.T) {
	c := flowcache.New()
	buf := &bytes.Buffer{}
	first := true

	Dispatch(buf, &first, "direction", SaveDirection, SideNone, []byte{0x01}, c, nil)
	if c.Direction != flowcache.Egress {
		t.Fatalf("expected explicit egress, got %v", c.Direction)
	}
	if !c.DirectionExplicit() {
		t.Fatal("expected direction to be marked explicit")
	}

	c.ResolveDirection(false, func([6]byte) bool { return true }, func([16]byte) bool { return true })
	if c.Direction != flowcache.Egress {
		t.Fatal("inference must never override an explicit direction")
	}
}

func TestDispatchMultipleFieldsComma(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	c := flowcache.New()
	Dispatch(buf, &first, "bytes", PrintNumber, SideNone, []byte{0x00, 0x00, 0x01, 0x00}, c, nil)
	Dispatch(buf, &first, "pkts", PrintNumber, SideNone, []byte{0x00, 0x02}, c, nil)
	if got, want := buf.String(), `"bytes":256,"pkts":2`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

type stubEnrichment struct{}

func (stubEnrichment) MACVendor(mac [6]byte) (string, bool) { return "Acme", true }
func (stubEnrichment) MACName(mac [6]byte) (string, bool)   { return "", false }
func (stubEnrichment) CountryCode(ip net.IP) (string, bool) { return "DE", true }
func (stubEnrichment) ASNumber(ip net.IP) (uint32, bool)    { return 64512, true }
func (stubEnrichment) ApplicationName(id uint32) (string, bool) {
	return "", false
}
func (stubEnrichment) SelectorName(id uint64) (string, bool)   { return "", false }
func (stubEnrichment) InterfaceName(id uint64) (string, bool)  { return "", false }
func (stubEnrichment) NetworkName(ip net.IP) (string, bool)    { return "", false }
func (stubEnrichment) FallbackFirstSwitch() int64              { return 1700000000 }

func TestDispatchSaveSrcMACFallsBackToVendor(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	c := flowcache.New()
	mac := []byte{0xac, 0x74, 0xb1, 0x88, 0x3a, 0xa5}
	Dispatch(buf, &first, "src_mac", SaveSrcMAC, SideNone, mac, c, stubEnrichment{})
	if got, want := buf.String(), `"src_mac":"Acme:88:3a:a5"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDispatchPrintFirstSwitchedFallsBackWhenZero(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	ok := Dispatch(buf, &first, "first_switched", PrintFirstSwitched, SideNone, []byte{0, 0, 0, 0}, flowcache.New(), stubEnrichment{})
	if !ok {
		t.Fatal("expected write")
	}
	if got, want := buf.String(), `"first_switched":1700000000`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDispatchPrintFirstSwitchedKeepsNonZero(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	ok := Dispatch(buf, &first, "first_switched", PrintFirstSwitched, SideNone, []byte{0, 0, 0, 42}, flowcache.New(), stubEnrichment{})
	if !ok {
		t.Fatal("expected write")
	}
	if got, want := buf.String(), `"first_switched":42`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDispatchCountryCodeWithoutEnrichment(t *testing.T) {
	buf := &bytes.Buffer{}
	first := true
	ok := Dispatch(buf, &first, "country", PrintCountryCode, SideNone, []byte{8, 8, 8, 8}, flowcache.New(), nil)
	if ok {
		t.Fatal("expected no write when no enrichment source is wired")
	}
}
