package enrich

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestMACVendorsExactOverridesOUI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vendors.tsv")
	contents := "88:3a:a5\tAcme Corp\n88:3a:a5:01:02:03\tSpecific Widget\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	v := NewMACVendors()
	if err := v.Reload(path); err != nil {
		t.Fatal(err)
	}

	if name, ok := v.Lookup([6]byte{0x88, 0x3a, 0xa5, 0x01, 0x02, 0x03}); !ok || name != "Specific Widget" {
		t.Errorf("got %q,%v want exact-match override", name, ok)
	}
	if name, ok := v.Lookup([6]byte{0x88, 0x3a, 0xa5, 0xff, 0xff, 0xff}); !ok || name != "Acme Corp" {
		t.Errorf("got %q,%v want OUI fallback", name, ok)
	}
	if _, ok := v.Lookup([6]byte{0, 0, 0, 0, 0, 0}); ok {
		t.Error("expected no match for unrelated MAC")
	}
}

func TestMACVendorsReloadFailureKeepsPreviousTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vendors.tsv")
	os.WriteFile(path, []byte("88:3a:a5\tAcme Corp\n"), 0o644)

	v := NewMACVendors()
	if err := v.Reload(path); err != nil {
		t.Fatal(err)
	}

	if err := v.Reload(filepath.Join(dir, "missing.tsv")); err == nil {
		t.Fatal("expected reload of missing file to error")
	}

	if name, ok := v.Lookup([6]byte{0x88, 0x3a, 0xa5, 0, 0, 0}); !ok || name != "Acme Corp" {
		t.Errorf("expected previous table to survive failed reload, got %q,%v", name, ok)
	}
}

func TestProtocolNamesLookup(t *testing.T) {
	p := NewProtocolNames()
	if name, ok := p.Lookup(17); !ok || name != "udp" {
		t.Errorf("got %q,%v want udp", name, ok)
	}
	if _, ok := p.Lookup(253); ok {
		t.Error("expected no name for unassigned protocol number")
	}
}

func TestCIDRGeoIPLongestPrefixMatch(t *testing.T) {
	g := NewCIDRGeoIP()
	g.Reload([]GeoIPRecord{
		{CIDR: "8.0.0.0/8", Country: "US", ASNum: 15169, ASName: "GOOGLE"},
		{CIDR: "8.8.8.0/24", Country: "US", ASNum: 15169, ASName: "GOOGLE-DNS"},
	})

	cc, ok := g.CountryCode(net.ParseIP("8.8.8.8"))
	if !ok || cc != "US" {
		t.Fatalf("got %q,%v", cc, ok)
	}
	asn, name, ok := g.ASNumber(net.ParseIP("8.8.8.8"))
	if !ok || asn != 15169 || name != "GOOGLE-DNS" {
		t.Fatalf("expected longest-prefix match to win, got %d %q %v", asn, name, ok)
	}

	if _, _, ok := g.ASNumber(net.ParseIP("1.1.1.1")); ok {
		t.Error("expected no match outside configured ranges")
	}
}
