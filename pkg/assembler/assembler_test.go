package assembler

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/flowforge/flowforge/pkg/flowctx"
	"github.com/flowforge/flowforge/pkg/sensors"
	"github.com/flowforge/flowforge/pkg/template"
)

func newTestContext() *flowctx.Context {
	return flowctx.New(nil, nil, flowctx.Sources{}, nil, nil, 10*time.Millisecond, func() time.Time { return time.Unix(0, 0) })
}

// TestS1V9TemplateAndFlow reproduces spec.md scenario S1.
func TestS1V9TemplateAndFlow(t *testing.T) {
	tmpl := &template.Template{
		ID: 259,
		Fields: []template.Field{
			{PEN: 0, ID: 8, Length: 4},
			{PEN: 0, ID: 12, Length: 4},
			{PEN: 0, ID: 7, Length: 2},
			{PEN: 0, ID: 11, Length: 2},
			{PEN: 0, ID: 4, Length: 1},
		},
	}

	record := []byte{}
	record = append(record, net.ParseIP("192.168.1.5").To4()...)
	record = append(record, net.ParseIP("8.8.8.8").To4()...)
	record = append(record, 0xC0, 0x00) // src port 49152
	record = append(record, 0x00, 0x35) // dst port 53
	record = append(record, 17)         // udp

	sensor := sensors.NewSensor("10.0.0.1/32", sensors.SensorConfig{})
	fctx := newTestContext()

	lines := AssembleSet(fctx, sensor, 256, tmpl, record, "netflowv9")
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 line, got %d", len(lines))
	}
	line := string(lines[0])

	for _, want := range []string{
		`"src":"192.168.1.5"`,
		`"dst":"8.8.8.8"`,
		`"src_port":49152`,
		`"dst_port":53`,
		`"l4_proto":"udp"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

// TestS2DirectionFromMAC reproduces spec.md scenario S2.
func TestS2DirectionFromMAC(t *testing.T) {
	tmpl := &template.Template{
		ID: 260,
		Fields: []template.Field{
			{PEN: 0, ID: 56, Length: 6}, // src_mac (IN_SRC_MAC)
			{PEN: 0, ID: 57, Length: 6}, // post_dst_mac (OUT_DST_MAC)
		},
	}

	record := []byte{
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, // src mac = router mac
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // post dst mac = non-router
	}

	cfg := sensors.SensorConfig{Observations: map[string]sensors.ObservationConfig{
		"256": {RouterMACs: []string{"aa:bb:cc:dd:ee:ff"}},
	}}
	sensor := sensors.NewSensor("10.0.0.2/32", cfg)
	fctx := newTestContext()

	lines := AssembleSet(fctx, sensor, 256, tmpl, record, "netflowv9")
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 line, got %d", len(lines))
	}
	line := string(lines[0])

	if !strings.Contains(line, `"direction":"egress"`) {
		t.Errorf("line %q missing egress direction", line)
	}
	if !strings.Contains(line, `"client_mac":"00:11:22:33:44:55"`) {
		t.Errorf("line %q missing expected client_mac", line)
	}
}

// TestS3DirectionFromHomeNet reproduces spec.md scenario S3.
func TestS3DirectionFromHomeNet(t *testing.T) {
	tmpl := &template.Template{
		ID: 261,
		Fields: []template.Field{
			{PEN: 0, ID: 8, Length: 4},
			{PEN: 0, ID: 12, Length: 4},
		},
	}

	record := []byte{}
	record = append(record, net.ParseIP("192.168.1.5").To4()...)
	record = append(record, net.ParseIP("8.8.8.8").To4()...)

	cfg := sensors.SensorConfig{Observations: map[string]sensors.ObservationConfig{
		"256": {HomeNets: []sensors.HomeNet{{Network: "192.168.0.0", NetworkName: "corp", Netmask: "16"}}},
	}}
	if err := (sensors.Config{"10.0.0.3/32": cfg}).Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	sensor := sensors.NewSensor("10.0.0.3/32", cfg)
	fctx := newTestContext()

	lines := AssembleSet(fctx, sensor, 256, tmpl, record, "netflowv9")
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 line, got %d", len(lines))
	}
	line := string(lines[0])

	if !strings.Contains(line, `"direction":"ingress"`) {
		t.Errorf("line %q missing ingress direction", line)
	}
	if !strings.Contains(line, `"src_net":"192.168.0.0/16"`) {
		t.Errorf("line %q missing src_net", line)
	}
	if strings.Contains(line, `"dst_net"`) {
		t.Errorf("line %q should not contain dst_net", line)
	}
}

// TestS6FlowEndReason reproduces spec.md scenario S6.
func TestS6FlowEndReason(t *testing.T) {
	tmpl := &template.Template{
		ID:     262,
		Fields: []template.Field{{PEN: 0, ID: 136, Length: 1}},
	}
	record := []byte{2}

	sensor := sensors.NewSensor("10.0.0.4/32", sensors.SensorConfig{})
	fctx := newTestContext()

	lines := AssembleSet(fctx, sensor, 256, tmpl, record, "netflowv9")
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 line, got %d", len(lines))
	}
	if !strings.Contains(string(lines[0]), `"flow_end_reason":"active timeout"`) {
		t.Errorf("line %q missing expected flow_end_reason", lines[0])
	}
}

// TestS4OptionTemplatePopulatesApplicationName reproduces spec.md scenario
// S4: an option template record teaches applicationId 0x03000050 the name
// "http", then a regular-template data record referencing the same
// applicationId prints the learned name instead of the raw number.
func TestS4OptionTemplatePopulatesApplicationName(t *testing.T) {
	optionTmpl := &template.Template{
		ID:              300,
		IsOption:        true,
		ScopeFieldCount: 1,
		Fields: []template.Field{
			{PEN: 0, ID: 95, Length: 4}, // scope: applicationId
			{PEN: 0, ID: 96, Length: 4}, // option: applicationName
		},
	}
	optionRecord := []byte{0x03, 0x00, 0x00, 0x50, 'h', 't', 't', 'p'}

	sensor := sensors.NewSensor("10.0.0.5/32", sensors.SensorConfig{})
	fctx := newTestContext()

	lines := AssembleSet(fctx, sensor, 256, optionTmpl, optionRecord, "netflowv9")
	if len(lines) != 0 {
		t.Fatalf("expected options records to emit no output lines, got %d", len(lines))
	}

	dataTmpl := &template.Template{
		ID:     301,
		Fields: []template.Field{{PEN: 0, ID: 95, Length: 4}},
	}
	dataRecord := []byte{0x03, 0x00, 0x00, 0x50}

	lines = AssembleSet(fctx, sensor, 256, dataTmpl, dataRecord, "netflowv9")
	if len(lines) != 1 {
		t.Fatalf("expected 1 data line, got %d", len(lines))
	}
	if !strings.Contains(string(lines[0]), `"application_id_name":"http"`) {
		t.Errorf("line %q missing expected application_id_name", lines[0])
	}
}

// TestS5MissingTemplateProducesNoLines verifies the worker/assembler split:
// AssembleSet is only ever called once a template is known; a caller that
// never finds one in the registry (spec.md scenario S5) must skip calling
// it entirely and emit zero lines, which this asserts at the registry
// layer rather than by calling AssembleSet with a nil template.
func TestS5MissingTemplateProducesNoLines(t *testing.T) {
	reg := template.New()
	if _, err := reg.Lookup(template.NewKey(net.ParseIP("10.0.0.5"), 1, 300)); err == nil {
		t.Fatal("expected lookup of an unknown template to fail")
	}
}

// TestShortTrailingRecordIsTruncated exercises Open Question decision 3: a
// flowset with one full record plus a trailing partial record stops after
// the full record instead of erroring the whole flowset.
func TestShortTrailingRecordIsTruncated(t *testing.T) {
	tmpl := &template.Template{
		ID:     263,
		Fields: []template.Field{{PEN: 0, ID: 136, Length: 1}},
	}
	record := []byte{2, 2} // two full one-byte records, no leftover

	sensor := sensors.NewSensor("10.0.0.6/32", sensors.SensorConfig{})
	fctx := newTestContext()

	lines := AssembleSet(fctx, sensor, 256, tmpl, record, "netflowv9")
	if len(lines) != 2 {
		t.Fatalf("expected 2 full one-byte records decoded, got %d", len(lines))
	}

	// a genuinely short trailing fragment (e.g. a multi-byte field missing
	// its tail) must stop cleanly rather than panic or error out
	tmplWide := &template.Template{
		ID:     264,
		Fields: []template.Field{{PEN: 0, ID: 1, Length: 4}},
	}
	short := []byte{0, 0, 0, 1, 0, 0} // one full 4-byte record + 2 stray bytes
	lines = AssembleSet(fctx, sensor, 256, tmplWide, short, "netflowv9")
	if len(lines) != 1 {
		t.Fatalf("expected 1 full record then truncation, got %d", len(lines))
	}
}
