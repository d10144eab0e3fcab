package worker

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/flowforge/flowforge/pkg/flowctx"
	"github.com/flowforge/flowforge/pkg/sensors"
	"github.com/flowforge/flowforge/pkg/template"
	"github.com/flowforge/flowforge/pkg/wire"
)

type capturingSink struct {
	mu    chan struct{}
	lines [][]byte
}

func newCapturingSink() *capturingSink {
	return &capturingSink{mu: make(chan struct{}, 1024)}
}

func (s *capturingSink) Publish(_ context.Context, _ string, line []byte) error {
	s.lines = append(s.lines, line)
	s.mu <- struct{}{}
	return nil
}

func newTestPool(t *testing.T, sink flowctx.OutputSink) (*Pool, *flowctx.Context) {
	t.Helper()
	db, err := sensors.NewDatabase(sensors.Config{})
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	fctx := flowctx.New(db, template.New(), flowctx.Sources{}, nil, sink, 10*time.Millisecond, func() time.Time { return time.Unix(0, 0) })
	return NewPool(fctx, Config{Workers: 2, QueueSize: 16, SubmitTimeout: time.Second}), fctx
}

// templateSetBytes builds one raw template-set record: id=259, 2 fields
// (src ipv4 id 8 len 4, dst ipv4 id 12 len 4), matching decode_test.go's
// wire layout.
func templateSetBytes(id uint16) []byte {
	b := []byte{byte(id >> 8), byte(id), 0x00, 0x02}
	b = append(b, 0x00, 0x08, 0x00, 0x04) // field id 8, length 4
	b = append(b, 0x00, 0x0c, 0x00, 0x04) // field id 12, length 4
	return b
}

func TestPoolTemplateThenDataProducesLine(t *testing.T) {
	sink := newCapturingSink()
	pool, _ := newTestPool(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	sensorIP := net.ParseIP("10.0.0.1")
	tmplRef := wire.FlowsetRef{Kind: wire.KindTemplate, SetID: 0, Payload: templateSetBytes(259)}
	if err := pool.SubmitTemplateSet(context.Background(), sensorIP, 256, tmplRef); err != nil {
		t.Fatalf("SubmitTemplateSet: %v", err)
	}

	w := pool.workerFor(sensorIP)
	waitForTemplates(t, w, 1)

	record := []byte{}
	record = append(record, net.ParseIP("192.168.1.5").To4()...)
	record = append(record, net.ParseIP("8.8.8.8").To4()...)
	dataRef := wire.FlowsetRef{Kind: wire.KindData, SetID: 259, TemplateID: 259, Payload: record}

	if err := pool.SubmitData(context.Background(), sensorIP, 256, dataRef, "netflowv9"); err != nil {
		t.Fatalf("SubmitData: %v", err)
	}

	select {
	case <-sink.mu:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published line")
	}

	if len(sink.lines) != 1 {
		t.Fatalf("expected 1 published line, got %d", len(sink.lines))
	}
	line := string(sink.lines[0])
	if !strings.Contains(line, `"src":"192.168.1.5"`) || !strings.Contains(line, `"dst":"8.8.8.8"`) {
		t.Errorf("line %q missing expected src/dst", line)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool.Run did not return after cancellation")
	}
}

func TestPoolDataWithoutTemplateIsDropped(t *testing.T) {
	sink := newCapturingSink()
	pool, _ := newTestPool(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	sensorIP := net.ParseIP("10.0.0.2")
	dataRef := wire.FlowsetRef{Kind: wire.KindData, SetID: 999, TemplateID: 999, Payload: []byte{1, 2, 3, 4}}
	if err := pool.SubmitData(context.Background(), sensorIP, 256, dataRef, "netflowv9"); err != nil {
		t.Fatalf("SubmitData: %v", err)
	}

	select {
	case <-sink.mu:
		t.Fatal("expected no published line for a record with no matching template")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPoolSameSensorAlwaysSameWorker(t *testing.T) {
	sink := newCapturingSink()
	pool, _ := newTestPool(t, sink)

	ip := net.ParseIP("10.1.2.3")
	w1 := pool.workerFor(ip)
	w2 := pool.workerFor(ip)
	if w1 != w2 {
		t.Fatal("expected the same sensor IP to always hash to the same worker")
	}
}

func waitForTemplates(t *testing.T, w *Worker, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.TemplatesApplied() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d templates to apply, got %d", want, w.TemplatesApplied())
}
