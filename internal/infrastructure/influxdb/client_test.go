package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/upsdash-core/internal/infrastructure/config"
	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/ups"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newFakeClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w}, w
}

func fieldsOf(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagsOf(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func TestUPSPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dev := ups.DeviceEntry{
		Name: "ups1",
		Variables: map[string]nut.Value{
			"battery.charge":  nut.NumberValue(97),
			"battery.runtime": nut.NumberValue(2400),
			"ups.load":        nut.NumberValue(23),
			"input.voltage":   nut.NumberValue(229.8),
			"output.voltage":  nut.TextValue("n/a"),
			"ups.realpower":   nut.NumberValue(180),
			"ups.status":      nut.TextValue("OL CHRG"),
		},
	}

	p, ok := UPSPoint(dev, at)
	if !ok {
		t.Fatal("UPSPoint() ok = false")
	}
	if p.Name() != MeasurementUPS {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementUPS)
	}
	if tags := tagsOf(p); len(tags) != 1 || tags["ups"] != "ups1" {
		t.Errorf("tags = %v, want only ups=ups1", tags)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	fields := fieldsOf(p)
	want := map[string]any{
		"battery_charge":  97.0,
		"runtime":         2400.0,
		"load":            23.0,
		"input_voltage":   229.8,
		"power_w":         180.0,
		"power_is_approx": false,
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v, want %v", k, fields[k], v)
		}
	}
	// Text values are not written.
	if _, ok := fields["output_voltage"]; ok {
		t.Error("output_voltage written for a text value")
	}
}

func TestUPSPoint_EstimatedPower(t *testing.T) {
	p, ok := UPSPoint(ups.DeviceEntry{Name: "ups2", Variables: map[string]nut.Value{
		"ups.load":           nut.NumberValue(40),
		"ups.power.nominal":  nut.NumberValue(1500),
		"battery.charge.low": nut.NumberValue(10),
	}}, time.Now())
	if !ok {
		t.Fatal("UPSPoint() ok = false")
	}

	fields := fieldsOf(p)
	if fields["power_w"] != 600.0 || fields["power_is_approx"] != true {
		t.Errorf("power_w = %v approx = %v, want 600 approx", fields["power_w"], fields["power_is_approx"])
	}
}

func TestUPSPoint_NoFields(t *testing.T) {
	_, ok := UPSPoint(ups.DeviceEntry{Name: "ups3", Variables: map[string]nut.Value{
		"ups.status": nut.TextValue("OB"),
	}}, time.Now())
	if ok {
		t.Error("UPSPoint() ok = true for a device without numeric fields")
	}
}

func TestDeviceUpdated_WritesPoint(t *testing.T) {
	c, w := newFakeClient()

	c.DeviceUpdated(ups.DeviceEntry{Name: "ups1", Variables: map[string]nut.Value{"ups.load": nut.NumberValue(5)}})
	c.DeviceUpdated(ups.DeviceEntry{Name: "empty"})
	c.DeviceRemoved("ups1")

	if len(w.points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.points))
	}
	if got := tagsOf(w.points[0])["ups"]; got != "ups1" {
		t.Errorf("ups tag = %q, want ups1", got)
	}
	if got := c.Queued(); got != 1 {
		t.Errorf("Queued() = %d, want 1", got)
	}
}

func TestClose_FlushesAndStopsWrites(t *testing.T) {
	c, w := newFakeClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	c.WriteUPSMetrics(ups.DeviceEntry{Name: "ups1", Variables: map[string]nut.Value{"ups.load": nut.NumberValue(5)}}, time.Now())
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Errorf("points = %d flushes = %d after Close, want 0 and 1", len(w.points), w.flushes)
	}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Zero(t *testing.T) {
	var c Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero Client error = %v", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := newFakeClient()

	var got []error
	c.SetOnError(func(err error) { got = append(got, err) })

	ch := make(chan error, 1)
	ch <- errors.New("401 unauthorized")
	close(ch)
	c.handleWriteErrors(ch)

	if len(got) != 1 {
		t.Fatalf("callback ran %d times, want 1", len(got))
	}
	if !errors.Is(got[0], ErrWriteFailed) || !strings.Contains(got[0].Error(), "401 unauthorized") {
		t.Errorf("error = %v, want ErrWriteFailed wrapping the server message", got[0])
	}
	if n := c.Failures(); n != 1 {
		t.Errorf("Failures() = %d, want 1", n)
	}
}

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		batch     uint
		flushMsec uint
	}{
		{"defaults", config.InfluxDBConfig{}, fallbackBatchSize, 10_000},
		{"configured", config.InfluxDBConfig{BatchSize: 500, FlushInterval: 2}, 500, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(tt.cfg)
			if opts.BatchSize() != tt.batch {
				t.Errorf("BatchSize() = %d, want %d", opts.BatchSize(), tt.batch)
			}
			if opts.FlushInterval() != tt.flushMsec {
				t.Errorf("FlushInterval() = %d, want %d", opts.FlushInterval(), tt.flushMsec)
			}
		})
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Org:     "upsdash",
		Bucket:  "ups",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
