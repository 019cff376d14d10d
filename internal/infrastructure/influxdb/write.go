package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/upsdash-core/internal/ups"
)

// MeasurementUPS is the measurement every UPS point is written to.
const MeasurementUPS = "ups"

// fieldVars maps InfluxDB field names to the NUT variables they come from.
var fieldVars = []struct {
	field    string
	variable string
}{
	{"battery_charge", ups.VarBatteryCharge},
	{"runtime", ups.VarBatteryRuntime},
	{"load", ups.VarUPSLoad},
	{"input_voltage", ups.VarInputVoltage},
	{"output_voltage", ups.VarOutputVoltage},
}

// UPSPoint builds the point for one poll of dev, tagged ups=<name>. Only
// numeric variables become fields; power_w is added when the power can be
// reported or estimated. ok is false when dev has no usable field.
func UPSPoint(dev ups.DeviceEntry, at time.Time) (point *write.Point, ok bool) {
	fields := make(map[string]any, len(fieldVars)+1)
	for _, fv := range fieldVars {
		v, found := dev.Variables[fv.variable]
		if !found {
			continue
		}
		if f, numeric := v.Float(); numeric {
			fields[fv.field] = f
		}
	}
	if w, approx, found := ups.EstimatePower(dev.Variables); found {
		fields["power_w"] = w
		fields["power_is_approx"] = approx
	}
	if len(fields) == 0 {
		return nil, false
	}

	return write.NewPoint(MeasurementUPS, map[string]string{"ups": dev.Name}, fields, at), true
}

// WriteUPSMetrics queues a point for dev. The write is non-blocking; errors
// arrive through SetOnError.
func (c *Client) WriteUPSMetrics(dev ups.DeviceEntry, at time.Time) {
	if point, ok := UPSPoint(dev, at); ok {
		c.write(point)
	}
}

// DeviceUpdated implements ups.DeviceObserver.
func (c *Client) DeviceUpdated(dev ups.DeviceEntry) {
	c.WriteUPSMetrics(dev, time.Now())
}

// DeviceRemoved implements ups.DeviceObserver. History is kept.
func (c *Client) DeviceRemoved(string) {}
