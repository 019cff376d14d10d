// Package influxdb writes UPS telemetry to InfluxDB v2.
//
// Each poll of a device becomes one point in the "ups" measurement, tagged
// with the device name. Fields: battery_charge, runtime, load,
// input_voltage, output_voltage and power_w (plus power_is_approx). Text
// values are skipped.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
//	poller.AddObserver(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched and
// non-blocking; their errors arrive through SetOnError.
package influxdb
