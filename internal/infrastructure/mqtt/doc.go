// Package mqtt publishes upsdash telemetry to an MQTT broker.
//
// Topics:
//
//	upsdash/ups/{name}/state   retained JSON snapshot of the device variables
//	upsdash/ups/{name}/event   instcmd, setvar and fsd outcomes
//	upsdash/system/status      retained online/offline status, also the LWT
//
// Client wraps paho.mqtt.golang (connection, auto-reconnect, status
// messages). Publisher adapts it to the ups package observers so the poller
// and dispatcher never see MQTT errors.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	pub := mqtt.NewPublisher(client)
//	poller.AddObserver(pub)
//	dispatcher.AddObserver(pub)
//
// The unit tests run against an in-memory paho client; tests tagged
// "integration" need a broker on 127.0.0.1:1883.
package mqtt
