package mqtt

import "fmt"

const (
	// TopicPrefix is the root of every upsdash topic.
	TopicPrefix = "upsdash"

	TopicPrefixUPS    = TopicPrefix + "/ups"
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for upsdash MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.UPSState("rack-a") // "upsdash/ups/rack-a/state"
type Topics struct{}

// UPSState is the retained variable snapshot of one device.
//
// Example: upsdash/ups/rack-a/state
func (Topics) UPSState(name string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixUPS, name)
}

// UPSEvent carries instcmd, setvar and fsd outcomes for one device.
//
// Example: upsdash/ups/rack-a/event
func (Topics) UPSEvent(name string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefixUPS, name)
}

// SystemStatus is the retained online/offline status (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllUPSStates matches every device state topic.
func (Topics) AllUPSStates() string {
	return TopicPrefixUPS + "/+/state"
}

// AllUPSEvents matches every device event topic.
func (Topics) AllUPSEvents() string {
	return TopicPrefixUPS + "/+/event"
}
