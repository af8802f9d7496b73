package common

// Listener consumes messages from an MQTT broker once Listen is called.
type Listener interface {
	Listen()
}
