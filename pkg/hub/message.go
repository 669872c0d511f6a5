// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

// Message represents a message to be broadcast to clients
type Message struct {
	// Topic scopes the message, typically a session id. Clients subscribed
	// to a topic only receive messages for that topic; clients without a
	// topic receive everything.
	Topic string
	Data  []byte
}

// NewJSONMessage creates a message from pre-encoded JSON bytes
func NewJSONMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Data: data}
}
