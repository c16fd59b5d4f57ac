package mqtt

import "context"

// Client is the broker connection shared by the agent's device requester
// and its status/event subscriptions.
type Client interface {
	// Connect blocks until the broker accepts the connection or ctx ends
	Connect(ctx context.Context) error

	// Disconnect publishes offline availability and closes the connection
	Disconnect()

	// Subscribe registers handler for a topic filter. Subscriptions survive reconnects.
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Publish sends payload and waits, bounded, for the broker to accept it
	Publish(topic string, qos byte, retained bool, payload []byte) error

	IsConnected() bool
}

// MessageHandler is called once per delivered message, in arrival order
type MessageHandler func(Message)

// Message is a delivered MQTT message
type Message interface {
	Topic() string
	Payload() []byte
}
