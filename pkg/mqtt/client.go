package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
)

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"
	disconnectQuiesceMs = 250
)

type subscription struct {
	qos     byte
	handler pahomqtt.MessageHandler
}

// mqttClient implements Client on top of Paho. Subscriptions are remembered
// and replayed on every (re)connect; sessions are clean.
type mqttClient struct {
	client       pahomqtt.Client
	broker       string
	availability string
	waitTimeout  time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient creates a new MQTT client. The service's availability topic
// carries "online" while connected and "offline" via the last will.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	m := &mqttClient{
		broker:       cfg.MQTTAddress(),
		availability: AvailabilityTopic(cfg.ServiceName),
		waitTimeout:  cfg.RequestTimeout(),
		logger:       logger,
		subs:         make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(m.broker)

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetWill(m.availability, availabilityOffline, 1, true)
	// Room signals must be handled in arrival order
	opts.SetOrderMatters(true)

	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", "broker", m.broker, "client_id", clientID)
		m.resubscribe(c)
		c.Publish(m.availability, 1, true, availabilityOnline)
	}

	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}

	opts.OnReconnecting = func(c pahomqtt.Client, opts *pahomqtt.ClientOptions) {
		logger.Info("MQTT reconnecting", "broker", m.broker)
	}

	m.client = pahomqtt.NewClient(opts)
	return m
}

// Connect blocks until the first connection succeeds or ctx ends
func (m *mqttClient) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MQTT broker", "broker", m.broker)

	token := m.client.Connect()

	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect announces offline and closes the connection
func (m *mqttClient) Disconnect() {
	if m.client.IsConnected() {
		token := m.client.Publish(m.availability, 1, true, availabilityOffline)
		token.WaitTimeout(m.waitTimeout)
	}
	m.logger.Info("Disconnecting from MQTT broker")
	m.client.Disconnect(disconnectQuiesceMs)
}

func (m *mqttClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	pahoHandler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(&mqttMessage{msg: msg})
	}

	m.mu.Lock()
	m.subs[topic] = subscription{qos: qos, handler: pahoHandler}
	m.mu.Unlock()

	if err := m.wait(m.client.Subscribe(topic, qos, pahoHandler)); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	m.logger.Info("Subscribed to MQTT topic", "topic", topic, "qos", qos)
	return nil
}

func (m *mqttClient) resubscribe(c pahomqtt.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.subs) == 0 {
		return
	}

	filters := make(map[string]byte, len(m.subs))
	for topic, sub := range m.subs {
		filters[topic] = sub.qos
	}

	// One SUBSCRIBE for every filter; each keeps its own handler
	for topic, sub := range m.subs {
		c.AddRoute(topic, sub.handler)
	}
	token := c.SubscribeMultiple(filters, nil)
	go func() {
		if err := m.wait(token); err != nil {
			m.logger.Error("Failed to restore subscriptions", "count", len(filters), "error", err)
		}
	}()
}

// Publish waits at most the request timeout for the broker to accept the message
func (m *mqttClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if err := m.wait(m.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	m.logger.Debug("Published message", "topic", topic, "size", len(payload))
	return nil
}

func (m *mqttClient) IsConnected() bool {
	return m.client.IsConnected()
}

func (m *mqttClient) wait(token pahomqtt.Token) error {
	if !token.WaitTimeout(m.waitTimeout) {
		return fmt.Errorf("no broker acknowledgement within %s", m.waitTimeout)
	}
	return token.Error()
}

// mqttMessage adapts a Paho message to Message
type mqttMessage struct {
	msg pahomqtt.Message
}

func (m *mqttMessage) Topic() string   { return m.msg.Topic() }
func (m *mqttMessage) Payload() []byte { return m.msg.Payload() }
