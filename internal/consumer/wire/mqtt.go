// Package wire publishes fan-out messages as CBOR-encoded MQTT payloads,
// grounded on the teacher's mqtt_publisher.go connection/publish idiom.
package wire

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Config configures the MQTT publisher consumer.
type Config struct {
	Broker   string // e.g. "tcp://localhost:1883"
	Topic    string // base topic; per-kind suffixes are appended
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// Publisher is a fan-out consumer that marshals every Signal and
// MatchedSignal to CBOR and publishes it under a topic derived from its
// kind, per spec.md §6. StateMessages are not published.
type Publisher struct {
	client mqtt.Client
	cfg    Config
	logger *log.Logger
}

// NewPublisher connects to the configured broker and returns a ready
// Publisher. Consumers must be idempotent under duplicate delivery
// after a restart per spec.md §7 — this publisher always opens a fresh
// session, so a prior run's in-flight publishes never resurface here.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	logger := log.New(log.Writer(), "[wire] ", log.LstdFlags)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Println("connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("wire: connect to %s: %w", cfg.Broker, token.Error())
	}

	return &Publisher{client: client, cfg: cfg, logger: logger}, nil
}

// Consume implements fanout.Consumer. Decoder/serializer errors on a
// single consumer are isolated here, per spec.md §7 — a marshal or
// publish failure is logged, not propagated.
func (p *Publisher) Consume(m sig.Message) {
	var (
		payload []byte
		err     error
		suffix  string
	)

	switch v := m.(type) {
	case sig.Signal:
		payload, err = v.MarshalCBOR()
		suffix = "signal"
	case sig.MatchedSignal:
		payload, err = v.MarshalCBOR()
		suffix = "matched"
	case sig.StateMessage:
		return // state messages are a local health concern, not wired out
	default:
		return
	}

	if err != nil {
		p.logger.Printf("cbor marshal error: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/%s", p.cfg.Topic, suffix)
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if token.Wait() && token.Error() != nil {
		p.logger.Printf("publish error: %v", token.Error())
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// generateClientID mints a fresh per-connection MQTT client ID, so a
// restarted publisher never collides with a stale broker-side session
// left behind by its predecessor.
func generateClientID() string {
	return "radiotracking_" + uuid.NewString()
}
