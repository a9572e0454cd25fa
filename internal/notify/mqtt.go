package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNotConnected is returned by Notify while the broker is unreachable.
	ErrNotConnected = errors.New("notify: mqtt not connected")
	// ErrQueueFull is returned by Notify when the publisher is behind and
	// the event was dropped.
	ErrQueueFull = errors.New("notify: mqtt publish queue full")
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second

	// DefaultQueueSize is the number of events buffered for the publisher.
	DefaultQueueSize = 64
)

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	// Broker is host:port, without scheme
	Broker   string
	ClientID string
	// Topic is the prefix; events go to <Topic>/<event kind>
	Topic string
	QoS   byte
	// QueueSize bounds the events waiting for the publisher (default 64)
	QueueSize int
}

// MQTTStats contains notifier statistics
type MQTTStats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64 // failed or timed-out publishes, and events refused while disconnected
	Dropped   uint64 // events dropped because the queue was full
}

// Payload is the msgpack body of an MQTT event.
type Payload struct {
	Kind       string `msgpack:"kind"`
	SessionID  string `msgpack:"session_id"`
	URI        string `msgpack:"uri,omitempty"`
	PositionNs int64  `msgpack:"position_ns"`
	DurationNs int64  `msgpack:"duration_ns"`
	Reason     string `msgpack:"reason,omitempty"`
	Error      string `msgpack:"error,omitempty"`
	AtUnixMs   int64  `msgpack:"at_unix_ms"`
}

// EncodePayload builds the msgpack body for ev.
func EncodePayload(ev Event) ([]byte, error) {
	p := Payload{
		Kind:       ev.Kind.String(),
		SessionID:  ev.SessionID,
		URI:        ev.URI,
		PositionNs: ev.Position,
		DurationNs: ev.Duration,
		Reason:     ev.Reason,
		AtUnixMs:   ev.At.UnixMilli(),
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return msgpack.Marshal(&p)
}

type outbound struct {
	topic   string
	payload []byte
}

// MQTT publishes events to an MQTT broker.
//
// Notify only queues the event; a single publisher goroutine started by
// Connect talks to the broker. When the queue is full new events are
// dropped, the same policy as Fanout.
type MQTT struct {
	cfg       MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client

	queue     chan outbound
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	dropped   uint64
	connected bool
}

var _ Notifier = (*MQTT)(nil)

// NewMQTT creates a disconnected MQTT notifier.
func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &MQTT{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		queue:     make(chan outbound, cfg.QueueSize),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection. Auto-reconnect stays on
// afterwards.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.setConnected(true)
		slog.Info("notify: mqtt connection established",
			"broker", m.cfg.Broker,
			"client_id", m.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.setConnected(false)
		slog.Warn("notify: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", m.cfg.Broker,
		)
	}

	m.client = m.newClient(opts)

	slog.Info("notify: connecting to mqtt broker", "broker", m.cfg.Broker)

	token := m.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("notify: mqtt connection timeout")
	case <-ctx.Done():
		return fmt.Errorf("notify: mqtt connect: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: mqtt connection failed: %w", err)
	}

	m.setConnected(true)
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.publishLoop()
	})
	return nil
}

// Notify queues ev for <Topic>/<kind> and returns without waiting for the
// broker. Publish failures are counted in Stats.
func (m *MQTT) Notify(ev Event) error {
	if !m.isConnected() {
		m.countError()
		return ErrNotConnected
	}

	payload, err := EncodePayload(ev)
	if err != nil {
		m.countError()
		return fmt.Errorf("notify: marshal %s event: %w", ev.Kind, err)
	}

	select {
	case m.queue <- outbound{topic: m.topic(ev.Kind), payload: payload}:
		return nil
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		return ErrQueueFull
	}
}

func (m *MQTT) publishLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case msg := <-m.queue:
			m.publish(msg)
		}
	}
}

func (m *MQTT) publish(msg outbound) {
	token := m.client.Publish(msg.topic, m.cfg.QoS, false, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		m.countError()
		slog.Warn("notify: mqtt publish timeout", "topic", msg.topic, "timeout", publishTimeout)
		return
	}
	if err := token.Error(); err != nil {
		m.countError()
		slog.Warn("notify: mqtt publish failed", "topic", msg.topic, "error", err)
		return
	}

	m.mu.Lock()
	m.published[msg.topic]++
	m.mu.Unlock()

	slog.Debug("notify: event published",
		"topic", msg.topic,
		"qos", m.cfg.QoS,
		"size", len(msg.payload),
	)
}

// Disconnect stops the publisher and closes the broker connection. Events
// still queued are discarded; a publish in flight is waited for.
func (m *MQTT) Disconnect() {
	m.setConnected(false)
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()

	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		slog.Info("notify: mqtt disconnected")
	}
}

// Stats returns notifier statistics.
func (m *MQTT) Stats() MQTTStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published := make(map[string]uint64, len(m.published))
	for k, v := range m.published {
		published[k] = v
	}
	return MQTTStats{
		Connected: m.connected,
		Published: published,
		Errors:    m.errors,
		Dropped:   m.dropped,
	}
}

func (m *MQTT) topic(k Kind) string {
	return strings.TrimSuffix(m.cfg.Topic, "/") + "/" + k.String()
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTT) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MQTT) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
