// Package jetstream provides a NATS JetStream event sink backed by a single
// stream that captures every forwarded topic.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/cdpflow/sink"
)

// SinkName is the name used to register this sink.
const SinkName = "jetstream"

const (
	// DefaultStreamName is the stream created when Config.StreamName is empty.
	DefaultStreamName = "CDPFLOW"

	// DefaultMaxAge is how long the stream retains events.
	DefaultMaxAge = 7 * 24 * time.Hour
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("jetstream sink is closed")

// JetStream is the subset of nats.JetStreamContext the sink uses.
type JetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// ConnectFactory allows overriding the NATS connection for testing. The
// returned func closes the connection.
var ConnectFactory = func(url string) (JetStream, func(), error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return js, nc.Close, nil
}

func init() {
	Register()
}

// Register registers the JetStream sink with the default registry.
func Register() {
	sink.RegisterWithCapabilities(SinkName, Build, sink.JetStreamCapabilities)
}

// Build connects to cfg.GetNATSURL() and ensures the default stream.
func Build(ctx context.Context, cfg sink.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return New(Config{URL: cfg.GetNATSURL()}, logger)
}

// Capabilities returns the capabilities of this sink.
func Capabilities() sink.Capabilities {
	return sink.JetStreamCapabilities
}

// Config holds JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the stream to publish into. Defaults to DefaultStreamName.
	StreamName string

	// MaxAge bounds retention. Defaults to DefaultMaxAge.
	MaxAge time.Duration

	// Replicas is the number of stream replicas (for clustering).
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// Publisher publishes watermill messages into a JetStream stream.
type Publisher struct {
	js     JetStream
	close  func()
	config Config
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New connects and ensures the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	js, closeFn, err := ConnectFactory(cfg.URL)
	if err != nil {
		return nil, err
	}
	p, err := NewWithJetStream(js, cfg, logger, closeFn)
	if err != nil {
		if closeFn != nil {
			closeFn()
		}
		return nil, err
	}
	return p, nil
}

// NewWithJetStream wraps an existing JetStream context. closeFn runs on
// Close and may be nil.
func NewWithJetStream(js JetStream, cfg Config, logger watermill.LoggerAdapter, closeFn func()) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	p := &Publisher{
		js:     js,
		close:  closeFn,
		config: cfg.withDefaults(),
		logger: logger,
	}
	if err := p.ensureStream(); err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) ensureStream() error {
	streamCfg := &nats.StreamConfig{
		Name:      p.config.StreamName,
		Subjects:  []string{p.config.StreamName + ".>"},
		MaxAge:    p.config.MaxAge,
		Replicas:  p.config.Replicas,
		Retention: nats.LimitsPolicy,
	}

	if _, err := p.js.AddStream(streamCfg); err != nil {
		if _, err := p.js.UpdateStream(streamCfg); err != nil {
			return err
		}
		p.logger.Info("JetStream stream updated", watermill.LogFields{"stream": p.config.StreamName})
	}
	return nil
}

// Publish publishes messages to the subject "<stream>.<topic>". The message
// UUID is used as the JetStream de-duplication id.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	subject := p.Subject(topic)
	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}
		headers.Set(nats.MsgIdHdr, msg.UUID)

		if _, err := p.js.PublishMsg(&nats.Msg{
			Subject: subject,
			Data:    msg.Payload,
			Header:  headers,
		}); err != nil {
			return fmt.Errorf("failed to publish to JetStream: %w", err)
		}
	}
	return nil
}

// Subject maps a topic to its stream subject.
func (p *Publisher) Subject(topic string) string {
	return p.config.StreamName + "." + topic
}

// Close closes the NATS connection. Closing twice is a no-op.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.close != nil {
		p.close()
	}
	return nil
}

// Capabilities returns the JetStream sink capabilities.
func (p *Publisher) Capabilities() sink.Capabilities {
	return sink.JetStreamCapabilities
}
