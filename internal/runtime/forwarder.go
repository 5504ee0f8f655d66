package runtime

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cepkg "github.com/drblury/cdpflow/internal/runtime/cloudevents"
	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/cdpflow/internal/runtime/metadata"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
	sinkpkg "github.com/drblury/cdpflow/sink"
	_ "github.com/drblury/cdpflow/sink/sinks"
)

// Forward outcomes used as the "outcome" label of forwarded_events_total.
const (
	ForwardPublished = "published"
	ForwardDropped   = "dropped"
	ForwardFailed    = "failed"
)

// BuildSinkPublisher builds the publisher named by conf.ForwardSink.
func BuildSinkPublisher(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger) (message.Publisher, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	return sinkpkg.Build(ctx, conf, loggingpkg.NewWatermillAdapter(log))
}

// ForwarderConfig tunes a Forwarder.
type ForwarderConfig struct {
	// Topic receives every forwarded event.
	Topic string
	// Source is the CloudEvents source attribute.
	Source string
	// Buffer is the number of events queued ahead of the publisher.
	Buffer int
	// DebuggingID returns the current label of the originating connection.
	DebuggingID func() string
}

// Forwarder republishes inbound events as CloudEvents on a watermill
// publisher. Enqueueing never blocks the pump: when the queue is full the
// event is dropped and counted.
type Forwarder struct {
	publisher message.Publisher
	cfg       ForwarderConfig
	logger    loggingpkg.ServiceLogger
	metrics   *Metrics

	queue     chan protocol.Message
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewForwarder starts a forwarder publishing to publisher.
func NewForwarder(publisher message.Publisher, cfg ForwarderConfig, log loggingpkg.ServiceLogger, metrics *Metrics) (*Forwarder, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if cfg.Topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = configpkg.DefaultForwardBuffer
	}
	if cfg.Source == "" {
		cfg.Source = "cdpflow"
	}
	if cfg.DebuggingID == nil {
		cfg.DebuggingID = func() string { return "" }
	}
	if log == nil {
		log = loggingpkg.Discard()
	}

	f := &Forwarder{
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
		metrics:   metrics,
		queue:     make(chan protocol.Message, cfg.Buffer),
		done:      make(chan struct{}),
	}
	go f.run()
	return f, nil
}

// Handle is the event handler that feeds the forwarder. Responses are
// ignored.
func (f *Forwarder) Handle(msg protocol.Message) error {
	if msg.IsEvent() {
		f.Enqueue(msg)
	}
	return nil
}

// Enqueue queues msg and reports whether it was accepted.
func (f *Forwarder) Enqueue(msg protocol.Message) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}
	select {
	case f.queue <- msg:
		return true
	default:
		f.metrics.recordForward(ForwardDropped)
		return false
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for msg := range f.queue {
		if err := f.publish(msg); err != nil {
			f.metrics.recordForward(ForwardFailed)
			f.logger.Error("Failed to forward event", err, loggingpkg.LogFields{
				"method": msg.Method,
				"topic":  f.cfg.Topic,
			})
			continue
		}
		f.metrics.recordForward(ForwardPublished)
	}
}

func (f *Forwarder) publish(msg protocol.Message) error {
	ctx, span := otel.Tracer(tracerName).Start(context.Background(), "ForwardEvent",
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	did := f.cfg.DebuggingID()
	evt := cepkg.FromMessage(msg, f.cfg.Source, did)
	if sc := span.SpanContext(); sc.HasTraceID() {
		cepkg.SetTraceID(&evt, sc.TraceID().String())
	}
	span.SetAttributes(
		attribute.String("cdp.method", msg.Method),
		attribute.String("cloudevents.id", evt.ID),
	)

	payload, err := jsoncodec.Marshal(evt)
	if err != nil {
		return err
	}

	md := metadatapkg.New(
		metadatapkg.KeyEventID, evt.ID,
		metadatapkg.KeyEventType, evt.Type,
		metadatapkg.KeySource, evt.Source,
		metadatapkg.KeyMethod, msg.Method,
		metadatapkg.KeySessionID, msg.SessionID,
		metadatapkg.KeyDebuggingID, did,
		metadatapkg.KeyContentType, "application/cloudevents+json",
	)

	out := message.NewMessage(evt.ID, payload)
	out.Metadata = metadatapkg.ToWatermill(md)
	out.SetContext(ctx)
	return f.publisher.Publish(f.cfg.Topic, out)
}

// Close stops accepting events, publishes what is queued and closes the
// publisher.
func (f *Forwarder) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()

		<-f.done
		f.closeErr = f.publisher.Close()
	})
	return f.closeErr
}
