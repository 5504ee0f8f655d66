package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes used as the "outcome" label of calls_total.
const (
	OutcomeOK        = "ok"
	OutcomeRemote    = "remote_error"
	OutcomeTimeout   = "timeout"
	OutcomeRelayed   = "relayed_failure"
	OutcomeTransport = "transport_error"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the Prometheus collectors of a connection. A nil *Metrics
// records nothing.
type Metrics struct {
	mu sync.Mutex

	callsTotal         *prometheus.CounterVec
	callDuration       *prometheus.HistogramVec
	messagesDispatched prometheus.Counter
	handlerFaults      *prometheus.CounterVec
	relayOverwrites    prometheus.Counter
	consoleEvictions   prometheus.Counter
	forwardedEvents    *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer: registerer,
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdpflow",
			Name:      "calls_total",
			Help:      "Remote calls by method and outcome.",
		}, []string{"method", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cdpflow",
			Name:      "call_duration_seconds",
			Help:      "Time from sending a call to receiving its response.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"method"}),
		messagesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdpflow",
			Name:      "messages_dispatched_total",
			Help:      "Inbound messages dispatched to the handler registry.",
		}),
		handlerFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdpflow",
			Name:      "handler_faults_total",
			Help:      "Event handler errors and panics by handler name.",
		}, []string{"handler"}),
		relayOverwrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdpflow",
			Name:      "relay_overwrites_total",
			Help:      "Captured failures replaced before any caller drained them.",
		}),
		consoleEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdpflow",
			Name:      "console_evictions_total",
			Help:      "Console messages dropped because the buffer was full.",
		}),
		forwardedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdpflow",
			Name:      "forwarded_events_total",
			Help:      "Events handed to the event sink by outcome.",
		}, []string{"outcome"}),
	}
}

// Register registers the collectors. Safe to call multiple times. When a
// collector with the same name is already registered, typically by another
// connection, that collector is adopted so both record into what is exported.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	errs := []error{
		registerCollector(m.registerer, &m.callsTotal),
		registerCollector(m.registerer, &m.callDuration),
		registerCollector(m.registerer, &m.messagesDispatched),
		registerCollector(m.registerer, &m.handlerFaults),
		registerCollector(m.registerer, &m.relayOverwrites),
		registerCollector(m.registerer, &m.consoleEvictions),
		registerCollector(m.registerer, &m.forwardedEvents),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	m.registered = true
	return nil
}

func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, c *C) error {
	err := registerer.Register(*c)
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return err
	}
	*c = existing
	return nil
}

func (m *Metrics) recordCall(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(method, outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeRemote {
		m.callDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

func (m *Metrics) recordDispatch() {
	if m == nil {
		return
	}
	m.messagesDispatched.Inc()
}

func (m *Metrics) recordHandlerFault(handler string) {
	if m == nil {
		return
	}
	m.handlerFaults.WithLabelValues(handler).Inc()
}

func (m *Metrics) recordRelayOverwrite() {
	if m == nil {
		return
	}
	m.relayOverwrites.Inc()
}

func (m *Metrics) recordConsoleEviction() {
	if m == nil {
		return
	}
	m.consoleEvictions.Inc()
}

func (m *Metrics) recordForward(outcome string) {
	if m == nil {
		return
	}
	m.forwardedEvents.WithLabelValues(outcome).Inc()
}
