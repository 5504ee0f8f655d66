package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	idspkg "github.com/drblury/cdpflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	transportpkg "github.com/drblury/cdpflow/internal/runtime/transport"
)

// dialWebSocket is swapped in tests.
var dialWebSocket = func(ctx context.Context, url string) (transportpkg.Transport, error) {
	return transportpkg.DialWebSocket(ctx, url, transportpkg.WebSocketOptions{DialTimeout: 10 * time.Second})
}

// Dependencies holds the optional collaborators of a Connection.
// Leave fields zero to get the defaults.
type Dependencies struct {
	// Transport is used as is. When nil, Connect dials the configured target.
	Transport transportpkg.Transport
	// Middlewares are appended after the default middleware chain.
	Middlewares []MiddlewareRegistration
	// DisableDefaultMiddlewares skips DefaultMiddlewares when true.
	DisableDefaultMiddlewares bool
	// DisableDefaultHandlers skips the error detectors and the console and
	// dialog handlers.
	DisableDefaultHandlers bool
	// DialogHandler answers JavaScript dialogs. Nil accepts every dialog.
	DialogHandler DialogHandler
	// Hooks observe the call lifecycle.
	Hooks CallHooks
	// Registerer receives the Prometheus collectors when metrics are enabled.
	Registerer prometheus.Registerer
	// Publisher overrides the event sink built from Config.ForwardSink.
	Publisher message.Publisher
}

// Connection is a client session with one DevTools target. Calls may be
// issued from any number of goroutines; inbound messages are read and
// dispatched by a single pump goroutine.
type Connection struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transportMu sync.Mutex
	transport   transportpkg.Transport

	nextID   atomic.Int64
	handlers *HandlerRegistry
	pending  *PendingRegistry
	relay    *FailureRelay
	console  *ConsoleLog
	debug    *loggingpkg.Debugger

	dialogMu sync.RWMutex
	dialog   DialogHandler

	metrics   *Metrics
	hooks     CallHooks
	forwarder *Forwarder

	defaultTimeout time.Duration
	readTimeout    time.Duration

	dispatched atomic.Uint64
	startedAt  time.Time
	closing    chan struct{}
	closeOnce  sync.Once
	done       chan struct{}

	httpServers   map[int]*http.ServeMux
	httpRunning   []*http.Server
	httpServersMu sync.Mutex
}

// Connect opens a connection to the target selected by conf. With
// conf.WebSocketURL set it dials that URL; otherwise it lists the targets of
// the browser at conf.Host:conf.Port and picks page number conf.Tab.
func Connect(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Connection, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if deps.Transport == nil {
		conf = conf.WithDefaults()
		url := conf.WebSocketURL
		if url == "" {
			target, err := transportpkg.ResolveTarget(ctx, conf.Host, conf.Port, conf.Tab)
			if err != nil {
				return nil, err
			}
			url = target.WebSocketDebuggerURL
		}
		t, err := dialWebSocket(ctx, url)
		if err != nil {
			return nil, &errspkg.TransportError{Op: "dial", Origin: conf.DebuggingID, Err: err}
		}
		deps.Transport = t
		conn, err := New(conf, log, deps)
		if err != nil {
			_ = t.Close()
			return nil, err
		}
		return conn, nil
	}
	return New(conf, log, deps)
}

// New wraps an open transport and starts the message pump.
func New(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Connection, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if deps.Transport == nil {
		return nil, errspkg.ErrTransportRequired
	}

	conf = conf.WithDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	if conf.DebuggingID == "" {
		conf.DebuggingID = idspkg.NewDebuggingID()
	}

	c := &Connection{
		Conf:           conf,
		Logger:         log,
		transport:      deps.Transport,
		handlers:       NewHandlerRegistry(),
		pending:        NewPendingRegistry(),
		relay:          &FailureRelay{},
		console:        NewConsoleLog(conf.ConsoleCapacity),
		debug:          loggingpkg.NewDebugger(log, conf.Debug, conf.DebuggingID),
		dialog:         deps.DialogHandler,
		hooks:          deps.Hooks,
		defaultTimeout: conf.DefaultTimeout,
		readTimeout:    conf.ReadTimeout,
		startedAt:      time.Now(),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
	}
	if c.dialog == nil {
		c.dialog = AcceptAllDialogs
	}

	if conf.MetricsEnabled {
		c.metrics = NewMetrics(deps.Registerer)
		if err := c.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		if conf.MetricsPort > 0 {
			c.RegisterHTTPHandler(conf.MetricsPort, "/metrics", promhttp.Handler())
		}
	}
	if conf.StatsPort > 0 {
		c.RegisterHTTPHandler(conf.StatsPort, "/api/stats", c.StatsHandler())
	}
	c.relay.onOverwrite = c.onRelayOverwrite
	c.console.onEvict = c.metrics.recordConsoleEviction

	if err := c.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}
	if !deps.DisableDefaultHandlers {
		c.setDefaultEventHandlers()
	}
	if err := c.setupForwarding(deps.Publisher); err != nil {
		return nil, err
	}

	log.Info("Connection established", loggingpkg.LogFields{
		"debugging_id": conf.DebuggingID,
		"config":       conf,
	})

	c.startHTTPServers()
	go c.run()
	return c, nil
}

func (c *Connection) registerConfiguredMiddlewares(deps Dependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := c.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

func (c *Connection) setupForwarding(publisher message.Publisher) error {
	if publisher == nil && c.Conf.ForwardSink == "" {
		return nil
	}
	if publisher == nil {
		var err error
		publisher, err = BuildSinkPublisher(context.Background(), c.Conf, c.Logger)
		if err != nil {
			return fmt.Errorf("build %s sink: %w", c.Conf.ForwardSink, err)
		}
	}

	fwd, err := NewForwarder(publisher, ForwarderConfig{
		Topic:       c.Conf.ForwardTopic,
		Source:      fmt.Sprintf("cdpflow://%s:%d", c.Conf.Host, c.Conf.Port),
		Buffer:      c.Conf.ForwardBuffer,
		DebuggingID: c.DebuggingID,
	}, c.Logger, c.metrics)
	if err != nil {
		return err
	}
	c.forwarder = fwd
	c.handlers.registerBare("forwarder", fwd.Handle)
	return nil
}

func (c *Connection) onRelayOverwrite(dropped, kept error) {
	c.metrics.recordRelayOverwrite()
	c.Logger.Error("Undrained failure replaced", dropped, loggingpkg.LogFields{
		"debugging_id": c.DebuggingID(),
		"replaced_by":  kept.Error(),
	})
}

func (c *Connection) currentTransport() transportpkg.Transport {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()
	return c.transport
}

// Close detaches and closes the transport, which stops the pump, and shuts
// down the forwarder and HTTP endpoints. Calls in flight are not cancelled;
// they end with their timeout. Closing twice is a no-op.
func (c *Connection) Close() error {
	c.transportMu.Lock()
	t := c.transport
	c.transport = nil
	c.transportMu.Unlock()

	if t == nil {
		return nil
	}

	c.closeOnce.Do(func() { close(c.closing) })

	var errs []error
	if err := t.Close(); err != nil && !errors.Is(err, transportpkg.ErrClosed) {
		errs = append(errs, &errspkg.TransportError{Op: "close", Origin: c.DebuggingID(), Err: err})
	}
	if c.forwarder != nil {
		if err := c.forwarder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.stopHTTPServers()

	c.Logger.Info("Connection closed", loggingpkg.LogFields{"debugging_id": c.DebuggingID()})
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.currentTransport() == nil
}

// Done is closed when the pump goroutine has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the pump exits or ctx is done.
func (c *Connection) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register appends an event handler. It observes every inbound message,
// after the handlers registered before it.
func (c *Connection) Register(name string, handler EventHandler) (HandlerID, error) {
	if handler == nil {
		return 0, errspkg.ErrHandlerRequired
	}
	return c.handlers.Register(name, handler), nil
}

// Deregister removes a handler. Unknown ids are ignored.
func (c *Connection) Deregister(id HandlerID) {
	c.handlers.Deregister(id)
}

// Handlers exposes the dispatch registry.
func (c *Connection) Handlers() *HandlerRegistry {
	return c.handlers
}

// Pending exposes the calls awaiting a response.
func (c *Connection) Pending() *PendingRegistry {
	return c.pending
}

// Relay exposes the failure relay.
func (c *Connection) Relay() *FailureRelay {
	return c.relay
}

// ReadConsoleMessage removes and returns the oldest buffered console
// message. It never blocks.
func (c *Connection) ReadConsoleMessage() (ConsoleMessage, bool) {
	return c.console.Pop()
}

// SetDialogHandler replaces the JavaScript dialog policy. Nil restores the
// default, which accepts every dialog.
func (c *Connection) SetDialogHandler(h DialogHandler) {
	if h == nil {
		h = AcceptAllDialogs
	}
	c.dialogMu.Lock()
	defer c.dialogMu.Unlock()
	c.dialog = h
}

func (c *Connection) dialogHandler() DialogHandler {
	c.dialogMu.RLock()
	defer c.dialogMu.RUnlock()
	return c.dialog
}

// SetDebuggingID changes the label attached to diagnostics and relayed
// failures.
func (c *Connection) SetDebuggingID(id string) {
	c.debug.SetDebuggingID(id)
}

// DebuggingID returns the current diagnostics label.
func (c *Connection) DebuggingID() string {
	return c.debug.DebuggingID()
}

// SetDebug toggles wire-level diagnostics.
func (c *Connection) SetDebug(enabled bool) {
	c.debug.SetEnabled(enabled)
}

// Metrics returns the connection's collectors, nil when metrics are disabled.
func (c *Connection) Metrics() *Metrics {
	return c.metrics
}

// RegisterHTTPHandler mounts handler on the HTTP server for port. Servers
// start with the connection and stop on Close.
func (c *Connection) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	c.httpServersMu.Lock()
	defer c.httpServersMu.Unlock()

	if c.httpServers == nil {
		c.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := c.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		c.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (c *Connection) startHTTPServers() {
	c.httpServersMu.Lock()
	defer c.httpServersMu.Unlock()

	for port, mux := range c.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		c.httpRunning = append(c.httpRunning, srv)
		c.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}(srv)
	}
}

func (c *Connection) stopHTTPServers() {
	c.httpServersMu.Lock()
	servers := c.httpRunning
	c.httpRunning = nil
	c.httpServersMu.Unlock()

	for _, srv := range servers {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(ctx)
		cancel()
	}
}
