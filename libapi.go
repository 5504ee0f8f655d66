package cdpflow

import (
	"context"

	runtimepkg "github.com/drblury/cdpflow/internal/runtime"
	ce "github.com/drblury/cdpflow/internal/runtime/cloudevents"
	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	idspkg "github.com/drblury/cdpflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/cdpflow/internal/runtime/metadata"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
	transportpkg "github.com/drblury/cdpflow/internal/runtime/transport"
	sinkpkg "github.com/drblury/cdpflow/sink"
)

type (
	Config       = configpkg.Config
	Connection   = runtimepkg.Connection
	Dependencies = runtimepkg.Dependencies
	Domain       = runtimepkg.Domain
	Stats        = runtimepkg.Stats

	Message       = protocol.Message
	Request       = protocol.Request
	ResponseError = protocol.ResponseError

	EventHandler      = runtimepkg.EventHandler
	HandlerID         = runtimepkg.HandlerID
	RegisteredHandler = runtimepkg.RegisteredHandler
	HandlerRegistry   = runtimepkg.HandlerRegistry
	Event[T any]      = runtimepkg.Event[T]

	CallOption      = runtimepkg.CallOption
	PendingCall     = runtimepkg.PendingCall
	PendingRegistry = runtimepkg.PendingRegistry
	FailureRelay    = runtimepkg.FailureRelay

	ConsoleMessage = runtimepkg.ConsoleMessage
	ConsoleLog     = runtimepkg.ConsoleLog
	DialogHandler  = runtimepkg.DialogHandler

	HandlerMiddleware      = runtimepkg.HandlerMiddleware
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Call lifecycle hooks
	CallContext = runtimepkg.CallContext
	CallHooks   = runtimepkg.CallHooks

	Metrics = runtimepkg.Metrics

	// Event forwarding
	Forwarder       = runtimepkg.Forwarder
	ForwarderConfig = runtimepkg.ForwarderConfig
	CloudEvent      = ce.Event
	Metadata        = metadatapkg.Metadata

	// Transports
	Transport        = transportpkg.Transport
	Target           = transportpkg.Target
	Loopback         = transportpkg.Loopback
	Peer             = transportpkg.Peer
	WebSocket        = transportpkg.WebSocket
	WebSocketOptions = transportpkg.WebSocketOptions

	// Event sinks
	SinkBuilder      = sinkpkg.Builder
	SinkConfig       = sinkpkg.Config
	SinkRegistry     = sinkpkg.Registry
	SinkCapabilities = sinkpkg.Capabilities

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	CallTimeoutError      = errspkg.CallTimeoutError
	RemoteError           = errspkg.RemoteError
	TransportError        = errspkg.TransportError
	HandlerFaultError     = errspkg.HandlerFaultError
	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	Connect = runtimepkg.Connect
	New     = runtimepkg.New

	WithTimeout   = runtimepkg.WithTimeout
	WithSessionID = runtimepkg.WithSessionID

	AcceptAllDialogs  = runtimepkg.AcceptAllDialogs
	DismissAllDialogs = runtimepkg.DismissAllDialogs

	DefaultMiddlewares    = runtimepkg.DefaultMiddlewares
	TracerMiddleware      = runtimepkg.TracerMiddleware
	LogEventsMiddleware   = runtimepkg.LogEventsMiddleware
	SlowHandlerMiddleware = runtimepkg.SlowHandlerMiddleware

	// Call lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	AlertingHooks = runtimepkg.AlertingHooks

	NewMetrics         = runtimepkg.NewMetrics
	NewForwarder       = runtimepkg.NewForwarder
	BuildSinkPublisher = runtimepkg.BuildSinkPublisher
	OnDomain           = runtimepkg.OnDomain

	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ParseConfig    = configpkg.Parse
	ValidateConfig = configpkg.ValidateConfig

	// Transports and target discovery
	NewLoopback    = transportpkg.NewLoopback
	DialWebSocket  = transportpkg.DialWebSocket
	DiscoverTarget = transportpkg.ResolveTarget
	ListTargets    = transportpkg.Discover
	Pages          = transportpkg.Pages

	// Event sink registry. Import sink packages for their side effects, or
	// sink/sinks for all of them.
	DefaultSinkRegistry = sinkpkg.DefaultRegistry
	RegisterSink        = sinkpkg.Register
	BuildSink           = sinkpkg.Build
	SinkNames           = sinkpkg.Names
	GetSinkCapabilities = sinkpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired        = errspkg.ErrConfigRequired
	ErrLoggerRequired        = errspkg.ErrLoggerRequired
	ErrTransportRequired     = errspkg.ErrTransportRequired
	ErrMethodRequired        = errspkg.ErrMethodRequired
	ErrHandlerRequired       = errspkg.ErrHandlerRequired
	ErrConnectionClosed      = errspkg.ErrConnectionClosed
	ErrCallTimeout           = errspkg.ErrCallTimeout
	ErrTargetNotFound        = errspkg.ErrTargetNotFound
	ErrTargetCrashed         = errspkg.ErrTargetCrashed
	ErrProxyConnectionFailed = errspkg.ErrProxyConnectionFailed
	ErrPublisherRequired     = errspkg.ErrPublisherRequired
	ErrTopicRequired         = errspkg.ErrTopicRequired

	ErrReadTimeout     = transportpkg.ErrReadTimeout
	ErrWouldBlock      = transportpkg.ErrWouldBlock
	ErrTransportClosed = transportpkg.ErrClosed
	ErrNoSink          = sinkpkg.ErrNoSink

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	DiscardLogger             = loggingpkg.Discard
	ParseLogLevel             = loggingpkg.ParseLevel

	NewMetadata = metadatapkg.New

	CreateULID     = idspkg.CreateULID
	NewDebuggingID = idspkg.NewDebuggingID

	// CloudEvents helpers for consumers of forwarded events
	GetEventMethod      = ce.GetMethod
	GetEventDebuggingID = ce.GetDebuggingID
	GetTraceID          = ce.GetTraceID
)

// Names of the handlers every connection installs.
const (
	HandlerProxyConnectionFailed = runtimepkg.HandlerProxyConnectionFailed
	HandlerNetErrors             = runtimepkg.HandlerNetErrors
	HandlerTargetCrashed         = runtimepkg.HandlerTargetCrashed
	HandlerGenericError          = runtimepkg.HandlerGenericError
	HandlerConsoleAPI            = runtimepkg.HandlerConsoleAPI
	HandlerJavaScriptDialog      = runtimepkg.HandlerJavaScriptDialog
)

// Metadata keys set on every forwarded message.
const (
	MetadataKeyEventID     = metadatapkg.KeyEventID
	MetadataKeyEventType   = metadatapkg.KeyEventType
	MetadataKeySource      = metadatapkg.KeySource
	MetadataKeyMethod      = metadatapkg.KeyMethod
	MetadataKeySessionID   = metadatapkg.KeySessionID
	MetadataKeyDebuggingID = metadatapkg.KeyDebuggingID
	MetadataKeyContentType = metadatapkg.KeyContentType
)

// CloudEvents extension keys of forwarded events.
const (
	ExtMethod      = ce.ExtMethod
	ExtSessionID   = ce.ExtSessionID
	ExtDebuggingID = ce.ExtDebuggingID
	ExtTraceID     = ce.ExtTraceID
)

func OnEvent[T any](c *Connection, method string, fn func(Event[T]) error) (HandlerID, error) {
	return runtimepkg.OnEvent(c, method, fn)
}

func CallInto[T any](c *Connection, ctx context.Context, method string, params map[string]any, opts ...CallOption) (T, error) {
	return runtimepkg.CallInto[T](c, ctx, method, params, opts...)
}
