// Package http provides an event sink that POSTs each event to an HTTP
// endpoint.
package http

import (
	"context"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/cdpflow/sink"
)

// SinkName is the name used to register this sink.
const SinkName = "http"

// DefaultClientTimeout bounds a single POST.
const DefaultClientTimeout = 10 * time.Second

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	Register()
}

// Register registers the HTTP sink with the default registry.
func Register() {
	sink.RegisterWithCapabilities(SinkName, Build, sink.HTTPCapabilities)
}

// Build creates a publisher that POSTs every message to the publisher URL
// followed by the topic, e.g. http://collector/events/cdp.events.
func Build(ctx context.Context, cfg sink.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	base := cfg.GetHTTPPublisherURL()

	return PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(TopicURL(base, topic), msg)
			},
			Client: &nethttp.Client{Timeout: DefaultClientTimeout},
		},
		logger,
	)
}

// TopicURL joins base and topic with a single slash.
func TopicURL(base, topic string) string {
	if base == "" {
		return topic
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(topic, "/")
}

// Capabilities returns the capabilities of this sink.
func Capabilities() sink.Capabilities {
	return sink.HTTPCapabilities
}
