// Package channel provides an in-memory Go channel sink. The returned
// publisher is also a message.Subscriber, so forwarded events can be consumed
// in the same process.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/cdpflow/sink"
)

// SinkName is the name used to register this sink.
const SinkName = "channel"

// DefaultBuffer is the output channel buffer of each subscription.
const DefaultBuffer = 1024

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	Register()
}

// Register registers the channel sink with the default registry.
func Register() {
	sink.RegisterWithCapabilities(SinkName, Build, sink.ChannelCapabilities)
}

// Build creates a new Go channel sink.
func Build(ctx context.Context, cfg sink.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return Factory(gochannel.Config{
		OutputChannelBuffer: DefaultBuffer,
		Persistent:          true,
	}, logger), nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() sink.Capabilities {
	return sink.ChannelCapabilities
}
