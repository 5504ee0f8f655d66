// Package io provides an append-only file sink. Each event is written as
// one JSON line.
package io

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	"github.com/drblury/cdpflow/sink"
)

// SinkName is the name used to register this sink.
const SinkName = "io"

// DefaultFilePath is the default file path if none is specified.
const DefaultFilePath = "cdp-events.log"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("io sink is closed")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return NewPublisher(filePath, logger)
}

func init() {
	Register()
}

// Register registers the I/O sink with the default registry.
func Register() {
	sink.RegisterWithCapabilities(SinkName, Build, sink.IOCapabilities)
}

// Build opens the configured file for appending.
func Build(ctx context.Context, cfg sink.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	filePath := cfg.GetIOFile()
	if filePath == "" {
		filePath = DefaultFilePath
	}
	return PublisherFactory(filePath, logger)
}

// Capabilities returns the capabilities of this sink.
func Capabilities() sink.Capabilities {
	return sink.IOCapabilities
}

// StoredMessage is the JSON line written for every message.
type StoredMessage struct {
	UUID     string               `json:"uuid"`
	Topic    string               `json:"topic"`
	Metadata map[string]string    `json:"metadata"`
	Payload  jsoncodec.RawMessage `json:"payload"`
}

// Publisher appends messages to a file.
type Publisher struct {
	mu     sync.Mutex
	file   *os.File
	logger watermill.LoggerAdapter
}

// NewPublisher opens filePath, creating it when missing.
func NewPublisher(filePath string, logger watermill.LoggerAdapter) (*Publisher, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	logger.Debug("Opened event file", watermill.LogFields{"path": filePath})
	return &Publisher{file: f, logger: logger}, nil
}

// Publish writes each message as one line.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return ErrClosed
	}

	for _, msg := range messages {
		payload := jsoncodec.RawMessage(msg.Payload)
		if !jsoncodec.Valid(msg.Payload) {
			quoted, err := jsoncodec.Marshal(string(msg.Payload))
			if err != nil {
				return err
			}
			payload = quoted
		}

		line, err := jsoncodec.Marshal(StoredMessage{
			UUID:     msg.UUID,
			Topic:    topic,
			Metadata: msg.Metadata,
			Payload:  payload,
		})
		if err != nil {
			return err
		}
		line = append(line, '\n')
		if _, err := p.file.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the file. Closing twice is a no-op.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
