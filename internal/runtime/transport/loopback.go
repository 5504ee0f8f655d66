package transport

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Loopback topics. The client publishes commands on TopicToPeer and the peer
// answers on TopicToClient.
const (
	TopicToPeer   = "cdp.to_peer"
	TopicToClient = "cdp.to_client"
)

const loopbackBuffer = 1024

// Loopback is an in-process Transport backed by a watermill GoChannel. Its
// Peer plays the browser: it reads the commands the client sends and writes
// responses and events back. Frames are delivered in publish order.
type Loopback struct {
	pubSub *gochannel.GoChannel
	frames chan []byte
	peer   *Peer

	closeOnce sync.Once
	closed    chan struct{}
}

// Peer is the remote end of a Loopback.
type Peer struct {
	lb     *Loopback
	frames chan []byte
}

// NewLoopback creates a connected client/peer pair.
func NewLoopback(logger watermill.LoggerAdapter) (*Loopback, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            loopbackBuffer,
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	lb := &Loopback{
		pubSub: pubSub,
		frames: make(chan []byte, loopbackBuffer),
		closed: make(chan struct{}),
	}
	lb.peer = &Peer{lb: lb, frames: make(chan []byte, loopbackBuffer)}

	ctx := context.Background()
	toClient, err := pubSub.Subscribe(ctx, TopicToClient)
	if err != nil {
		return nil, err
	}
	toPeer, err := pubSub.Subscribe(ctx, TopicToPeer)
	if err != nil {
		return nil, err
	}

	go lb.drain(toClient, lb.frames)
	go lb.drain(toPeer, lb.peer.frames)
	return lb, nil
}

// drain acks each message as soon as its payload is copied so a publisher
// never waits on the other side's consumer.
func (l *Loopback) drain(in <-chan *message.Message, out chan<- []byte) {
	defer close(out)
	for msg := range in {
		payload := append([]byte(nil), msg.Payload...)
		msg.Ack()
		select {
		case out <- payload:
		case <-l.closed:
			return
		}
	}
}

func (l *Loopback) publish(ctx context.Context, topic string, frame []byte) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}
	msg := message.NewMessage(watermill.NewUUID(), frame)
	msg.SetContext(ctx)
	if err := l.pubSub.Publish(topic, msg); err != nil {
		select {
		case <-l.closed:
			return ErrClosed
		default:
		}
		return err
	}
	return nil
}

// Peer returns the remote end.
func (l *Loopback) Peer() *Peer {
	return l.peer
}

// Send publishes a frame to the peer.
func (l *Loopback) Send(ctx context.Context, frame []byte) error {
	return l.publish(ctx, TopicToPeer, frame)
}

// Recv returns the next frame written by the peer.
func (l *Loopback) Recv(timeout time.Duration) ([]byte, error) {
	select {
	case <-l.closed:
		return nil, ErrClosed
	default:
	}
	return recvFrom(l.frames, timeout, nil)
}

// Close shuts down both ends.
func (l *Loopback) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.pubSub.Close()
	})
	return err
}

// Send writes a frame to the client.
func (p *Peer) Send(ctx context.Context, frame []byte) error {
	return p.lb.publish(ctx, TopicToClient, frame)
}

// SendString writes a frame given as a string.
func (p *Peer) SendString(ctx context.Context, frame string) error {
	return p.Send(ctx, []byte(frame))
}

// Recv waits for the next frame sent by the client.
func (p *Peer) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-p.frames:
		if !ok {
			return nil, ErrClosed
		}
		return frame, nil
	case <-p.lb.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
