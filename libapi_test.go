package cdpflow

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "github.com/drblury/cdpflow/sink/sinks"
)

func newLoopbackConnection(t *testing.T) (*Connection, *Peer) {
	t.Helper()
	lb, err := NewLoopback(nil)
	if err != nil {
		t.Fatalf("loopback: %v", err)
	}
	conf := DefaultConfig()
	conf.DebuggingID = "facade"
	conf.ReadTimeout = 10 * time.Millisecond

	conn, err := New(conf, DiscardLogger(), Dependencies{Transport: lb})
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, lb.Peer()
}

func TestFacadeCallRoundTrip(t *testing.T) {
	conn, peer := newLoopbackConnection(t)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		frame, err := peer.Recv(ctx)
		if err != nil {
			return
		}
		var req Request
		if err := Unmarshal(frame, &req); err != nil {
			return
		}
		id := req.ID
		out, _ := Marshal(Message{ID: &id, Result: map[string]any{"frameId": "F1"}})
		_ = peer.Send(ctx, out)
	}()

	type navigateResult struct {
		FrameID string `json:"frameId"`
	}
	res, err := CallInto[navigateResult](conn, context.Background(), "Page.navigate", map[string]any{"url": "about:blank"}, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if res.FrameID != "F1" {
		t.Fatalf("expected frame F1, got %q", res.FrameID)
	}
}

func TestFacadeOnEvent(t *testing.T) {
	conn, peer := newLoopbackConnection(t)

	type loadEvent struct {
		Timestamp float64 `json:"timestamp"`
	}
	got := make(chan float64, 1)
	if _, err := OnEvent(conn, "Page.loadEventFired", func(evt Event[loadEvent]) error {
		got <- evt.Params.Timestamp
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := peer.SendString(context.Background(), `{"method":"Page.loadEventFired","params":{"timestamp":12.5}}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case ts := <-got:
		if ts != 12.5 {
			t.Fatalf("expected timestamp 12.5, got %v", ts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event handler was not invoked")
	}
}

func TestFacadeErrorsAndSinks(t *testing.T) {
	if _, err := New(nil, DiscardLogger(), Dependencies{}); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}

	names := SinkNames()
	if len(names) == 0 {
		t.Fatal("expected registered sinks")
	}
	if caps := GetSinkCapabilities("kafka"); !caps.Durable || !caps.Remote {
		t.Fatalf("expected durable remote kafka capabilities, got %+v", caps)
	}
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}
