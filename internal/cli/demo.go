package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drblury/cdpflow"
)

// runDemoBrowser answers commands on peer the way a blank page would, so the
// CLI can be tried without a browser. Enabling a domain emits one event of
// that domain.
func runDemoBrowser(ctx context.Context, peer *cdpflow.Peer) {
	for {
		frame, err := peer.Recv(ctx)
		if err != nil {
			return
		}
		var req cdpflow.Request
		if err := cdpflow.Unmarshal(frame, &req); err != nil {
			continue
		}

		id := req.ID
		reply := cdpflow.Message{ID: &id, SessionID: req.SessionID}
		result, ok := demoResult(req)
		if ok {
			reply.Result = result
		} else {
			reply.Error = &cdpflow.ResponseError{Code: -32601, Message: fmt.Sprintf("'%s' wasn't found", req.Method)}
		}
		if err := send(ctx, peer, reply); err != nil {
			return
		}

		if evt, ok := demoEvent(req.Method); ok {
			if err := send(ctx, peer, evt); err != nil {
				return
			}
		}
	}
}

func send(ctx context.Context, peer *cdpflow.Peer, msg cdpflow.Message) error {
	out, err := cdpflow.Marshal(msg)
	if err != nil {
		return err
	}
	return peer.Send(ctx, out)
}

func demoResult(req cdpflow.Request) (map[string]any, bool) {
	_, method, _ := strings.Cut(req.Method, ".")
	switch {
	case method == "enable" || method == "disable":
		return map[string]any{}, true
	case req.Method == "Page.navigate":
		return map[string]any{"frameId": "DEMOFRAME", "loaderId": "DEMOLOADER"}, true
	case req.Method == "Page.handleJavaScriptDialog":
		return map[string]any{}, true
	case req.Method == "Runtime.evaluate":
		return map[string]any{"result": map[string]any{"type": "undefined"}}, true
	case req.Method == "Browser.getVersion":
		return map[string]any{
			"protocolVersion": "1.3",
			"product":         "cdpflow-demo/1.0",
			"userAgent":       "cdpflow-demo",
		}, true
	}
	return nil, false
}

func demoEvent(method string) (cdpflow.Message, bool) {
	now := float64(time.Now().UnixMilli()) / 1000
	switch method {
	case "Page.enable":
		return cdpflow.Message{Method: "Page.loadEventFired", Params: map[string]any{"timestamp": now}}, true
	case "Network.enable":
		return cdpflow.Message{Method: "Network.requestWillBeSent", Params: map[string]any{
			"requestId": "DEMO.1",
			"request":   map[string]any{"url": "about:blank", "method": "GET"},
			"timestamp": now,
		}}, true
	case "Runtime.enable":
		return cdpflow.Message{Method: "Runtime.consoleAPICalled", Params: map[string]any{
			"type": "log",
			"args": []any{map[string]any{"type": "string", "value": "hello from the demo page"}},
		}}, true
	}
	return cdpflow.Message{}, false
}
