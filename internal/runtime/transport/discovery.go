package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
)

// Target is one entry of the DevTools /json listing.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	Description          string `json:"description,omitempty"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// HTTPClient is used for discovery requests.
var HTTPClient = &http.Client{Timeout: 5 * time.Second}

// Discover lists the debuggable targets of the browser at host:port.
func Discover(ctx context.Context, host string, port int) ([]Target, error) {
	endpoint := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discover %s: unexpected status %s", endpoint, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", endpoint, err)
	}

	var targets []Target
	if err := jsoncodec.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("discover %s: decode listing: %w", endpoint, err)
	}
	return targets, nil
}

// Pages filters the listing down to page targets, keeping their order.
func Pages(targets []Target) []Target {
	pages := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages
}

// ResolveTarget picks the page target at index tab and returns its debugger
// websocket URL.
func ResolveTarget(ctx context.Context, host string, port, tab int) (Target, error) {
	targets, err := Discover(ctx, host, port)
	if err != nil {
		return Target{}, err
	}
	pages := Pages(targets)
	if tab < 0 || tab >= len(pages) {
		return Target{}, fmt.Errorf("%w: tab %d of %d pages", errspkg.ErrTargetNotFound, tab, len(pages))
	}
	target := pages[tab]
	if target.WebSocketDebuggerURL == "" {
		return Target{}, fmt.Errorf("%w: tab %d has no debugger url (already attached?)", errspkg.ErrTargetNotFound, tab)
	}
	return target, nil
}
