package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWebhookTimeout bounds a single webhook POST.
const DefaultWebhookTimeout = 10 * time.Second

// ErrChannelClosed is returned by ChannelDestination after the peer went away.
var ErrChannelClosed = errors.New("progress channel closed")

// Destination receives progress events for one job.
type Destination interface {
	Send(ctx context.Context, event Event) error
	Kind() string
}

// WebhookDestination POSTs each event as JSON to a caller-supplied URL.
type WebhookDestination struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewWebhookDestination builds a webhook destination with the given per-request timeout.
func NewWebhookDestination(url string, timeout time.Duration) *WebhookDestination {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &WebhookDestination{
		URL:     strings.TrimSpace(url),
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (d *WebhookDestination) Kind() string { return "webhook" }

func (d *WebhookDestination) Send(ctx context.Context, event Event) error {
	if d == nil || d.URL == "" {
		return errors.New("webhook url is empty")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ChannelConn is the subset of a WebSocket connection used for progress pushes.
type ChannelConn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
}

// ChannelDestination pushes events over a duplex connection. Writes are
// serialized because a WebSocket connection allows one concurrent writer.
type ChannelDestination struct {
	mu           sync.Mutex
	conn         ChannelConn
	writeTimeout time.Duration
	closed       bool
}

// NewChannelDestination wraps a duplex connection.
func NewChannelDestination(conn ChannelConn, writeTimeout time.Duration) *ChannelDestination {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWebhookTimeout
	}
	return &ChannelDestination{conn: conn, writeTimeout: writeTimeout}
}

// NewWebSocketDestination wraps a gorilla WebSocket connection.
func NewWebSocketDestination(conn *websocket.Conn, writeTimeout time.Duration) *ChannelDestination {
	return NewChannelDestination(conn, writeTimeout)
}

func (d *ChannelDestination) Kind() string { return "channel" }

func (d *ChannelDestination) Send(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.conn == nil {
		return ErrChannelClosed
	}
	deadline := time.Now().Add(d.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = d.conn.SetWriteDeadline(deadline)
	if err := d.conn.WriteJSON(event); err != nil {
		if isClosedConnError(err) {
			d.closed = true
			return fmt.Errorf("%w: %v", ErrChannelClosed, err)
		}
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close marks the channel closed so later sends fail fast. It does not close
// the underlying connection, which its reader owns.
func (d *ChannelDestination) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Closed reports whether the channel stopped accepting events.
func (d *ChannelDestination) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func isClosedConnError(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") || strings.Contains(msg, "broken pipe")
}
