package daemon

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"studai/internal/api"
	"studai/internal/notifications"
	"studai/internal/services"
	"studai/internal/workflow"
)

func staticLookup(addrs map[string]string) ipLookup {
	return func(_ context.Context, host string) ([]net.IP, error) {
		addr, ok := addrs[host]
		if !ok {
			return nil, errors.New("no such host")
		}
		return []net.IP{net.ParseIP(addr)}, nil
	}
}

func TestCheckDocumentURL(t *testing.T) {
	srv := &apiServer{
		documentHosts: []string{".blob.core.windows.net", "docs.example.org"},
		lookupIP: staticLookup(map[string]string{
			"acct.blob.core.windows.net":   "20.60.1.2",
			"docs.example.org":             "93.184.216.34",
			"rebind.blob.core.windows.net": "169.254.169.254",
		}),
	}
	cases := []struct {
		url  string
		want string
	}{
		{"https://acct.blob.core.windows.net/files/unit.pdf?sig=x", ""},
		{"https://docs.example.org/unit.pdf", ""},
		{"ftp://docs.example.org/unit.pdf", "scheme"},
		{"/relative/unit.pdf", "absolute"},
		{"https://evil.example.com/unit.pdf", "api.document_hosts"},
		{"http://127.0.0.1:8000/api/videos/x.pdf", "api.document_hosts"},
		{"https://rebind.blob.core.windows.net/unit.pdf", "non-public"},
		{"https://missing.blob.core.windows.net/unit.pdf", "does not resolve"},
	}
	for _, tc := range cases {
		err := srv.checkDocumentURL(context.Background(), tc.url)
		if tc.want == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.url, err)
			}
			continue
		}
		if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected validation error containing %q, got %v", tc.url, tc.want, err)
		}
	}
}

func TestCheckDocumentURLOpenAllowlistStillBlocksPrivateAddresses(t *testing.T) {
	srv := &apiServer{lookupIP: staticLookup(map[string]string{
		"localhost":      "127.0.0.1",
		"intranet.local": "10.0.0.8",
	})}
	for _, raw := range []string{
		"http://localhost/x.pdf",
		"http://127.0.0.1/x.pdf",
		"http://[::1]/x.pdf",
		"http://169.254.169.254/latest/meta-data",
		"http://intranet.local/x.pdf",
	} {
		if err := srv.checkDocumentURL(context.Background(), raw); !errors.Is(err, services.ErrValidation) {
			t.Errorf("%s: expected rejection, got %v", raw, err)
		}
	}
	if err := srv.checkDocumentURL(context.Background(), "https://93.184.216.34/x.pdf"); err != nil {
		t.Fatalf("public address should pass: %v", err)
	}
}

func TestWebSocketRejectsLoopbackDocumentURL(t *testing.T) {
	env := newTestEnv(t, workflow.Dependencies{})

	conn, _, err := websocket.DefaultDialer.Dial(socketURL(env.server), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(api.GenerateMessage{PDFURL: "http://127.0.0.1:9/secret.pdf"}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event notifications.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read error event: %v", err)
	}
	if event.Stage != notifications.StageError || !strings.Contains(event.Message, "api.document_hosts") {
		t.Fatalf("expected host rejection, got %+v", event)
	}
	if list, _ := env.registry.List(context.Background()); len(list) != 0 {
		t.Fatalf("rejected request must not create a job, got %d", len(list))
	}
}
