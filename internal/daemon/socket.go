package daemon

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"studai/internal/api"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/services"
	"studai/internal/workflow"
)

const (
	socketRequestTimeout = 30 * time.Second
	socketReadLimit      = 64 << 10
	socketCloseTimeout   = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// socketDestination forwards events to the connection and signals once the
// job reached a terminal stage.
type socketDestination struct {
	*notifications.ChannelDestination
	done chan struct{}
	once sync.Once
}

func newSocketDestination(channel *notifications.ChannelDestination) *socketDestination {
	return &socketDestination{ChannelDestination: channel, done: make(chan struct{})}
}

func (d *socketDestination) Send(ctx context.Context, event notifications.Event) error {
	err := d.ChannelDestination.Send(ctx, event)
	if event.Stage.Terminal() {
		d.once.Do(func() { close(d.done) })
	}
	return err
}

// handleSocket reads one generation request, runs it, and streams progress
// events until the job finishes or the client goes away. A disconnect does
// not cancel the job.
func (s *apiServer) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(socketReadLimit)

	_ = conn.SetReadDeadline(time.Now().Add(socketRequestTimeout))
	var msg api.GenerateMessage
	if err := conn.ReadJSON(&msg); err != nil {
		s.rejectSocket(conn, "invalid request: "+err.Error())
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sub, err := s.socketSubmission(r.Context(), msg)
	if err != nil {
		s.rejectSocket(conn, services.Details(err).Message)
		return
	}
	dest := newSocketDestination(notifications.NewWebSocketDestination(conn, s.daemon.cfg.WebhookTimeout()))
	sub.Destination = dest
	sub.DestinationLabel = "websocket"

	job, err := s.daemon.workflow.Submit(r.Context(), sub)
	if err != nil {
		dest.Close()
		s.rejectSocket(conn, services.Details(err).Message)
		return
	}
	logger := logging.WithContext(services.WithJobID(r.Context(), job.ID), s.logger)
	logger.Debug("websocket job attached", logging.String("remote", r.RemoteAddr))

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	select {
	case <-dest.done:
		dest.Close()
		closeSocket(conn, websocket.CloseNormalClosure, "job finished")
	case <-gone:
		dest.Close()
		logger.Info("websocket client disconnected; job continues",
			logging.String(logging.FieldEventType, "websocket_client_gone"),
		)
	case <-s.context().Done():
		dest.Close()
		closeSocket(conn, websocket.CloseGoingAway, "server shutting down")
	}
}

func (s *apiServer) socketSubmission(ctx context.Context, msg api.GenerateMessage) (workflow.Submission, error) {
	sub := workflow.Submission{
		Instruction: msg.UserAdditionalInput,
		Gender:      normalizeGender(msg.Gender),
	}
	name := strings.TrimSpace(msg.PDFName)
	switch {
	case strings.TrimSpace(msg.PDFURL) != "":
		rawURL := strings.TrimSpace(msg.PDFURL)
		if err := s.checkDocumentURL(ctx, rawURL); err != nil {
			return sub, err
		}
		sub.DocumentURL = rawURL
		if name == "" {
			name = documentNameFromURL(rawURL)
		}
		sub.DocumentName = name
	case name != "":
		local, err := s.resolveUpload(name)
		if err != nil {
			return sub, err
		}
		sub.DocumentPath = local
		sub.DocumentName = name
	}
	return sub, nil
}

func (s *apiServer) rejectSocket(conn *websocket.Conn, message string) {
	event := notifications.Event{
		Stage:     notifications.StageError,
		Message:   "Error: " + message,
		Timestamp: time.Now().UTC(),
	}.With("error", message)
	_ = conn.SetWriteDeadline(time.Now().Add(socketCloseTimeout))
	_ = conn.WriteJSON(event)
	closeSocket(conn, websocket.ClosePolicyViolation, "request rejected")
}

func closeSocket(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(socketCloseTimeout))
}

func documentNameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}
