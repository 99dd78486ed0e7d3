package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"studai/internal/notifications"
)

func newCallbackListenCommand() *cobra.Command {
	var (
		listen string
		once   bool
	)

	cmd := &cobra.Command{
		Use:         "callback-listen",
		Short:       "Print webhook progress events posted by the daemon",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Listening for callbacks on http://%s/\n", listener.Addr())

			terminal := make(chan struct{})
			handler := newCallbackHandler(cmd.OutOrStdout(), terminal)
			server := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.Serve(listener) }()

			var done <-chan struct{}
			if once {
				done = terminal
			}
			select {
			case <-cmd.Context().Done():
			case <-done:
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8090", "Address to receive webhook events on")
	cmd.Flags().BoolVar(&once, "once", false, "Exit after the first completed or error event")
	return cmd
}

// newCallbackHandler prints one line per posted event and closes terminal
// after the first completed or error event.
func newCallbackHandler(out io.Writer, terminal chan struct{}) http.Handler {
	var (
		mu        sync.Mutex
		closeOnce sync.Once
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var event notifications.Event
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&event); err != nil {
			http.Error(w, "invalid event", http.StatusBadRequest)
			return
		}
		mu.Lock()
		fmt.Fprintln(out, formatEventLine(event))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		if event.Stage.Terminal() {
			closeOnce.Do(func() { close(terminal) })
		}
	})
}

func formatEventLine(event notifications.Event) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", ts.Local().Format("15:04:05"), event.Stage)
	if event.JobID != "" {
		fmt.Fprintf(&b, " %s", event.JobID)
	}
	if event.Message != "" {
		fmt.Fprintf(&b, " %s", event.Message)
	}
	keys := make([]string, 0, len(event.Fields))
	for key := range event.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, event.Fields[key])
	}
	return b.String()
}
