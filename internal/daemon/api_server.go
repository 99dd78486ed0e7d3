package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"studai/internal/api"
	"studai/internal/config"
	"studai/internal/jobs"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/services"
	"studai/internal/storage"
	"studai/internal/workflow"
)

const defaultHistoryLimit = 50

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	local  *storage.Local

	maxUpload     int64
	documentHosts []string
	lookupIP      ipLookup

	mu       sync.Mutex
	baseCtx  context.Context
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:      bind,
		token:     strings.TrimSpace(cfg.API.Token),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		daemon:    d,
		maxUpload:     int64(cfg.API.MaxUploadMB) << 20,
		documentHosts: append([]string(nil), cfg.API.DocumentHosts...),
		lookupIP:      defaultIPLookup,
		baseCtx:       context.Background(),
	}
	if local, ok := d.store.(*storage.Local); ok {
		srv.local = local
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.RouteGenerate, authMiddleware(s.token, s.handleGenerate))
	mux.HandleFunc("GET "+api.RouteStatus+"{id}", authMiddleware(s.token, s.handleJobStatus))
	mux.HandleFunc("GET "+api.RouteResult+"{id}", authMiddleware(s.token, s.handleJobResult))
	mux.HandleFunc("GET "+api.RouteSocket, authMiddleware(s.token, s.handleSocket))
	mux.HandleFunc("POST /api/documents", authMiddleware(s.token, s.handleDocumentUpload))
	mux.HandleFunc("GET "+api.RouteDaemon, authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("GET "+api.RouteJobs, authMiddleware(s.token, s.handleJobs))
	mux.HandleFunc("GET "+api.RouteHistory, authMiddleware(s.token, s.handleHistory))
	mux.HandleFunc("POST "+api.RouteNotify, authMiddleware(s.token, s.handleTestNotification))
	mux.HandleFunc("GET "+storage.VideoRoute+"{name...}", s.handleVideo)
	return requestIDMiddleware(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.baseCtx = ctx
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
				logging.String(logging.FieldErrorHint, "check api.bind and port availability"),
			)
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), "validation")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid form: "+err.Error(), "validation")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	sub := workflow.Submission{
		Instruction: r.FormValue("user_additional_input"),
		Gender:      normalizeGender(r.FormValue("gender")),
	}
	if callback := strings.TrimSpace(r.FormValue("callback_url")); callback != "" {
		if err := validateCallbackURL(callback); err != nil {
			s.writeServiceError(w, err)
			return
		}
		sub.Destination = notifications.NewWebhookDestination(callback, s.daemon.cfg.WebhookTimeout())
		sub.DestinationLabel = callback
	}

	saved, err := s.saveUpload(r, "file")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if saved != nil {
		sub.DocumentPath = saved.path
		sub.DocumentName = saved.original
	}

	job, err := s.daemon.workflow.Submit(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{JobID: job.ID, Status: string(job.Status)})
}

func (s *apiServer) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form: "+err.Error(), "validation")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	saved, err := s.saveUpload(r, "file")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if saved == nil {
		s.writeError(w, http.StatusBadRequest, "file is required", "validation")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"pdf_name": saved.stored})
}

func (s *apiServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	switch job.Status {
	case jobs.StatusCompleted:
		s.writeJSON(w, http.StatusOK, job.Result)
	case jobs.StatusError:
		s.writeError(w, http.StatusUnprocessableEntity, job.Error, job.ErrorKind)
	default:
		s.writeError(w, http.StatusConflict, "job not ready", "")
	}
}

func (s *apiServer) lookupJob(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, http.StatusNotFound, "job not found", string(services.KindNotFound))
		return nil, false
	}
	job, err := s.daemon.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found", string(services.KindNotFound))
			return nil, false
		}
		s.writeServiceError(w, err)
		return nil, false
	}
	return job, true
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		RegistryBackend: status.RegistryBackend,
		StorageDriver:   status.StorageDriver,
		HistoryPath:     status.HistoryPath,
		LockFilePath:    status.LockFilePath,
		Workflow:        api.FromStatusSummary(status.Workflow),
		Dependencies:    api.FromDependencies(status.Dependencies),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.registry.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(list)})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.daemon.archive == nil {
		s.writeJSON(w, http.StatusOK, []api.HistoryEntry{})
		return
	}
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer", "validation")
			return
		}
		limit = parsed
	}
	entries, err := s.daemon.archive.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]api.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, api.FromHistoryEntry(entry))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, message+": "+err.Error(), string(services.KindExternalTool))
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationResponse{Sent: sent, Message: message})
}

func validateCallbackURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return services.Wrap(services.ErrValidation, "submit", "callback",
			fmt.Sprintf("callback_url %q must be an absolute http(s) URL", raw), err)
	}
	return nil
}

func normalizeGender(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "female", "f", "woman":
		return "female"
	case "male", "m", "man":
		return "male"
	default:
		return ""
	}
}

func statusForError(err error) int {
	switch services.Kind(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConfiguration:
		return http.StatusServiceUnavailable
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	details := services.Details(err)
	code := statusForError(err)
	if code >= http.StatusInternalServerError {
		s.logger.Warn("api request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String(logging.FieldErrorHint, details.Hint),
		)
	}
	s.writeError(w, code, details.Message, string(details.Kind))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}
