package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"studai/internal/config"
	"studai/internal/jobs"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/stageexec"
)

// Manager submits and runs generation jobs.
type Manager struct {
	cfg      *config.Config
	registry jobs.Registry
	deps     Dependencies
	notifier *notifications.Notifier
	alerts   notifications.Service
	logger   *slog.Logger

	renderPool *stageexec.Pool
	jobSlots   chan struct{}
	newID      func() string
	now        func() time.Time

	mu       sync.RWMutex
	running  bool
	stopping bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	active   map[string]struct{}
	lastErr  error
	lastJob  *jobs.Job
	started  time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithAlerts overrides the operator alert service.
func WithAlerts(service notifications.Service) ManagerOption {
	return func(m *Manager) {
		if service != nil {
			m.alerts = service
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, registry jobs.Registry, deps Dependencies, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	renderWorkers := cfg.Workflow.RenderWorkers
	if renderWorkers <= 0 {
		renderWorkers = 1
	}
	maxJobs := cfg.Workflow.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}
	m := &Manager{
		cfg:        cfg,
		registry:   registry,
		deps:       deps,
		notifier:   notifications.NewNotifier(logger),
		alerts:     notifications.NewService(cfg),
		logger:     logger,
		renderPool: stageexec.NewPool(renderWorkers),
		jobSlots:   make(chan struct{}, maxJobs),
		newID:      uuid.NewString,
		now:        time.Now,
		active:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the job registry backing the manager.
func (m *Manager) Registry() jobs.Registry {
	return m.registry
}
