package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"studai/internal/config"
	"studai/internal/deps"
	"studai/internal/jobs"
	"studai/internal/jobs/history"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/storage"
	"studai/internal/workflow"
)

// Options carries the collaborators a daemon coordinates.
type Options struct {
	Registry jobs.Registry
	// Archive receives swept jobs. Nil disables the history archive.
	Archive  *history.Store
	Workflow *workflow.Manager
	// Store is the artifact store; a local store is served under /api/videos/.
	Store  storage.Store
	Alerts notifications.Service
}

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry jobs.Registry
	archive  *history.Store
	workflow *workflow.Manager
	store    storage.Store
	alerts   notifications.Service
	sweeper  *jobs.Sweeper
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	Workflow        workflow.StatusSummary
	RegistryBackend string
	StorageDriver   string
	HistoryPath     string
	LockFilePath    string
	Dependencies    []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, opts Options, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || opts.Registry == nil || opts.Workflow == nil {
		return nil, errors.New("daemon requires config, registry, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	alerts := opts.Alerts
	if alerts == nil {
		alerts = notifications.NewService(cfg)
	}

	var archiver jobs.Archiver
	if opts.Archive != nil {
		archiver = opts.Archive
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		registry: opts.Registry,
		archive:  opts.Archive,
		workflow: opts.Workflow,
		store:    opts.Store,
		alerts:   alerts,
		sweeper:  jobs.NewSweeper(opts.Registry, archiver, cfg.Retention(), cfg.SweepInterval(), logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, then launches the workflow manager, the
// retention sweeper, and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another studaid instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop(time.Second)
		d.abortStart()
		return err
	}
	go d.sweeper.Run(d.ctx)

	d.running.Store(true)
	d.logger.Info("studai daemon started",
		logging.String("lock", d.lockPath),
		logging.String("registry", d.cfg.Registry.Backend),
		logging.String("storage", d.storageDriver()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop closes the API server, cancels in-flight jobs, waits for them up to the
// configured grace period, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.workflow.Stop(d.cfg.ShutdownGrace())
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("studai daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.registry != nil {
		errs = append(errs, d.registry.Close())
	}
	if d.archive != nil {
		errs = append(errs, d.archive.Close())
	}
	return errors.Join(errs...)
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.alerts.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		Workflow:        d.workflow.Status(ctx),
		RegistryBackend: d.cfg.Registry.Backend,
		StorageDriver:   d.storageDriver(),
		LockFilePath:    d.lockPath,
		Dependencies:    deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if d.archive != nil {
		status.HistoryPath = d.archive.Path()
	}
	return status
}

func (d *Daemon) storageDriver() string {
	if d.store == nil {
		return ""
	}
	return d.store.Driver()
}

func (d *Daemon) uploadsDir() string {
	return filepath.Join(d.cfg.Paths.WorkDir, "uploads")
}
