// Package daemon runs periodic syncs and serves health and metrics
// endpoints.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/knyar/urconf"
	"github.com/knyar/urconf/internal/journal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds daemon settings.
type Config struct {
	SyncInterval time.Duration
	Listen       string
	SyncTimeout  time.Duration
}

// Daemon periodically re-syncs the declared configuration and exposes
// /healthz and /metrics over HTTP.
type Daemon struct {
	cfg     Config
	ur      *urconf.UptimeRobot
	journal *journal.Journal // may be nil
	logger  *zap.Logger

	mu             sync.RWMutex
	lastSyncTime   time.Time
	lastSyncResult *urconf.SyncResult
	lastSyncErr    error
}

// New creates a Daemon. jnl may be nil to disable run recording.
func New(ur *urconf.UptimeRobot, jnl *journal.Journal, cfg Config, logger *zap.Logger) *Daemon {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 15 * time.Minute
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 2 * time.Minute
	}
	return &Daemon{cfg: cfg, ur: ur, journal: jnl, logger: logger}
}

// Run syncs immediately, then on every tick, until ctx is cancelled. The
// HTTP endpoints are served for the lifetime of the loop.
func (d *Daemon) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", d.handleHealth)

	srv := &http.Server{Addr: d.cfg.Listen, Handler: mux}
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	d.logger.Info("daemon started",
		zap.String("listen", d.cfg.Listen),
		zap.Duration("sync_interval", d.cfg.SyncInterval),
	)

	d.runSync(ctx)

	ticker := time.NewTicker(d.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.runSync(ctx)
		case err := <-srvErr:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			d.logger.Info("daemon stopped")
			return nil
		}
	}
}

func (d *Daemon) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, d.cfg.SyncTimeout)
	defer cancel()

	started := time.Now().UTC()
	result, err := d.ur.Sync(syncCtx)
	finished := time.Now().UTC()

	d.mu.Lock()
	d.lastSyncTime = finished
	d.lastSyncResult = result
	d.lastSyncErr = err
	d.mu.Unlock()

	if d.journal != nil {
		run := &journal.Run{StartedAt: started, FinishedAt: finished}
		if result != nil {
			run.DryRun = result.DryRun
			run.Contacts = result.Contacts
			run.Monitors = result.Monitors
		}
		if err != nil {
			run.Err = err.Error()
		}
		// ctx may already be cancelled during shutdown; the final run still
		// gets recorded.
		recordCtx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if jerr := d.journal.Record(recordCtx, run); jerr != nil {
			d.logger.Warn("failed to record sync run", zap.Error(jerr))
		}
		rcancel()
	}

	if err != nil {
		d.logger.Error("sync failed", zap.Error(err))
		return
	}

	d.logger.Info("sync completed",
		zap.Bool("dry_run", result.DryRun),
		zap.Int("mutations", result.Mutations()),
		zap.Int("contacts_created", result.Contacts.Created),
		zap.Int("monitors_created", result.Monitors.Created),
	)
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status   string             `json:"status"`
	Message  string             `json:"message,omitempty"`
	LastSync string             `json:"last_sync,omitempty"`
	Result   *urconf.SyncResult `json:"result,omitempty"`
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	resp := healthResponse{Status: "ok"}
	if !d.lastSyncTime.IsZero() {
		resp.LastSync = d.lastSyncTime.Format(time.RFC3339)
	}
	if d.lastSyncErr != nil {
		resp.Status = "degraded"
		resp.Message = "last sync failed: " + d.lastSyncErr.Error()
	} else if d.lastSyncResult == nil {
		resp.Message = "awaiting first sync"
	} else {
		resp.Result = d.lastSyncResult
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
