package jobs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/tmssync"
)

// Job names double as the manual-trigger API surface.
const (
	JobAutoSync         = "auto-sync"
	JobTagSync          = "tag-sync"
	JobCarrierDirectory = "carrier-directory"
	JobVigilance        = "vigilance"
	JobHealthCheck      = "health-check"
	JobMonitoring       = "monitoring"
	JobLogCleanup       = "log-cleanup"
)

type jobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	run      jobFunc
}

type RunState struct {
	LastRunAt      *time.Time `json:"last_run_at"`
	LastStatus     string     `json:"last_status"`
	LastError      string     `json:"last_error,omitempty"`
	LastDurationMs int64      `json:"last_duration_ms"`
}

// JobStatus is one entry of the status report.
type JobStatus struct {
	Name            string `json:"name"`
	IntervalSeconds int    `json:"interval_seconds"`
	Active          bool   `json:"active"`
	RunState
}

// TriggerResult is the manual-trigger response shape.
type TriggerResult struct {
	Success    bool      `json:"success"`
	Job        string    `json:"job"`
	ExecutedAt time.Time `json:"executedAt"`
	Error      string    `json:"error,omitempty"`
}

// Runner owns the background schedule: one goroutine and ticker per job,
// a panic in one job never takes down another or the process.
type Runner struct {
	orchestrator *tmssync.Orchestrator
	cache        *cache.Service
	notifier     Notifier
	logger       *logrus.Logger

	jobs []job

	mu      sync.Mutex
	state   map[string]RunState
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(orchestrator *tmssync.Orchestrator, cacheService *cache.Service, notifier Notifier, logger *logrus.Logger) *Runner {
	r := &Runner{
		orchestrator: orchestrator,
		cache:        cacheService,
		notifier:     notifier,
		logger:       logger,
		state:        map[string]RunState{},
	}
	r.jobs = []job{
		{JobAutoSync, secondsFromEnv("AUTO_SYNC_INTERVAL_SECONDS", 30), r.autoSync},
		{JobTagSync, secondsFromEnv("TAG_SYNC_INTERVAL_SECONDS", 60), r.tagSync},
		{JobCarrierDirectory, secondsFromEnv("CARRIER_DIRECTORY_INTERVAL_SECONDS", 300), r.carrierDirectory},
		{JobVigilance, secondsFromEnv("VIGILANCE_INTERVAL_SECONDS", 3600), r.vigilanceSweep},
		{JobHealthCheck, secondsFromEnv("HEALTH_CHECK_INTERVAL_SECONDS", 300), r.healthCheck},
		{JobMonitoring, secondsFromEnv("MONITORING_INTERVAL_SECONDS", 300), r.monitoring},
		{JobLogCleanup, secondsFromEnv("LOG_CLEANUP_INTERVAL_SECONDS", 86400), r.logCleanup},
	}
	return r
}

// Start launches every job loop. Jobs fire after their first full interval,
// not at startup, so a boot loop cannot hammer the upstream API.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
	r.logger.WithField("jobs", len(r.jobs)).Info("background job runner started")
}

func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("background job runner stopped")
}

func (r *Runner) loop(ctx context.Context, j job) {
	defer r.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, j)
		}
	}
}

// execute runs one job invocation with panic isolation and records the
// outcome in the state map.
func (r *Runner) execute(ctx context.Context, j job) (err error) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			config.LogError(r.logger, "jobs", j.name, "job panicked", nil, err)
		}
		r.recordOutcome(j.name, started, err)
	}()

	err = j.run(ctx)
	if err != nil {
		config.LogError(r.logger, "jobs", j.name, "job failed", nil, err)
	}
	return err
}

func (r *Runner) recordOutcome(name string, started time.Time, err error) {
	now := time.Now()
	state := RunState{
		LastRunAt:      &started,
		LastStatus:     "ok",
		LastDurationMs: now.Sub(started).Milliseconds(),
	}
	if err != nil {
		state.LastStatus = "error"
		state.LastError = err.Error()
	}
	r.mu.Lock()
	r.state[name] = state
	r.mu.Unlock()
}

// RunJob triggers one job by name, outside its schedule.
func (r *Runner) RunJob(ctx context.Context, name string) TriggerResult {
	executedAt := time.Now()
	for _, j := range r.jobs {
		if j.name != name {
			continue
		}
		if err := r.execute(ctx, j); err != nil {
			return TriggerResult{Success: false, Job: name, ExecutedAt: executedAt, Error: err.Error()}
		}
		return TriggerResult{Success: true, Job: name, ExecutedAt: executedAt}
	}
	return TriggerResult{Success: false, Job: name, ExecutedAt: executedAt, Error: "unknown job"}
}

// Status reports every job's cadence and last outcome.
func (r *Runner) Status() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]JobStatus, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, JobStatus{
			Name:            j.name,
			IntervalSeconds: int(j.interval / time.Second),
			Active:          r.started,
			RunState:        r.state[j.name],
		})
	}
	return out
}

func secondsFromEnv(key string, def int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(def) * time.Second
}
