package twin

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrTooManyRuns rejects a start beyond the concurrency cap.
	ErrTooManyRuns = fmt.Errorf("twin: too many concurrent simulations: %w", httpx.ErrUnavailable)
	// ErrRunNotFound indicates an unknown or evicted run.
	ErrRunNotFound = fmt.Errorf("twin: run %w", httpx.ErrNotFound)
)

const subscriberBuffer = 16

// RunnerConfig bounds the runner.
type RunnerConfig struct {
	FPS             int
	MaxFlows        int
	MaxRuns         int
	DefaultDuration time.Duration
	Retention       time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.MaxRuns <= 0 {
		c.MaxRuns = 8
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = 10 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 10 * time.Minute
	}
	return c
}

// Options configures one run. Zero fields take the runner defaults.
type Options struct {
	Duration time.Duration
	FPS      int
	Racks    int
	Seed     uint64
	// PowerKW is the nameplate draw of the selected hardware.
	PowerKW float64
}

// Run is a point-in-time view of a simulation run.
type Run struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	FPS         int        `json:"fps"`
	Racks       int        `json:"racks"`
	Frames      int        `json:"frames"`
	TotalFrames int        `json:"totalFrames"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Results     *Results   `json:"results,omitempty"`
	LastFrame   *Frame     `json:"lastFrame,omitempty"`
}

// Finished reports whether the run has stopped producing frames.
func (r Run) Finished() bool {
	return r.Status != StatusRunning
}

type run struct {
	Run
	opts   Options
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[chan Frame]struct{}
}

// Runner owns the simulation runs of the process.
type Runner struct {
	logger  *slog.Logger
	cfg     RunnerConfig
	metrics *Metrics
	now     func() time.Time

	mu   sync.Mutex
	runs map[string]*run

	// frameHook runs before each frame; tests use it to inject panics.
	frameHook func(seq int)
}

// NewRunner constructs a runner. metrics may be nil.
func NewRunner(logger *slog.Logger, cfg RunnerConfig, metrics *Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:  logger,
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		now:     time.Now,
		runs:    make(map[string]*run),
	}
}

// WithNow overrides the clock used for timestamps and eviction.
func (r *Runner) WithNow(now func() time.Time) *Runner {
	if now != nil {
		r.now = now
	}
	return r
}

// Start launches a run detached from the caller except through ctx.
// onComplete is called only when the run finishes its full duration.
func (r *Runner) Start(ctx context.Context, opts Options, onComplete func(Run)) (Run, error) {
	opts = r.resolve(opts)

	r.mu.Lock()
	active := 0
	for _, rn := range r.runs {
		if rn.Status == StatusRunning {
			active++
		}
	}
	if active >= r.cfg.MaxRuns {
		r.mu.Unlock()
		return Run{}, ErrTooManyRuns
	}
	runCtx, cancel := context.WithCancel(ctx)
	rn := &run{
		Run: Run{
			ID:          uuid.NewString(),
			Status:      StatusRunning,
			FPS:         opts.FPS,
			Racks:       opts.Racks,
			TotalFrames: totalFrames(opts),
			StartedAt:   r.now().UTC(),
		},
		opts:   opts,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[chan Frame]struct{}),
	}
	r.runs[rn.ID] = rn
	snapshot := rn.snapshot()
	r.mu.Unlock()

	r.metrics.runStarted()
	r.logger.Info("twin run started",
		slog.String("run_id", rn.ID),
		slog.Int("frames", rn.TotalFrames),
		slog.Int("fps", opts.FPS))
	go r.loop(runCtx, rn, onComplete)
	return snapshot, nil
}

// Stop cancels a run and waits for its loop to exit. Stopping a finished run
// is a no-op.
func (r *Runner) Stop(id string) (Run, error) {
	r.mu.Lock()
	rn, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return Run{}, ErrRunNotFound
	}
	rn.cancel()
	<-rn.done
	return r.Get(id)
}

// Get returns the current snapshot of a run.
func (r *Runner) Get(id string) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return rn.snapshot(), nil
}

// Subscribe returns a channel of frames for the run. The channel is closed
// when the run finishes; call the returned func to unsubscribe early. Slow
// subscribers miss frames rather than stall the run.
func (r *Runner) Subscribe(id string) (<-chan Frame, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return nil, nil, ErrRunNotFound
	}
	ch := make(chan Frame, subscriberBuffer)
	if rn.LastFrame != nil {
		ch <- *rn.LastFrame
	}
	if rn.Status != StatusRunning {
		close(ch)
		return ch, func() {}, nil
	}
	rn.subs[ch] = struct{}{}
	return ch, func() { r.unsubscribe(rn, ch) }, nil
}

// Run evicts finished runs past the retention window until ctx ends, then
// cancels every live run and waits for them.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.cfg.Retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.stopAll()
			return nil
		case <-ticker.C:
			if n := r.evict(); n > 0 {
				r.logger.Debug("twin runs evicted", slog.Int("count", n))
			}
		}
	}
}

func (r *Runner) resolve(opts Options) Options {
	if opts.Duration <= 0 {
		opts.Duration = r.cfg.DefaultDuration
	}
	if opts.FPS <= 0 {
		opts.FPS = r.cfg.FPS
	}
	if opts.Racks <= 0 {
		opts.Racks = DefaultConfig().Racks
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	return opts
}

func totalFrames(opts Options) int {
	n := int(opts.Duration.Seconds() * float64(opts.FPS))
	return max(n, 1)
}

func (r *Runner) loop(ctx context.Context, rn *run, onComplete func(Run)) {
	defer rn.cancel()
	engine := NewEngine(Config{Racks: rn.opts.Racks, MaxFlows: r.cfg.MaxFlows}, rn.opts.Seed)
	limiter := rate.NewLimiter(rate.Limit(rn.opts.FPS), 1)
	dt := 1 / float64(rn.opts.FPS)

	for seq := 1; seq <= rn.TotalFrames; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			r.finish(rn, StatusCancelled, nil)
			return
		}
		frame, ok := r.render(rn.ID, engine, dt, seq)
		if !ok {
			continue
		}
		r.metrics.frameRendered()
		r.publish(rn, frame)
	}

	results := computeResults(engine, rn.opts.PowerKW, rn.opts.Duration.Seconds())
	snapshot := r.finish(rn, StatusCompleted, &results)
	if onComplete != nil {
		onComplete(snapshot)
	}
}

// render steps one frame, converting a panic into a skipped frame.
func (r *Runner) render(runID string, e *Engine, dt float64, seq int) (frame Frame, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.panicRecovered()
			r.logger.Error("twin frame panicked",
				slog.String("run_id", runID),
				slog.Int("frame", seq),
				slog.Any("panic", rec))
			ok = false
		}
	}()
	if r.frameHook != nil {
		r.frameHook(seq)
	}
	return e.Step(dt), true
}

func (r *Runner) publish(rn *run, frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn.Frames++
	rn.LastFrame = &frame
	for ch := range rn.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (r *Runner) finish(rn *run, status Status, results *Results) Run {
	r.mu.Lock()
	finished := r.now().UTC()
	rn.Status = status
	rn.FinishedAt = &finished
	rn.Results = results
	for ch := range rn.subs {
		delete(rn.subs, ch)
		close(ch)
	}
	snapshot := rn.snapshot()
	r.mu.Unlock()
	close(rn.done)

	r.metrics.runFinished(status)
	r.logger.Info("twin run finished",
		slog.String("run_id", rn.ID),
		slog.String("status", string(status)),
		slog.Int("frames", snapshot.Frames))
	return snapshot
}

func (r *Runner) unsubscribe(rn *run, ch chan Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := rn.subs[ch]; ok {
		delete(rn.subs, ch)
		close(ch)
	}
}

func (r *Runner) evict() int {
	cutoff := r.now().Add(-r.cfg.Retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rn := range r.runs {
		if rn.FinishedAt != nil && rn.FinishedAt.Before(cutoff) {
			delete(r.runs, id)
			n++
		}
	}
	return n
}

func (r *Runner) stopAll() {
	r.mu.Lock()
	live := make([]*run, 0, len(r.runs))
	for _, rn := range r.runs {
		if rn.Status == StatusRunning {
			live = append(live, rn)
		}
	}
	r.mu.Unlock()
	for _, rn := range live {
		rn.cancel()
		<-rn.done
	}
}

func (rn *run) snapshot() Run {
	s := rn.Run
	if rn.Results != nil {
		res := *rn.Results
		s.Results = &res
	}
	return s
}
