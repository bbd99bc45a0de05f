package dashboard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one best-effort warming task.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// PreloaderConfig bounds background warming.
type PreloaderConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultPreloaderConfig returns four workers and a 30s batch deadline.
func DefaultPreloaderConfig() PreloaderConfig {
	return PreloaderConfig{Concurrency: 4, Timeout: 30 * time.Second}
}

// PreloadStats counts finished jobs.
type PreloadStats struct {
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

// EvaluationSource loads one evaluation score from upstream.
type EvaluationSource func(ctx context.Context, employeeID, quarterID string) (EvaluationScore, error)

// Preloader warms caches in the background. It never blocks the caller and never
// returns job errors; failures and panics are logged and counted.
type Preloader struct {
	caches *Caches
	cfg    PreloaderConfig
	logger *zap.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	pending int

	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// NewPreloader creates a Preloader. Non-positive config values use the defaults.
func NewPreloader(caches *Caches, cfg PreloaderConfig, logger *zap.Logger) *Preloader {
	def := DefaultPreloaderConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Preloader{caches: caches, cfg: cfg, logger: logger.Named("preloader")}
	p.idle = sync.NewCond(&p.mu)
	return p
}

// Preload runs jobs in the background and returns immediately. Jobs keep the values
// of ctx (the tenant in particular) but not its cancellation; the batch is bounded by
// the configured timeout instead.
func (p *Preloader) Preload(ctx context.Context, jobs ...Job) {
	if len(jobs) == 0 {
		return
	}

	base := context.WithoutCancel(ctx)
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	go func() {
		defer p.batchDone()

		runCtx, cancel := context.WithTimeout(base, p.cfg.Timeout)
		defer cancel()

		// A plain group: one failed job must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(p.cfg.Concurrency)
		for _, job := range jobs {
			job := job
			g.Go(func() error {
				p.run(runCtx, job)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// PreloadEvaluations warms evaluation:{employee}:{quarter} for each employee.
func (p *Preloader) PreloadEvaluations(ctx context.Context, quarterID string, employeeIDs []string, source EvaluationSource) {
	jobs := make([]Job, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		jobs = append(jobs, p.evaluationJob(id, quarterID, source))
	}
	p.Preload(ctx, jobs...)
}

// PreloadAdjacent warms the scores of the employees before and after currentID in
// employeeIDs, the pages a reviewer is most likely to open next.
func (p *Preloader) PreloadAdjacent(ctx context.Context, employeeIDs []string, currentID, quarterID string, source EvaluationSource) {
	idx := -1
	for i, id := range employeeIDs {
		if id == currentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.logger.Debug("current employee not in list", zap.String("employee_id", currentID))
		return
	}

	var jobs []Job
	if idx > 0 {
		jobs = append(jobs, p.evaluationJob(employeeIDs[idx-1], quarterID, source))
	}
	if idx < len(employeeIDs)-1 {
		jobs = append(jobs, p.evaluationJob(employeeIDs[idx+1], quarterID, source))
	}
	p.Preload(ctx, jobs...)
}

// Wait blocks until no batch is pending, including batches scheduled while waiting.
// It is safe to call concurrently with Preload.
func (p *Preloader) Wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

func (p *Preloader) batchDone() {
	p.mu.Lock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

// Stats returns job counters.
func (p *Preloader) Stats() PreloadStats {
	return PreloadStats{Succeeded: p.succeeded.Load(), Failed: p.failed.Load()}
}

func (p *Preloader) evaluationJob(employeeID, quarterID string, source EvaluationSource) Job {
	return Job{
		Name: EvaluationKey(employeeID, quarterID),
		Run: func(ctx context.Context) error {
			_, err := p.caches.Evaluations.GetScore(ctx, employeeID, quarterID, func(ctx context.Context) (EvaluationScore, error) {
				return source(ctx, employeeID, quarterID)
			})
			return err
		},
	}
}

func (p *Preloader) run(ctx context.Context, job Job) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New(fmt.Sprintf("preload job panicked: %v", r), errors.CategoryInternal)
			}
		}()
		return job.Run(ctx)
	}()

	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("preload job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	p.succeeded.Add(1)
	p.logger.Debug("preload job done", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
}
