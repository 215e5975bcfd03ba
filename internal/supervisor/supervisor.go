// Package supervisor owns the set of device workers and the daily
// schedule, per spec.md §4.7: it spawns, watchdogs, and restarts
// workers within a budget, and fatally terminates the process when that
// budget is exhausted.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nature40/radiotracking-go/internal/fanout"
	"github.com/nature40/radiotracking-go/internal/sdr"
	"github.com/nature40/radiotracking-go/internal/worker"
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// DeviceFactory builds a fresh sdr.Device for a worker (re)spawn. It is
// called once per spawn attempt, so a real implementation can re-open
// hardware by index or serial each time.
type DeviceFactory func(device sig.DeviceID) (sdr.Device, error)

// managedWorker tracks one logical device slot's current goroutine and
// restart budget.
type managedWorker struct {
	device      sig.DeviceID
	cfg         worker.Config
	newDevice   DeviceFactory
	restartLeft int
	cancel      context.CancelFunc
	health      *worker.Health
	running     bool

	// scheduledOff is true for a worker deliberately stopped by StopAll
	// (a scheduled "off" interval, or final shutdown), as opposed to one
	// that died on its own. checkAndRespawn must not spend restart budget
	// respawning a worker the schedule intentionally stopped; it is
	// cleared the moment the worker is (re)spawned.
	scheduledOff bool
}

// Supervisor drives the supervision loop of spec.md §4.7: health checks,
// respawns, scheduled start/stop, and queue draining, once per second.
type Supervisor struct {
	queue   *fanout.Queue
	logger  *log.Logger
	tick    time.Duration
	workers []*managedWorker

	mu sync.Mutex

	onFatal func(error)
}

// New builds a Supervisor around queue that runs its supervision loop
// every tick and calls onFatal when a worker's restart budget is
// exhausted. Workers are registered afterwards with AddWorker.
func New(queue *fanout.Queue, tick time.Duration, onFatal func(error)) *Supervisor {
	return &Supervisor{
		queue:   queue,
		logger:  log.New(log.Writer(), "[supervisor] ", log.LstdFlags),
		tick:    tick,
		onFatal: onFatal,
	}
}

// AddWorker registers a device slot. cfg.Device must be unique across
// calls.
func (s *Supervisor) AddWorker(cfg worker.Config, restartBudget int, factory DeviceFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, &managedWorker{
		device:      cfg.Device,
		cfg:         cfg,
		newDevice:   factory,
		restartLeft: restartBudget,
	})
}

// spawn starts (or respawns) the worker for mw, wiring its health
// pointer so the supervision loop can watch it, per spec.md §5's
// single-writer/many-reader last_data_ts requirement.
func (s *Supervisor) spawn(ctx context.Context, mw *managedWorker) {
	dev, err := mw.newDevice(mw.device)
	if err != nil {
		s.logger.Printf("device %s: factory error: %v", mw.device, err)
		return
	}

	w := worker.New(mw.cfg, dev, s.queue)
	mw.health = w.Health()

	workerCtx, cancel := context.WithCancel(ctx)
	mw.cancel = cancel
	mw.running = true
	mw.scheduledOff = false

	go func() {
		if err := w.Run(workerCtx); err != nil {
			s.logger.Printf("device %s: run error: %v", mw.device, err)
		}
		s.mu.Lock()
		mw.running = false
		s.mu.Unlock()
	}()
}

// StartAll spawns every registered worker that is not already running.
func (s *Supervisor) StartAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mw := range s.workers {
		if !mw.running {
			s.spawn(ctx, mw)
		}
	}
}

// StopAll cancels every running worker's context and marks each as
// deliberately stopped, so checkAndRespawn does not mistake the
// resulting "not running" state for a dead worker.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mw := range s.workers {
		mw.scheduledOff = true
		if mw.running && mw.cancel != nil {
			mw.cancel()
		}
	}
}

// Run executes the once-per-second supervision loop of spec.md §4.7
// until ctx is canceled: health check, respawn, schedule, drain.
func (s *Supervisor) Run(ctx context.Context, schedule *Schedule) {
	s.StartAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.StopAll()
			return
		case <-ticker.C:
			s.checkAndRespawn(ctx)
			if schedule != nil {
				s.applySchedule(ctx, schedule, time.Now())
			}
			s.queue.Drain(ctx, s.tick)
		}
	}
}

// checkAndRespawn implements step 1-2 of spec.md §4.7's supervision
// loop: mark dead workers whose last_data_ts is older than twice the SDR
// timeout (or whose goroutine has already exited),
// and either respawn within budget or fatally terminate. Workers that
// are not running because the schedule deliberately stopped them
// (mw.scheduledOff) are left alone — that is applySchedule's job, not
// a restart-budget concern.
func (s *Supervisor) checkAndRespawn(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mw := range s.workers {
		if mw.running {
			if mw.health != nil {
				last := mw.health.LastDataTSValue()
				if !last.IsZero() && time.Since(last) > mw.cfg.SDRTimeout*2 {
					s.logger.Printf("device %s: stale (last data %s ago), terminating", mw.device, time.Since(last))
					if mw.cancel != nil {
						mw.cancel()
					}
					mw.running = false
				} else {
					continue
				}
			} else {
				continue
			}
		}

		if mw.scheduledOff {
			continue
		}

		if mw.restartLeft <= 0 {
			err := fmt.Errorf("device %s: exhausted restart budget", mw.device)
			s.logger.Printf("%v", err)
			if s.onFatal != nil {
				s.onFatal(err)
			}
			return
		}

		mw.restartLeft--
		s.logger.Printf("device %s: respawning (%d restarts left)", mw.device, mw.restartLeft)
		s.spawn(ctx, mw)
	}
}
