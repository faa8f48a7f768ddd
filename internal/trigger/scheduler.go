package trigger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sms-hub/internal/models"
)

// BatchHandler receives every non-empty batch produced by a scheduled cycle.
type BatchHandler func(ctx context.Context, batch *models.Batch)

// Scheduler drives each registered instance on its own ticker. Cycles of one
// instance never overlap; different instances run concurrently.
type Scheduler struct {
	instances []*Instance
	byName    map[string]*Instance
	handler   BatchHandler
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewScheduler(handler BatchHandler, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		byName:  make(map[string]*Instance),
		handler: handler,
		logger:  logger,
	}
}

// Register adds an instance. It must be called before Start.
func (s *Scheduler) Register(inst *Instance) {
	s.instances = append(s.instances, inst)
	s.byName[inst.Name()] = inst
}

// Instance returns the registered instance with the given name, or nil.
func (s *Scheduler) Instance(name string) *Instance {
	return s.byName[name]
}

// Instances returns all registered instances in registration order.
func (s *Scheduler) Instances() []*Instance {
	return s.instances
}

// Start launches one polling goroutine per instance. They stop when ctx is
// cancelled; Wait blocks until they have returned.
func (s *Scheduler) Start(ctx context.Context) {
	for _, inst := range s.instances {
		s.wg.Add(1)
		go func(inst *Instance) {
			defer s.wg.Done()
			s.monitor(ctx, inst)
		}(inst)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) monitor(ctx context.Context, inst *Instance) {
	cfg := inst.Config()
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = models.DefaultPollInterval
	}

	s.logger.Info("Starting SMS monitoring",
		zap.String("trigger", cfg.Name),
		zap.String("line_number", cfg.LineNumber),
		zap.Duration("polling_interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do an initial poll immediately
	s.RunOnce(ctx, inst)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, inst)
		}
	}
}

// RunOnce runs a single cycle for inst and hands a non-empty batch to the
// handler. Failures are logged and the next tick proceeds normally.
func (s *Scheduler) RunOnce(ctx context.Context, inst *Instance) {
	cfg := inst.Config()

	batch, err := inst.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Poll cycle failed",
			zap.String("trigger", cfg.Name),
			zap.String("line_number", cfg.LineNumber),
			zap.Error(err))
		return
	}

	if batch == nil {
		return
	}

	s.logger.Info("New SMS received",
		zap.String("trigger", cfg.Name),
		zap.String("line_number", cfg.LineNumber),
		zap.String("cycle_id", batch.CycleID),
		zap.Int("count", len(batch.Events)))

	if s.handler != nil {
		s.handler(ctx, batch)
	}
}
