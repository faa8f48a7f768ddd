package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"sms-hub/internal/checkpoint"
	"sms-hub/internal/models"
)

// ErrCycleInProgress is returned by TryPoll when another cycle for the same
// instance has not finished yet.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// CheckpointError reports that the prior state could not be loaded. The
// cycle is aborted before the gateway is queried.
type CheckpointError struct {
	Trigger string
	Err     error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("trigger %s: checkpoint: %v", e.Trigger, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// Instance pairs an engine with its checkpoint and serializes its cycles.
type Instance struct {
	engine *Engine
	store  checkpoint.Store
	logger *zap.Logger
	mu     sync.Mutex
}

func NewInstance(engine *Engine, store checkpoint.Store, logger *zap.Logger) *Instance {
	if store == nil {
		store = checkpoint.Nop{}
	}
	return &Instance{
		engine: engine,
		store:  store,
		logger: logger,
	}
}

func (i *Instance) Name() string {
	return i.engine.cfg.Name
}

func (i *Instance) Config() models.PollConfiguration {
	return i.engine.Config()
}

func (i *Instance) Phase() Phase {
	return i.engine.Phase()
}

// Poll runs one cycle, waiting for any cycle already in flight.
func (i *Instance) Poll(ctx context.Context) (*models.Batch, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.poll(ctx)
}

// TryPoll runs one cycle unless another is in flight, in which case it
// returns ErrCycleInProgress.
func (i *Instance) TryPoll(ctx context.Context) (*models.Batch, error) {
	if !i.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer i.mu.Unlock()
	return i.poll(ctx)
}

func (i *Instance) poll(ctx context.Context) (*models.Batch, error) {
	name := i.Name()

	prior, err := i.store.Load(ctx, name)
	if err != nil {
		return nil, &CheckpointError{Trigger: name, Err: err}
	}

	batch, next, err := i.engine.RunPollCycle(ctx, prior)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	// The gateway has already marked these messages read, so a failed save
	// must not drop the batch, and a cancelled caller must not skip the save.
	if err := i.store.Save(context.WithoutCancel(ctx), name, next); err != nil {
		i.logger.Warn("Failed to save checkpoint",
			zap.String("trigger", name),
			zap.Error(err))
	}

	return batch, nil
}
