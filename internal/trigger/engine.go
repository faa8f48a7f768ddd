package trigger

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sms-hub/internal/checkpoint"
	"sms-hub/internal/models"
)

// Fetcher is the remote mailbox the engine reads from.
type Fetcher interface {
	FetchUnreadInbound(ctx context.Context, lineNumber string) ([]models.RawInboundMessage, error)
}

// Phase is the engine's position in a poll cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseFiltering
	PhaseEmitting
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseFiltering:
		return "filtering"
	case PhaseEmitting:
		return "emitting"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Engine runs poll cycles for one trigger instance. It owns no timers; the
// caller decides when to invoke RunPollCycle and must not overlap calls.
type Engine struct {
	cfg     models.PollConfiguration
	fetcher Fetcher
	window  int
	now     func() time.Time
	logger  *zap.Logger
	phase   atomic.Int32
}

// NewEngine builds an engine. window is the number of emitted message IDs
// carried in State between cycles; zero disables local dedup.
func NewEngine(cfg models.PollConfiguration, fetcher Fetcher, window int, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		window:  window,
		now:     time.Now,
		logger:  logger,
	}
}

// Config returns the engine's poll configuration.
func (e *Engine) Config() models.PollConfiguration {
	return e.cfg
}

// Phase returns the phase of the current or last cycle.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// RunPollCycle fetches unread messages once and returns the matching ones as
// a batch. A nil batch with a nil error means no new data. On error nothing
// is emitted and prior is returned unchanged.
func (e *Engine) RunPollCycle(ctx context.Context, prior checkpoint.State) (*models.Batch, checkpoint.State, error) {
	if e.cfg.LineNumber == "" {
		e.setPhase(PhaseError)
		return nil, prior, &models.ConfigurationError{Op: "poll cycle", Err: errors.New("line number is required")}
	}

	e.setPhase(PhasePolling)
	entries, err := e.fetcher.FetchUnreadInbound(ctx, e.cfg.LineNumber)
	if err != nil {
		e.setPhase(PhaseError)
		return nil, prior, err
	}

	e.setPhase(PhaseFiltering)
	events, next := Cycle(e.cfg, prior, entries, e.now(), e.window)

	e.setPhase(PhaseEmitting)
	defer e.setPhase(PhaseIdle)

	if skipped := len(entries) - len(events); skipped > 0 {
		e.logger.Debug("Messages filtered out",
			zap.String("trigger", e.cfg.Name),
			zap.String("line_number", e.cfg.LineNumber),
			zap.Int("skipped", skipped))
	}

	if len(events) == 0 {
		return nil, next, nil
	}

	return &models.Batch{
		CycleID: uuid.New().String(),
		Trigger: e.cfg.Name,
		Events:  events,
	}, next, nil
}

// Cycle applies cfg's filters to entries in order and maps the survivors to
// events stamped with now. Entries whose message ID was already emitted, in
// this call or in prior, are skipped. It returns the events and the state
// for the next cycle.
func Cycle(cfg models.PollConfiguration, prior checkpoint.State, entries []models.RawInboundMessage, now time.Time, window int) ([]models.EmittedEvent, checkpoint.State) {
	var events []models.EmittedEvent
	var emitted []string
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		id := entry.MessageID.String()
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			if window > 0 && prior.Contains(id) {
				continue
			}
		}

		if !Matches(cfg, entry) {
			continue
		}

		if id != "" {
			seen[id] = struct{}{}
			emitted = append(emitted, id)
		}
		events = append(events, newEvent(cfg, entry, now))
	}

	return events, prior.With(emitted, window)
}

func newEvent(cfg models.PollConfiguration, entry models.RawInboundMessage, now time.Time) models.EmittedEvent {
	event := models.EmittedEvent{
		MessageID:  entry.MessageID,
		Date:       entry.Date,
		LineNumber: cfg.LineNumber,
		RawData:    entry.RawPayload,
		ObservedAt: now.UTC(),
	}
	if entry.Sender != nil {
		event.Sender = *entry.Sender
	}
	if entry.Message != nil {
		event.Message = *entry.Message
	}
	return event
}
