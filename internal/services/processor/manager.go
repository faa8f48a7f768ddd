package processor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"sms-hub/internal/config"
	"sms-hub/internal/models"
)

// dispatchTimeout bounds the delivery of one batch. Delivery is detached from
// the caller's cancellation: once a batch exists the gateway has already
// marked its messages read.
const dispatchTimeout = 2 * time.Minute

type Manager struct {
	processors map[string][]models.EventProcessor
	logger     *zap.Logger
}

// NewProcessorManager builds the processors of every trigger from config.
// sender may be nil when no trigger uses a telegram processor.
func NewProcessorManager(triggers []config.TriggerConfig, sender MessageSender, httpClient *http.Client, logger *zap.Logger) *Manager {
	manager := &Manager{
		processors: make(map[string][]models.EventProcessor),
		logger:     logger,
	}

	for _, trigger := range triggers {
		for _, pc := range trigger.Processors {
			var processor models.EventProcessor
			switch pc.Type {
			case "telegram":
				if sender == nil {
					logger.Warn("Telegram processor configured without a bot token, skipping",
						zap.String("trigger", trigger.Name))
					continue
				}
				processor = NewTelegramProcessor(trigger.Name, pc, sender, logger)
			case "webhook":
				processor = NewWebhookProcessor(trigger.Name, pc.URL, httpClient, logger)
			default:
				logger.Warn("Unknown processor type", zap.String("type", pc.Type))
				continue
			}

			manager.Register(trigger.Name, processor)
			logger.Info("Loaded SMS processor",
				zap.String("trigger", trigger.Name),
				zap.String("type", pc.Type))
		}
	}

	return manager
}

// Register adds a processor for the named trigger.
func (pm *Manager) Register(trigger string, processor models.EventProcessor) {
	pm.processors[trigger] = append(pm.processors[trigger], processor)
}

func (pm *Manager) GetProcessors(trigger string) []models.EventProcessor {
	return pm.processors[trigger]
}

// HandleBatch fans the batch out, one goroutine per event, and waits for all
// of them. Every processor that accepts an event receives it. Cancelling ctx
// does not stop delivery; only dispatchTimeout does.
func (pm *Manager) HandleBatch(ctx context.Context, batch *models.Batch) {
	if batch == nil || len(batch.Events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	processors := pm.processors[batch.Trigger]
	if len(processors) == 0 {
		pm.logger.Info("No processors for trigger, events dropped",
			zap.String("trigger", batch.Trigger),
			zap.Int("event_count", len(batch.Events)))
		return
	}

	pm.logger.Info("Processing SMS concurrently",
		zap.String("trigger", batch.Trigger),
		zap.String("cycle_id", batch.CycleID),
		zap.Int("event_count", len(batch.Events)))

	var wg sync.WaitGroup
	for _, event := range batch.Events {
		wg.Add(1)
		go func(event models.EmittedEvent) {
			defer wg.Done()
			pm.processEvent(ctx, batch.Trigger, processors, event)
		}(event)
	}

	wg.Wait()
}

func (pm *Manager) processEvent(ctx context.Context, trigger string, processors []models.EventProcessor, event models.EmittedEvent) {
	select {
	case <-ctx.Done():
		pm.logger.Error("SMS not delivered, dispatch deadline exceeded",
			zap.String("trigger", trigger),
			zap.String("message_id", event.MessageID.String()),
			zap.Error(ctx.Err()))
		return
	default:
	}

	handled := false
	for _, processor := range processors {
		if !processor.ShouldProcess(event) {
			continue
		}
		handled = true

		if err := processor.Process(ctx, event); err != nil {
			pm.logger.Error("Failed to process SMS",
				zap.String("trigger", trigger),
				zap.String("message_id", event.MessageID.String()),
				zap.Error(err))
			continue
		}

		pm.logger.Info("SMS processed successfully",
			zap.String("trigger", trigger),
			zap.String("message_id", event.MessageID.String()))
	}

	if !handled {
		pm.logger.Info("SMS ignored (no matching processor)",
			zap.String("trigger", trigger),
			zap.String("message_id", event.MessageID.String()))
	}
}
