package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sms-hub/internal/models"
)

// WebhookProcessor POSTs each event as JSON to a downstream workflow URL.
type WebhookProcessor struct {
	name       string
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWebhookProcessor(name, url string, httpClient *http.Client, logger *zap.Logger) *WebhookProcessor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebhookProcessor{
		name:       name,
		url:        url,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *WebhookProcessor) ShouldProcess(models.EmittedEvent) bool {
	return true
}

func (p *WebhookProcessor) Process(ctx context.Context, event models.EmittedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("trigger %s: webhook %s returned status %d", p.name, p.url, resp.StatusCode)
	}
	return nil
}
