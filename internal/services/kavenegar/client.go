package kavenegar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"sms-hub/internal/config"
	"sms-hub/internal/credential"
	"sms-hub/internal/models"
)

const (
	DefaultBaseURL = "https://api.kavenegar.com/v1"

	statusOK = 200
)

// Client talks to the Kavenegar REST API. The API key is a path segment of
// every request, so it is resolved per call and scrubbed from errors.
type Client struct {
	baseURL     string
	credentials credential.Resolver
	httpClient  *http.Client
	logger      *zap.Logger
}

// envelope is the common response shape of every Kavenegar endpoint.
type envelope struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
	Entries json.RawMessage `json:"entries"`
}

// entryFields are the receive-entry fields surfaced on emitted events.
type entryFields struct {
	Sender    *models.FlexString `json:"sender"`
	Message   *models.FlexString `json:"message"`
	MessageID models.FlexString  `json:"messageid"`
	Date      models.FlexString  `json:"date"`
}

// GatewayError is returned when the gateway answers with a non-200 status in
// its response envelope.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("kavenegar returned status %d: %s", e.Status, e.Message)
}

func NewClient(cfg config.KavenegarConfig, credentials credential.Resolver, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
		},
	}

	return NewClientWithHTTP(cfg.BaseURL, credentials, httpClient, logger)
}

// NewClientWithHTTP builds a client around an existing http.Client.
func NewClientWithHTTP(baseURL string, credentials credential.Resolver, httpClient *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// FetchUnreadInbound returns the unread messages received on lineNumber. The
// gateway marks returned messages as read, so each call consumes them.
// A non-200 gateway status or a missing entries field yields an empty slice.
func (c *Client) FetchUnreadInbound(ctx context.Context, lineNumber string) ([]models.RawInboundMessage, error) {
	const op = "fetch unread inbound"

	if strings.TrimSpace(lineNumber) == "" {
		return nil, &models.ConfigurationError{Op: op, Err: errors.New("line number is required")}
	}

	query := url.Values{}
	query.Set("linenumber", lineNumber)
	query.Set("isread", "0")

	body, err := c.get(ctx, op, lineNumber, "sms/receive.json", query)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: fmt.Errorf("decode response: %w", err)}
	}

	if env.Return.Status != statusOK {
		c.logger.Warn("Kavenegar receive returned non-success status",
			zap.String("line_number", lineNumber),
			zap.Int("status", env.Return.Status),
			zap.String("message", env.Return.Message))
		return nil, nil
	}

	raw := bytes.TrimSpace(env.Entries)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: fmt.Errorf("decode entries: %w", err)}
	}

	messages := make([]models.RawInboundMessage, 0, len(entries))
	for i, entry := range entries {
		msg, err := parseEntry(entry)
		if err != nil {
			return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: fmt.Errorf("decode entry %d: %w", i, err)}
		}
		messages = append(messages, msg)
	}

	if len(messages) > 0 {
		c.logger.Info("Fetched unread inbound messages",
			zap.String("line_number", lineNumber),
			zap.Int("count", len(messages)))
	}

	return messages, nil
}

func parseEntry(data json.RawMessage) (models.RawInboundMessage, error) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return models.RawInboundMessage{}, err
	}

	var fields entryFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return models.RawInboundMessage{}, err
	}

	msg := models.RawInboundMessage{
		MessageID:  fields.MessageID,
		Date:       fields.Date,
		RawPayload: payload,
	}
	if fields.Sender != nil {
		s := fields.Sender.String()
		msg.Sender = &s
	}
	if fields.Message != nil {
		m := fields.Message.String()
		msg.Message = &m
	}
	return msg, nil
}

// get issues a GET against {baseURL}/{apiKey}/{path} and returns the body.
// Bodies of non-2xx responses are returned too when they hold JSON, since the
// gateway reports most failures inside the envelope.
func (c *Client) get(ctx context.Context, op, lineNumber, path string, query url.Values) ([]byte, error) {
	apiKey, err := c.credentials.APIKey(ctx)
	if err != nil {
		return nil, &models.ConfigurationError{Op: op, LineNumber: lineNumber, Err: fmt.Errorf("resolve api key: %w", err)}
	}
	if apiKey == "" {
		return nil, &models.ConfigurationError{Op: op, LineNumber: lineNumber, Err: credential.ErrNotFound}
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(apiKey), path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: redact(fmt.Errorf("create request: %w", err), apiKey)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: redact(fmt.Errorf("send request: %w", err), apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: redact(fmt.Errorf("read response: %w", err), apiKey)}
	}

	if resp.StatusCode/100 != 2 && !json.Valid(body) {
		return nil, &models.TransportError{Op: op, LineNumber: lineNumber, Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}

	return body, nil
}

// redactedError hides the API key in the message while keeping the chain.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, apiKey string) error {
	msg := err.Error()
	if apiKey != "" {
		msg = strings.ReplaceAll(msg, apiKey, "***")
		msg = strings.ReplaceAll(msg, url.PathEscape(apiKey), "***")
	}
	return &redactedError{msg: msg, err: err}
}
