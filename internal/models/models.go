package models

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// DefaultPollInterval is used when a trigger does not set poll_interval.
const DefaultPollInterval = 30 * time.Second

// PollConfiguration holds the settings of one trigger instance. It is built
// once on activation and never mutated afterwards.
type PollConfiguration struct {
	Name          string
	LineNumber    string
	PollInterval  time.Duration
	SenderFilter  string
	MessageFilter string
}

// FlexString holds a gateway field that may arrive as a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// MarshalJSON writes integers back as JSON numbers so message IDs keep the
// shape the gateway used.
func (f FlexString) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(f), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(f) {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

func (f FlexString) String() string {
	return string(f)
}

// RawInboundMessage is one entry of the gateway's receive response. Sender and
// Message are nil when the gateway omitted them.
type RawInboundMessage struct {
	Sender     *string
	Message    *string
	MessageID  FlexString
	Date       FlexString
	RawPayload map[string]any
}

// EmittedEvent is what a poll cycle hands to downstream consumers.
type EmittedEvent struct {
	Sender     string         `json:"sender"`
	Message    string         `json:"message"`
	MessageID  FlexString     `json:"messageId"`
	Date       FlexString     `json:"date"`
	LineNumber string         `json:"lineNumber"`
	RawData    map[string]any `json:"rawData"`
	ObservedAt time.Time      `json:"timestamp"`
}

// Batch is the non-empty result of a poll cycle.
type Batch struct {
	CycleID string         `json:"cycleId"`
	Trigger string         `json:"trigger"`
	Events  []EmittedEvent `json:"events"`
}

// EventProcessor handles emitted events downstream of a trigger.
type EventProcessor interface {
	ShouldProcess(event EmittedEvent) bool
	Process(ctx context.Context, event EmittedEvent) error
}
