package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestFlexStringAcceptsNumberAndString(t *testing.T) {
	var entry struct {
		ID   FlexString `json:"messageid"`
		Date FlexString `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"messageid":77,"date":"2024-01-01T00:00:00Z"}`), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.ID != "77" {
		t.Errorf("Expected ID to be '77', got %s", entry.ID)
	}
	if entry.Date != "2024-01-01T00:00:00Z" {
		t.Errorf("Expected Date to be '2024-01-01T00:00:00Z', got %s", entry.Date)
	}
}

func TestFlexStringMarshalKeepsNumbers(t *testing.T) {
	out, err := json.Marshal(map[string]FlexString{"a": "77", "b": "abc", "c": "0912"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":77,"b":"abc","c":"0912"}` {
		t.Errorf("Expected numeric id to stay numeric, got %s", out)
	}
}

func TestEmittedEventJSONKeys(t *testing.T) {
	event := EmittedEvent{
		Sender:     "09123456789",
		Message:    "your code is 4521",
		MessageID:  "77",
		LineNumber: "1000",
	}
	out, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"sender", "message", "messageId", "date", "lineNumber", "rawData", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in %s", key, out)
		}
	}
}

func TestErrorHelpers(t *testing.T) {
	cfgErr := fmt.Errorf("cycle: %w", &ConfigurationError{Op: "fetch", Err: errors.New("empty line number")})
	if !IsConfigurationError(cfgErr) {
		t.Errorf("Expected wrapped ConfigurationError to be detected")
	}
	if IsTransportError(cfgErr) {
		t.Errorf("Expected ConfigurationError not to be a TransportError")
	}

	tErr := &TransportError{Op: "fetch", LineNumber: "1000", Err: errors.New("connection refused")}
	if !IsTransportError(tErr) {
		t.Errorf("Expected TransportError to be detected")
	}
	if got := tErr.Error(); got != "fetch (line 1000): transport error: connection refused" {
		t.Errorf("Unexpected message %q", got)
	}
}
