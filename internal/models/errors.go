package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid credential or setting. The
// cycle that hit it fails and is not retried.
type ConfigurationError struct {
	Op         string
	LineNumber string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.LineNumber == "" {
		return fmt.Sprintf("%s: configuration error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (line %s): configuration error: %v", e.Op, e.LineNumber, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError reports a network failure or an unreadable gateway response.
type TransportError struct {
	Op         string
	LineNumber string
	Err        error
}

func (e *TransportError) Error() string {
	if e.LineNumber == "" {
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (line %s): transport error: %v", e.Op, e.LineNumber, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err (or any error in its chain) is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsTransportError reports whether err (or any error in its chain) is a TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
