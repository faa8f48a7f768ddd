package kavenegar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"sms-hub/internal/models"
)

// Operation kinds accepted by InvokeOperation.
const (
	OperationSend   = "send"
	OperationVerify = "verify"
	OperationTTS    = "tts"
)

type operationSpec struct {
	path     string
	required []string
	optional []string
}

var operations = map[string]operationSpec{
	OperationSend: {
		path:     "sms/send.json",
		required: []string{"receptor", "sender", "message"},
	},
	OperationVerify: {
		path:     "verify/lookup.json",
		required: []string{"receptor", "token", "template"},
		optional: []string{"token2", "token3"},
	},
	OperationTTS: {
		path:     "call/maketts.json",
		required: []string{"receptor", "message"},
	},
}

// Operations lists the supported operation kinds.
func Operations() []string {
	return []string{OperationSend, OperationVerify, OperationTTS}
}

// InvokeOperation runs one stateless gateway operation and returns its JSON
// response verbatim. A non-200 envelope status is returned together with the
// body as a *GatewayError.
func (c *Client) InvokeOperation(ctx context.Context, kind string, params map[string]string) (json.RawMessage, error) {
	op := "invoke " + kind

	spec, ok := operations[kind]
	if !ok {
		return nil, &models.ConfigurationError{Op: op, Err: fmt.Errorf("unknown operation %q", kind)}
	}

	query := url.Values{}
	var missing []string
	for _, name := range spec.required {
		v := params[name]
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
			continue
		}
		query.Set(name, v)
	}
	if len(missing) > 0 {
		return nil, &models.ConfigurationError{Op: op, Err: fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))}
	}
	for _, name := range spec.optional {
		if v := params[name]; strings.TrimSpace(v) != "" {
			query.Set(name, v)
		}
	}

	body, err := c.get(ctx, op, "", spec.path, query)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if env.Return.Status != statusOK {
		c.logger.Warn("Kavenegar operation failed",
			zap.String("operation", kind),
			zap.Int("status", env.Return.Status),
			zap.String("message", env.Return.Message))
		return json.RawMessage(body), &GatewayError{Status: env.Return.Status, Message: env.Return.Message}
	}

	c.logger.Info("Kavenegar operation completed",
		zap.String("operation", kind),
		zap.String("receptor", params["receptor"]))

	return json.RawMessage(body), nil
}

// IsGatewayError reports whether err (or any error in its chain) is a GatewayError.
func IsGatewayError(err error) bool {
	var gErr *GatewayError
	return errors.As(err, &gErr)
}
