// Package logmsg emits a structured log line from a workflow node, with
// template support for dynamic content.
package logmsg

import (
	"context"
	"errors"
	"fmt"

	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/tideflow-io/tideflow/pkg/template"
)

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Action logs a rendered message at a configured level.
type Action struct {
	message string
	level   string
}

// NewAction parses the node configuration.
func NewAction(config map[string]any) (*Action, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok {
		if !validLevels[lvl] {
			return nil, fmt.Errorf("invalid log level '%s' (must be debug, info, warn, or error)", lvl)
		}

		level = lvl
	}

	return &Action{message: message, level: level}, nil
}

// Run renders the message against the invocation context and logs it.
func (a *Action) Run(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	rendered, err := template.RenderWithContext(a.message, &cctx)
	if err != nil {
		return nil, fmt.Errorf("failed to render log message template: %w", err)
	}

	message := fmt.Sprintf("%v", rendered)

	if cctx.Logger != nil {
		logger := cctx.Logger.With("node_id", cctx.NodeID)

		switch a.level {
		case "debug":
			logger.Debug(message)
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		default:
			logger.Info(message)
		}
	}

	return &protocol.RunResult{Output: map[string]any{
		"message": message,
		"level":   a.level,
		"logged":  true,
	}}, nil
}

// MockRun renders the message without logging it.
func (a *Action) MockRun(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	rendered, err := template.RenderWithContext(a.message, &cctx)
	if err != nil {
		return nil, fmt.Errorf("failed to render log message template: %w", err)
	}

	return &protocol.RunResult{Output: map[string]any{
		"message": fmt.Sprintf("%v", rendered),
		"level":   a.level,
		"logged":  false,
		"mock":    true,
	}}, nil
}
