// Package template renders dynamic expressions in connector configuration
// against the data available at run time: upstream outputs, node config, and
// environment.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// RenderWithContext renders an expression against the connector invocation:
// {{.input.<node_id>.<field>}} reads upstream outputs, {{.config.<key>}} the
// node's own config, {{.env.<VAR>}} the process environment.
func RenderWithContext(input string, cctx *protocol.ConnectorContext) (any, error) {
	data := map[string]any{
		"input":  cctx.Input,
		"config": cctx.Config,
		"env":    getEnvVars(),
		"execution": map[string]any{
			"id":          cctx.ExecutionID,
			"workflow_id": cctx.WorkflowID,
			"node_id":     cctx.NodeID,
		},
	}

	return Render(input, data)
}

// Render executes a Go text template and coerces the output: JSON-looking
// results come back structured, numeric and boolean strings come back typed.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}
				num := make([]byte, 1)
				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// getEnvVars returns environment variables as a map.
func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
