package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"conductor/internal/ports"
)

var validToolNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

func isValidToolName(name string) bool {
	return validToolNamePattern.MatchString(strings.TrimSpace(name))
}

// convertTools renders tool schemas in the OpenAI function-calling format.
// Tools whose names the API would reject are dropped.
func convertTools(tools []ports.ToolDefinition) []map[string]any {
	result := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		if !isValidToolName(tool.Name) {
			continue
		}
		params := tool.Parameters
		if params == nil {
			params = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  params,
			},
		})
	}
	return result
}

// buildToolCallHistory re-encodes earlier assistant tool calls for the
// conversation replay the completions API expects.
func buildToolCallHistory(calls []ports.ToolCall) []map[string]any {
	result := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		if !isValidToolName(call.Name) {
			continue
		}
		args := strings.TrimSpace(call.Arguments)
		if args == "" {
			args = "{}"
		}
		result = append(result, map[string]any{
			"id":   call.ID,
			"type": "function",
			"function": map[string]any{
				"name":      call.Name,
				"arguments": args,
			},
		})
	}
	return result
}

// normalizeToolArguments returns tool call arguments as a valid JSON object
// string where possible. Models occasionally emit truncated or single-quoted
// JSON; those are run through jsonrepair before the policy check reads them.
// The second return reports whether a repair was applied.
func normalizeToolArguments(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "{}", false
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, false
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil || !json.Valid([]byte(repaired)) {
		return trimmed, false
	}
	return repaired, true
}
