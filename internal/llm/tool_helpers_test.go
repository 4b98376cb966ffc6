package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"conductor/internal/ports"
)

func TestConvertTools_SkipsInvalidNames(t *testing.T) {
	tools := []ports.ToolDefinition{
		{Name: "code_search", Description: "search the codebase"},
		{Name: "not a valid name!", Description: "rejected"},
		{Name: "", Description: "rejected"},
	}
	converted := convertTools(tools)
	if len(converted) != 1 {
		t.Fatalf("expected 1 converted tool, got %d", len(converted))
	}
	fn, ok := converted[0]["function"].(map[string]any)
	if !ok {
		t.Fatalf("expected function entry, got %v", converted[0])
	}
	if fn["name"] != "code_search" {
		t.Fatalf("unexpected tool name %v", fn["name"])
	}
	if converted[0]["type"] != "function" {
		t.Fatalf("expected function type, got %v", converted[0]["type"])
	}
}

func TestConvertTools_DefaultsEmptySchema(t *testing.T) {
	converted := convertTools([]ports.ToolDefinition{{Name: "calculator"}})
	if len(converted) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(converted))
	}
	fn := converted[0]["function"].(map[string]any)
	params, ok := fn["parameters"].(map[string]any)
	if !ok {
		t.Fatalf("expected parameter schema, got %v", fn["parameters"])
	}
	if params["type"] != "object" {
		t.Fatalf("expected object schema, got %v", params["type"])
	}
}

func TestBuildToolCallHistory(t *testing.T) {
	calls := []ports.ToolCall{
		{ID: "call_1", Name: "code_search", Arguments: `{"query": "parser"}`},
		{ID: "call_2", Name: "datetime", Arguments: ""},
		{ID: "call_3", Name: "bad name!", Arguments: "{}"},
	}
	history := buildToolCallHistory(calls)
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	first := history[0]["function"].(map[string]any)
	if first["arguments"] != `{"query": "parser"}` {
		t.Fatalf("arguments not preserved: %v", first["arguments"])
	}
	second := history[1]["function"].(map[string]any)
	if second["arguments"] != "{}" {
		t.Fatalf("expected empty object for blank arguments, got %v", second["arguments"])
	}
}

func TestNormalizeToolArguments_ValidPassthrough(t *testing.T) {
	in := `{"query": "recursion"}`
	got, repaired := normalizeToolArguments(in)
	if repaired {
		t.Fatal("expected no repair for valid JSON")
	}
	if got != in {
		t.Fatalf("expected passthrough, got %s", got)
	}
}

func TestNormalizeToolArguments_EmptyBecomesObject(t *testing.T) {
	got, repaired := normalizeToolArguments("   ")
	if repaired {
		t.Fatal("expected no repair flag for empty input")
	}
	if got != "{}" {
		t.Fatalf("expected empty object, got %s", got)
	}
}

func TestNormalizeToolArguments_RepairsTrailingComma(t *testing.T) {
	got, repaired := normalizeToolArguments(`{"query": "recursion",}`)
	if !repaired {
		t.Fatal("expected repair to be applied")
	}
	if !json.Valid([]byte(got)) {
		t.Fatalf("expected valid JSON after repair, got %s", got)
	}
	if !strings.Contains(got, "recursion") {
		t.Fatalf("expected payload preserved, got %s", got)
	}
}

func TestNormalizeToolArguments_RepairsSingleQuotes(t *testing.T) {
	got, repaired := normalizeToolArguments(`{'query': 'recursion'}`)
	if !repaired {
		t.Fatal("expected repair to be applied")
	}
	if !json.Valid([]byte(got)) {
		t.Fatalf("expected valid JSON after repair, got %s", got)
	}
}
