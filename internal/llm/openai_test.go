package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) ports.LLMClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIClient(Config{
		Model:   "gpt-4o-mini",
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, logging.Nop())
}

func userRequest(content string) ports.CompletionRequest {
	return ports.CompletionRequest{
		Messages: []ports.Message{{Role: ports.RoleUser, Content: content}},
	}
}

func TestOpenAIClient_CompleteParsesResponse(t *testing.T) {
	var gotReq map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": "Binary search halves the range each step.",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "code_search", "arguments": "{\"query\": \"binary search\"}"}
					}]
				},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 12, "total_tokens": 54}
		}`))
	})

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: "You are concise."},
			{Role: ports.RoleUser, Content: "explain binary search"},
		},
		Tools:       []ports.ToolDefinition{{Name: "code_search", Description: "search the codebase"}},
		Temperature: 0.4,
		MaxTokens:   512,
	})
	require.NoError(t, err)

	assert.Equal(t, "Binary search halves the range each step.", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 54, resp.Usage.TotalTokens)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "code_search", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query": "binary search"}`, resp.ToolCalls[0].Arguments)

	require.NotNil(t, gotReq)
	assert.Equal(t, "gpt-4o-mini", gotReq["model"])
	assert.Equal(t, false, gotReq["stream"])
	assert.Equal(t, "auto", gotReq["tool_choice"])
	tools, ok := gotReq["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	messages, ok := gotReq["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClient_RepairsToolCallArguments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "code_search", "arguments": "{\"query\": \"recursion\",}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	resp, err := client.Complete(context.Background(), userRequest("find recursion examples"))
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, json.Valid([]byte(resp.ToolCalls[0].Arguments)),
		"tool call arguments should be valid JSON after repair: %s", resp.ToolCalls[0].Arguments)
	assert.Contains(t, resp.ToolCalls[0].Arguments, "recursion")
}

func TestOpenAIClient_EmptyChoicesIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [], "usage": {"prompt_tokens": 1, "completion_tokens": 0, "total_tokens": 1}}`))
	})

	_, err := client.Complete(context.Background(), userRequest("anything"))
	require.Error(t, err)
	assert.True(t, conderr.IsTransient(err))
	assert.Contains(t, err.Error(), "empty response")
}

func TestOpenAIClient_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := client.Complete(context.Background(), userRequest("anything"))
	require.Error(t, err)
	assert.True(t, conderr.IsTransient(err))
}

func TestOpenAIClient_UnauthorizedIsPermanent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	})

	_, err := client.Complete(context.Background(), userRequest("anything"))
	require.Error(t, err)
	assert.True(t, conderr.IsPermanent(err))
}

func TestOpenAIClient_ErrorObjectInBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"type": "insufficient_quota", "message": "quota exceeded"}}`))
	})

	_, err := client.Complete(context.Background(), userRequest("anything"))
	require.Error(t, err)
	var terr *conderr.TransientError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Err.Error(), "quota exceeded")
}

func TestOpenAIClient_Model(t *testing.T) {
	client := NewOpenAIClient(Config{Model: "gpt-4o-mini"}, logging.Nop())
	assert.Equal(t, "gpt-4o-mini", client.Model())
}
