package ports

// ToolDefinition is the schema handed to the LLM for one invokable tool.
// Only the schema crosses this boundary; tool execution lives with the caller.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a tool invocation requested by the model in a response.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}
