package ports

// ModuleNote is one resolved prompt module: what it does and why the plan
// selected it.
type ModuleNote struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Core        bool   `json:"core"`
	Reason      string `json:"reason"`
}

// ContextPayload is the assembled guidance context for one request. Note is
// the rendered block injected into the system prompt; Modules keeps the
// structured form for logging and inspection.
type ContextPayload struct {
	Modules []ModuleNote `json:"modules"`
	Note    string       `json:"note"`
}

// PolicyDirective states which tools the model may call. Advisory: it is
// prompt text plus a post-hoc check, not a sandbox.
type PolicyDirective struct {
	Allowed   []string `json:"allowed"`
	Rejected  []string `json:"rejected,omitempty"`
	ForbidAll bool     `json:"forbid_all"`
	Text      string   `json:"text"`
}

// Permits reports whether the directive allows the named tool.
func (d PolicyDirective) Permits(tool string) bool {
	if d.ForbidAll {
		return false
	}
	for _, t := range d.Allowed {
		if t == tool {
			return true
		}
	}
	return false
}
