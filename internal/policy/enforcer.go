// Package policy turns a plan's tool approval into an advisory directive
// and checks the model's tool calls against it afterwards. Advisory means
// prompt text plus post-hoc inspection; nothing here sandboxes execution.
package policy

import (
	"fmt"
	"strings"

	"conductor/internal/logging"
	"conductor/internal/ports"
)

// Violation records one tool call the directive did not permit.
// Informational: it feeds the consistency penalty, never an abort.
type Violation struct {
	Tool   string `json:"tool"`
	Reason string `json:"reason"`
}

// Enforcer derives directives from plans and inspects responses.
type Enforcer struct {
	logger logging.Logger
}

// NewEnforcer builds a policy enforcer.
func NewEnforcer(logger logging.Logger) *Enforcer {
	return &Enforcer{logger: logging.OrNop(logger)}
}

// Enforce computes the directive for one request: rejected is everything
// suggested but not approved, and an empty approved set forbids tool use
// outright.
func (e *Enforcer) Enforce(plan ports.ExecutionPlan, state ports.RetrievalState) ports.PolicyDirective {
	approved := make(map[string]bool, len(plan.ApprovedTools))
	for _, t := range plan.ApprovedTools {
		approved[t] = true
	}

	var rejected []string
	for _, m := range state.SuggestedTools {
		if !approved[m.ID] {
			rejected = append(rejected, m.ID)
		}
	}

	directive := ports.PolicyDirective{
		Allowed:   append([]string(nil), plan.ApprovedTools...),
		Rejected:  rejected,
		ForbidAll: len(plan.ApprovedTools) == 0,
	}
	directive.Text = renderDirective(directive)

	e.logger.Debug("Policy directive: allowed=%v rejected=%v forbidAll=%v",
		directive.Allowed, directive.Rejected, directive.ForbidAll)
	return directive
}

// Inspect compares the tool calls a response actually made against the
// directive. Violations are logged and returned for scoring.
func (e *Enforcer) Inspect(directive ports.PolicyDirective, calls []ports.ToolCall) []Violation {
	var violations []Violation
	for _, call := range calls {
		if directive.Permits(call.Name) {
			continue
		}
		reason := fmt.Sprintf("tool %q is not in the approved set", call.Name)
		if directive.ForbidAll {
			reason = "tool use is forbidden for this request"
		}
		violations = append(violations, Violation{Tool: call.Name, Reason: reason})
		e.logger.Warn("Policy violation: %s called but %s", call.Name, reason)
	}
	return violations
}

func renderDirective(d ports.PolicyDirective) string {
	if d.ForbidAll {
		return "Tool policy: do not call any tools for this request. Answer directly."
	}
	var b strings.Builder
	b.WriteString("Tool policy: you may call ONLY these tools: ")
	b.WriteString(strings.Join(d.Allowed, ", "))
	b.WriteString(".")
	if len(d.Rejected) > 0 {
		b.WriteString(" The following tools were considered and rejected for this request: ")
		b.WriteString(strings.Join(d.Rejected, ", "))
		b.WriteString(".")
	}
	b.WriteString(" Calling any other tool is a policy violation.")
	return b.String()
}
