// Package pipeline runs one request through the seven orchestration
// stages: retrieve, plan, assemble, enforce, invoke, refine, format.
// Stages are strictly ordered and each consumes the immutable outputs of
// the previous ones. The pipeline is the only component that talks to the
// supervisor, which keeps the planner and the refiner pure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"conductor/internal/assemble"
	"conductor/internal/async"
	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/planner"
	"conductor/internal/policy"
	"conductor/internal/ports"
	"conductor/internal/refine"
	"conductor/internal/registry"
	"conductor/internal/retrieval"
	"conductor/internal/style"
)

// Config holds model-call tuning for the invoke stage. Zero values fall
// back to the package defaults.
type Config struct {
	Temperature float64 // sampling temperature for balanced and slow strategies
	MaxTokens   int     // completion budget for the balanced strategy
}

// FromApp projects the application configuration onto the pipeline.
func FromApp(cfg *config.Config) Config {
	return Config{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// fastRecallTemperature keeps trivial answers terse and reproducible.
const fastRecallTemperature = 0.2

// basePrompt is the static head of every system prompt. The assembled
// module note and the policy directive are appended per request.
const basePrompt = "You are Conductor, a focused engineering assistant. " +
	"Give concrete, working guidance and leave speculation out of the answer."

// Request identifies one query within a conversation. An empty
// ConversationID runs the request without history.
type Request struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// Response is the terminal record of one pipeline execution.
type Response struct {
	Answer      string                  `json:"answer"`
	RequestID   string                  `json:"request_id"`
	Plan        ports.ExecutionPlan     `json:"plan"`
	UsedTools   []string                `json:"used_tools"`
	UsedModules []string                `json:"used_modules"`
	Evaluation  ports.QualityEvaluation `json:"evaluation"`
	Outcome     ports.RefineOutcome     `json:"outcome"`
	Violations  []policy.Violation      `json:"violations,omitempty"`
	Degraded    bool                    `json:"degraded,omitempty"`
	Duration    time.Duration           `json:"duration"`
}

// Deps wires the pipeline's stage components. All components through the
// supervisor are required; Registry, Metrics and Clock default when nil.
type Deps struct {
	Retriever  *retrieval.Retriever
	Planner    *planner.Conductor
	Assembler  *assemble.Assembler
	Enforcer   *policy.Enforcer
	Invoker    ports.LLMClient
	Refiner    *refine.Refiner
	Formatter  *style.Formatter
	Supervisor ports.Supervisor
	Registry   *registry.Registry
	Metrics    *Metrics
	Clock      ports.Clock
	Logger     logging.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Retriever == nil:
		return errors.New("retriever is required")
	case d.Planner == nil:
		return errors.New("planner is required")
	case d.Assembler == nil:
		return errors.New("assembler is required")
	case d.Enforcer == nil:
		return errors.New("enforcer is required")
	case d.Invoker == nil:
		return errors.New("model invoker is required")
	case d.Refiner == nil:
		return errors.New("refiner is required")
	case d.Formatter == nil:
		return errors.New("formatter is required")
	case d.Supervisor == nil:
		return errors.New("supervisor is required")
	}
	return nil
}

// Pipeline executes requests. Safe for concurrent use; each call to
// Execute is independent apart from the shared supervisor.
type Pipeline struct {
	cfg        Config
	retriever  *retrieval.Retriever
	planner    *planner.Conductor
	assembler  *assemble.Assembler
	enforcer   *policy.Enforcer
	invoker    ports.LLMClient
	refiner    *refine.Refiner
	formatter  *style.Formatter
	supervisor ports.Supervisor
	reg        *registry.Registry
	metrics    *Metrics
	clock      ports.Clock
	logger     logging.Logger

	mu        sync.RWMutex
	listeners []ports.EventListener
}

// New wires a pipeline from its stage components.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if cfg.Temperature <= 0 {
		cfg.Temperature = config.DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = config.DefaultMaxTokens
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("pipeline deps: %w", err)
	}
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = defaultMetrics()
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	return &Pipeline{
		cfg:        cfg,
		retriever:  deps.Retriever,
		planner:    deps.Planner,
		assembler:  deps.Assembler,
		enforcer:   deps.Enforcer,
		invoker:    deps.Invoker,
		refiner:    deps.Refiner,
		formatter:  deps.Formatter,
		supervisor: deps.Supervisor,
		reg:        deps.Registry,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     logging.OrNop(deps.Logger),
	}, nil
}

// AddListener subscribes to stage events. Listeners run in registration
// order on the request goroutine; a panicking listener is recovered and
// logged without failing the request.
func (p *Pipeline) AddListener(listener ports.EventListener) {
	if listener == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

// Execute runs one request through all seven stages and returns the final
// answer. The only fatal failures are an empty query, context cancellation
// and a round-zero model invocation error; every other fault degrades and
// the request still completes.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()[:8]
	start := time.Now()

	ctx, span := startRequestSpan(ctx, requestID, req.ConversationID)
	defer span.End()
	p.metrics.IncActiveRequests()
	defer p.metrics.DecActiveRequests()

	p.logger.Info("=== Request %s: conversation=%q chars=%d ===", requestID, req.ConversationID, len(query))

	sctx, finish := p.beginStage(ctx, ports.StageRetrieve, requestID)
	state := p.retriever.Retrieve(sctx, query)
	finish(nil)
	p.emit(req, requestID, ports.StageRetrieve, map[string]any{
		"tools":    len(state.SuggestedTools),
		"modules":  len(state.SuggestedModules),
		"degraded": state.Degraded(),
	})

	// History is read synchronously so the plan sees it; the plan write
	// happens off the request path.
	var history ports.ConversationState
	if req.ConversationID != "" {
		history, _ = p.supervisor.Conversation(req.ConversationID)
	}
	_, finish = p.beginStage(ctx, ports.StagePlan, requestID)
	plan := p.planner.Plan(state, history)
	finish(nil)
	p.recordPlan(req.ConversationID, plan)
	p.emit(req, requestID, ports.StagePlan, map[string]any{
		"intent":     string(plan.Intent),
		"strategy":   string(plan.Strategy),
		"complexity": plan.Complexity,
		"ambiguity":  plan.Ambiguity,
		"confidence": plan.Confidence,
	})

	_, finish = p.beginStage(ctx, ports.StageAssemble, requestID)
	payload := p.assembler.Assemble(plan)
	finish(nil)
	p.emit(req, requestID, ports.StageAssemble, map[string]any{"modules": len(payload.Modules)})

	_, finish = p.beginStage(ctx, ports.StageEnforce, requestID)
	directive := p.enforcer.Enforce(plan, state)
	finish(nil)
	p.emit(req, requestID, ports.StageEnforce, map[string]any{
		"allowed":    len(directive.Allowed),
		"forbid_all": directive.ForbidAll,
	})

	if err := ctx.Err(); err != nil {
		p.metrics.IncStageFailure(ports.StageInvoke, "cancelled")
		return nil, err
	}
	temperature, maxTokens := p.completionParams(plan.Strategy)
	sctx, finish = p.beginStage(ctx, ports.StageInvoke, requestID)
	draft, toolCalls, err := p.invoke(sctx, query, payload, directive, plan, requestID, temperature, maxTokens)
	finish(err)
	if err != nil {
		if ctx.Err() != nil {
			p.metrics.IncStageFailure(ports.StageInvoke, "cancelled")
			return nil, ctx.Err()
		}
		invErr := conderr.NewModelInvocationError(0, err)
		p.metrics.IncStageFailure(ports.StageInvoke, "provider")
		p.logger.Error("Request %s failed at invoke: %v", requestID, invErr)
		return nil, invErr
	}
	p.emit(req, requestID, ports.StageInvoke, map[string]any{
		"draft_chars": len(draft),
		"tool_calls":  len(toolCalls),
	})

	// The directive check runs on the draft's tool calls; violation text
	// feeds the consistency score.
	violations := p.enforcer.Inspect(directive, toolCalls)
	violationNames := make([]string, len(violations))
	for i, v := range violations {
		violationNames[i] = fmt.Sprintf("%s: %s", v.Tool, v.Reason)
	}

	if err := ctx.Err(); err != nil {
		p.metrics.IncStageFailure(ports.StageRefine, "cancelled")
		return nil, err
	}
	sctx, finish = p.beginStage(ctx, ports.StageRefine, requestID)
	result, err := p.refiner.Refine(sctx, query, draft, plan, violationNames)
	finish(err)
	if err != nil {
		p.metrics.IncStageFailure(ports.StageRefine, failureReason(err))
		return nil, err
	}
	p.metrics.AddRefineRounds(string(result.Outcome), result.Rounds)
	p.recordEvaluations(req.ConversationID, plan, result.Evaluations)
	p.emit(req, requestID, ports.StageRefine, map[string]any{
		"outcome": string(result.Outcome),
		"rounds":  result.Rounds,
		"rating":  result.Evaluation.FinalRating,
	})

	_, finish = p.beginStage(ctx, ports.StageFormat, requestID)
	answer := p.formatter.Format(result.Answer)
	finish(nil)
	p.emit(req, requestID, ports.StageFormat, map[string]any{"answer_chars": len(answer)})

	duration := time.Since(start)
	p.logger.Info("Request %s done: strategy=%s outcome=%s rating=%.2f rounds=%d violations=%d duration=%s",
		requestID, plan.Strategy, result.Outcome, result.Evaluation.FinalRating,
		result.Rounds, len(violations), duration.Round(time.Millisecond))

	return &Response{
		Answer:      answer,
		RequestID:   requestID,
		Plan:        plan,
		UsedTools:   append([]string(nil), plan.ApprovedTools...),
		UsedModules: append([]string(nil), plan.SelectedModules...),
		Evaluation:  result.Evaluation,
		Outcome:     result.Outcome,
		Violations:  violations,
		Degraded:    plan.Degraded || state.Degraded(),
		Duration:    duration,
	}, nil
}

// invoke performs the draft model call. The system prompt is the static
// base plus the assembled module note plus the policy directive.
func (p *Pipeline) invoke(ctx context.Context, query string, payload ports.ContextPayload, directive ports.PolicyDirective, plan ports.ExecutionPlan, requestID string, temperature float64, maxTokens int) (string, []ports.ToolCall, error) {
	creq := ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: systemPrompt(payload, directive)},
			{Role: ports.RoleUser, Content: query},
		},
		Tools:       p.toolDefinitions(plan.ApprovedTools),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Metadata: map[string]any{
			"request_id": requestID,
			"purpose":    "draft",
		},
	}
	resp, err := p.invoker.Complete(ctx, creq)
	if err != nil {
		return "", nil, err
	}
	if resp.Content == "" && len(resp.ToolCalls) > 0 {
		p.logger.Warn("Draft for request %s is tool calls only (%d calls); refining empty content", requestID, len(resp.ToolCalls))
	}
	return resp.Content, resp.ToolCalls, nil
}

func systemPrompt(payload ports.ContextPayload, directive ports.PolicyDirective) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	b.WriteString(payload.Note)
	b.WriteString("\n")
	b.WriteString(directive.Text)
	return b.String()
}

// toolDefinitions resolves approved tool ids into provider schemas.
// Unknown ids are skipped; the provider client fills the parameter schema
// for tools that do not declare one.
func (p *Pipeline) toolDefinitions(approved []string) []ports.ToolDefinition {
	if len(approved) == 0 {
		return nil
	}
	defs := make([]ports.ToolDefinition, 0, len(approved))
	for _, id := range approved {
		info, ok := p.reg.Tool(id)
		if !ok {
			continue
		}
		defs = append(defs, ports.ToolDefinition{Name: info.ID, Description: info.Description})
	}
	return defs
}

// completionParams sets sampling for the draft call by strategy: fast
// recall answers tersely on half the budget, slow reasoning gets double.
func (p *Pipeline) completionParams(strategy ports.Strategy) (float64, int) {
	switch strategy {
	case ports.StrategyFastRecall:
		return fastRecallTemperature, p.cfg.MaxTokens / 2
	case ports.StrategySlowReasoning:
		return p.cfg.Temperature, p.cfg.MaxTokens * 2
	default:
		return p.cfg.Temperature, p.cfg.MaxTokens
	}
}

// beginStage opens the span and timer for one stage. The returned finish
// records duration and span status; pass the stage error or nil.
func (p *Pipeline) beginStage(ctx context.Context, stage, requestID string) (context.Context, func(error)) {
	sctx, span := startStageSpan(ctx, stage, requestID)
	start := time.Now()
	return sctx, func(err error) {
		markSpanResult(span, err)
		span.End()
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.ObserveStage(stage, status, time.Since(start))
	}
}

// recordPlan updates conversation history off the request path.
func (p *Pipeline) recordPlan(conversationID string, plan ports.ExecutionPlan) {
	if conversationID == "" {
		return
	}
	async.Go(p.logger, "supervisor-record-plan", func() {
		p.supervisor.RecordPlan(conversationID, plan)
	})
}

// recordEvaluations reports every produced evaluation for every selected
// module off the request path, rejected drafts included.
func (p *Pipeline) recordEvaluations(conversationID string, plan ports.ExecutionPlan, evals []ports.QualityEvaluation) {
	if conversationID == "" || len(evals) == 0 {
		return
	}
	modules := append([]string(nil), plan.SelectedModules...)
	async.Go(p.logger, "supervisor-record-evaluation", func() {
		for _, eval := range evals {
			for _, moduleID := range modules {
				p.supervisor.RecordEvaluation(conversationID, moduleID, eval)
			}
		}
	})
}

// emit delivers one stage event to every listener in registration order.
// Delivery is synchronous so listeners observe stage order; each call is
// recovered independently.
func (p *Pipeline) emit(req Request, requestID, stage string, detail map[string]any) {
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	event := ports.PipelineEvent{
		Stage:          stage,
		ConversationID: req.ConversationID,
		RequestID:      requestID,
		At:             p.clock.Now(),
		Detail:         detail,
	}
	for _, listener := range listeners {
		p.deliver(listener, event)
	}
}

func (p *Pipeline) deliver(listener ports.EventListener, event ports.PipelineEvent) {
	defer async.Recover(p.logger, "pipeline-listener")
	listener.OnEvent(event)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case conderr.IsModelInvocation(err):
		return "provider"
	default:
		return "internal"
	}
}
