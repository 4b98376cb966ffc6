package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

// Config holds the refinement knobs. Zero values fall back to the package
// defaults.
type Config struct {
	QualityThreshold     float64 // keep revising below this rating
	MaxIterations        int     // revision round budget
	SkipComplexity       int     // plans at or below this complexity skip refinement
	HallucinationPenalty float64
	InconsistencyPenalty float64
	Temperature          float64 // revision calls run cooler than drafting
	MaxTokens            int
}

// FromApp projects the application configuration onto refinement knobs.
func FromApp(cfg *config.Config) Config {
	return Config{
		QualityThreshold:     cfg.QualityThreshold,
		MaxIterations:        cfg.MaxRefineIterations,
		SkipComplexity:       cfg.SkipComplexity,
		HallucinationPenalty: cfg.HallucinationPenalty,
		InconsistencyPenalty: cfg.InconsistencyPenalty,
		Temperature:          revisionTemperature,
		MaxTokens:            cfg.MaxTokens,
	}
}

// revisionTemperature keeps rewrites close to the draft. Revisions should
// fix the named weaknesses, not explore.
const revisionTemperature = 0.2

const revisionSystem = "You revise assistant answers. You receive the original question, " +
	"the previous answer and its weaknesses. Rewrite the answer to fix every listed " +
	"weakness while keeping what already works. Return only the improved answer, " +
	"with no preamble and no commentary."

// Result is the terminal record of one refinement run.
type Result struct {
	Answer      string
	Evaluation  ports.QualityEvaluation // evaluation of Answer
	Outcome     ports.RefineOutcome
	Evaluations []ports.QualityEvaluation // every evaluation produced, in attempt order
	Rounds      int                       // revision round-trips actually spent
}

// Refiner drives the evaluate/revise loop over a model client.
type Refiner struct {
	cfg       Config
	invoker   ports.LLMClient
	evaluator *Evaluator
	clock     ports.Clock
	logger    logging.Logger
	differ    *diffmatchpatch.DiffMatchPatch
}

// NewRefiner builds a refiner over the given model client.
func NewRefiner(cfg Config, invoker ports.LLMClient, clock ports.Clock, logger logging.Logger) *Refiner {
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = config.DefaultQualityThreshold
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = config.DefaultMaxRefineIterations
	}
	if cfg.SkipComplexity <= 0 {
		cfg.SkipComplexity = config.DefaultSkipComplexity
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = revisionTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = config.DefaultMaxTokens
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Refiner{
		cfg:       cfg,
		invoker:   invoker,
		evaluator: NewEvaluator(cfg.HallucinationPenalty, cfg.InconsistencyPenalty),
		clock:     clock,
		logger:    logging.OrNop(logger),
		differ:    diffmatchpatch.New(),
	}
}

// Refine evaluates the draft and revises it until it clears the quality
// threshold or the round budget runs out. It returns an error only when the
// request context is done; every other failure degrades to the last accepted
// draft. violations lists tools the draft's response called outside policy.
func (r *Refiner) Refine(ctx context.Context, query, draft string, plan ports.ExecutionPlan, violations []string) (Result, error) {
	if plan.Complexity <= r.cfg.SkipComplexity {
		eval := r.evaluator.Skipped(draft)
		r.logger.Debug("Refinement skipped: complexity %d at or below %d",
			plan.Complexity, r.cfg.SkipComplexity)
		return Result{
			Answer:      draft,
			Evaluation:  eval,
			Outcome:     ports.RefineSkipped,
			Evaluations: []ports.QualityEvaluation{eval},
		}, nil
	}

	start := r.clock.Now()
	best := draft
	bestEval := r.evaluator.Evaluate(query, draft, violations, 1)
	trail := []ports.QualityEvaluation{bestEval}
	r.logger.Info("Draft rated %.2f (%s), threshold %.2f",
		bestEval.FinalRating, bestEval.Verdict, r.cfg.QualityThreshold)

	rounds := 0
	for bestEval.FinalRating < r.cfg.QualityThreshold && rounds < r.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		rounds++
		r.logger.Info("=== Refinement round %d/%d ===", rounds, r.cfg.MaxIterations)

		revised, err := r.revise(ctx, query, best, bestEval)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			// A failed round never sinks the request; the last accepted
			// draft ships instead.
			r.logger.Warn("Keeping draft rated %.2f: %v",
				bestEval.FinalRating, conderr.NewModelInvocationError(rounds, err))
			return Result{
				Answer:      best,
				Evaluation:  bestEval,
				Outcome:     ports.RefineExhausted,
				Evaluations: trail,
				Rounds:      rounds,
			}, nil
		}

		eval := r.evaluator.Evaluate(query, revised, violations, rounds+1)
		trail = append(trail, eval)
		r.logDelta(best, revised)
		r.logger.Info("Round %d rated %.2f (%s), previous %.2f",
			rounds, eval.FinalRating, eval.Verdict, bestEval.FinalRating)

		// Ties go to the later draft: a revision that holds the score
		// still fixed the weaknesses it was asked to fix.
		if eval.FinalRating >= bestEval.FinalRating {
			best, bestEval = revised, eval
		}
	}

	outcome := ports.RefineAccepted
	if bestEval.FinalRating < r.cfg.QualityThreshold {
		outcome = ports.RefineExhausted
	}
	r.logger.Info("Refinement finished in %v: %s at %.2f after %d round(s)",
		r.clock.Now().Sub(start), outcome, bestEval.FinalRating, rounds)
	return Result{
		Answer:      best,
		Evaluation:  bestEval,
		Outcome:     outcome,
		Evaluations: trail,
		Rounds:      rounds,
	}, nil
}

// revise asks the model for a rewrite targeting the evaluation's weak
// dimensions.
func (r *Refiner) revise(ctx context.Context, query, draft string, eval ports.QualityEvaluation) (string, error) {
	req := ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: revisionSystem},
			{Role: ports.RoleUser, Content: renderRevisionPrompt(query, draft, eval)},
		},
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Metadata:    map[string]any{"purpose": "refine", "attempt": eval.Attempt + 1},
	}
	resp, err := r.invoker.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("revision request failed: %w", err)
	}
	revised := strings.TrimSpace(resp.Content)
	if revised == "" {
		return "", errors.New("revision produced an empty draft")
	}
	return revised, nil
}

// logDelta reports how much of the draft a revision actually changed.
func (r *Refiner) logDelta(previous, revised string) {
	size := len([]rune(previous))
	if n := len([]rune(revised)); n > size {
		size = n
	}
	if size == 0 {
		return
	}
	diffs := r.differ.DiffMain(previous, revised, false)
	edits := r.differ.DiffLevenshtein(diffs)
	r.logger.Debug("Revision changed %.0f%% of the draft (%d of %d chars)",
		float64(edits)/float64(size)*100, edits, size)
}

// renderRevisionPrompt packs the question, the previous draft and its named
// weaknesses into one revision request.
func renderRevisionPrompt(query, draft string, eval ports.QualityEvaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The previous answer rated %.1f/5. Rewrite it to fix these weaknesses:\n", eval.FinalRating)
	for _, d := range deficiencies(eval) {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	b.WriteString("\nOriginal question:\n")
	b.WriteString(query)
	b.WriteString("\n\nPrevious answer:\n")
	b.WriteString(draft)
	return b.String()
}

// deficiencies names the dimensions dragging the rating down. It always
// returns at least one entry so the revision prompt has something concrete
// to aim at.
func deficiencies(eval ports.QualityEvaluation) []string {
	var out []string
	if eval.Clarity < deficiencyBar {
		out = append(out, "clarity: shorten sentences and break the text into paragraphs")
	}
	if eval.Relevance < deficiencyBar {
		out = append(out, "relevance: address the question directly, using its own terms")
	}
	if eval.Helpfulness < deficiencyBar {
		out = append(out, "helpfulness: give concrete steps or examples instead of generalities")
	}
	if eval.Consistency < 1 {
		out = append(out, "consistency: stay within the tools and constraints the request allows")
	}
	if eval.HallucinationRisk > 0.4 {
		out = append(out, "accuracy: drop absolute claims and unverifiable references")
	}
	if eval.CodeValidity != nil && *eval.CodeValidity < deficiencyBar {
		out = append(out, "code: make code blocks complete and syntactically balanced")
	}
	if len(out) == 0 {
		out = append(out, "overall: tighten the answer and make every sentence earn its place")
	}
	return out
}
