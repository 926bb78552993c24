package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/mvc"
	"github.com/rs/zerolog"
)

// Rule evaluation phases reported by RuleError.
const (
	PhaseCondition = "condition"
	PhaseAction    = "action"
)

// RuleError reports the rule whose evaluation aborted a step.
type RuleError struct {
	Step  string
	Rule  string
	Phase string
	Err   error
}

// Error implements error interface
func (e *RuleError) Error() string {
	return fmt.Sprintf("step %s: rule %s: %s: %v", e.Step, e.Rule, e.Phase, e.Err)
}

// Unwrap returns the underlying evaluator error
func (e *RuleError) Unwrap() error {
	return e.Err
}

// Engine evaluates the rules of a step against a request and response.
//
// Contract:
//   - Concurrency: safe for concurrent use; the configuration is immutable and
//     every evaluation builds its own Context.
//   - Errors: the first failing condition or action aborts the step and is
//     returned as *RuleError.
type Engine struct {
	steps     *StepConfiguration
	evaluator Evaluator
	manager   *cache.Manager
	logger    zerolog.Logger
}

// NewEngine creates an engine. It panics if steps, evaluator or manager is nil.
func NewEngine(steps *StepConfiguration, evaluator Evaluator, manager *cache.Manager, logger zerolog.Logger) *Engine {
	if steps == nil {
		panic("rules: step configuration is required")
	}
	if evaluator == nil {
		panic("rules: evaluator is required")
	}
	if manager == nil {
		panic("rules: cache manager is required")
	}
	return &Engine{
		steps:     steps,
		evaluator: evaluator,
		manager:   manager,
		logger:    logger,
	}
}

// Precompile validates every condition and action when the evaluator
// implements Compiler. It is a no-op otherwise.
func (e *Engine) Precompile() error {
	compiler, ok := e.evaluator.(Compiler)
	if !ok {
		return nil
	}

	for _, step := range e.steps.Steps() {
		rules, _ := e.steps.Rules(step)
		for _, rule := range rules {
			if rule.Condition != "" {
				if err := compiler.Compile(rule.Condition); err != nil {
					return &RuleError{Step: step, Rule: rule.Name, Phase: PhaseCondition, Err: err}
				}
			}
			if err := compiler.Compile(rule.Action); err != nil {
				return &RuleError{Step: step, Rule: rule.Name, Phase: PhaseAction, Err: err}
			}
		}
	}
	return nil
}

// EvaluateStep runs the rules of step in order. For each rule whose condition
// holds, the action is evaluated and its value discarded.
//
// It returns false for an unknown step and true once all rules ran. Entries of
// extra are added to the Context and override the default bindings.
func (e *Engine) EvaluateStep(ctx context.Context, step string, req *mvc.Request, resp *mvc.Response, extra map[string]interface{}) (bool, error) {
	rules, ok := e.steps.Rules(step)
	if !ok {
		e.logger.Debug().Str("step", step).Msg("Unknown step")
		return false, nil
	}

	start := time.Now()
	defer func() {
		StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}()

	evalCtx := e.newContext(ctx, req, resp, extra)

	for _, rule := range rules {
		holds := true
		if rule.Condition != "" {
			v, err := e.evaluator.Evaluate(rule.Condition, evalCtx)
			if err != nil {
				RuleEvaluations.WithLabelValues(step, outcomeError).Inc()
				return false, &RuleError{Step: step, Rule: rule.Name, Phase: PhaseCondition, Err: err}
			}
			holds = Truthy(v)
		}

		if !holds {
			RuleEvaluations.WithLabelValues(step, outcomeSkipped).Inc()
			continue
		}

		if _, err := e.evaluator.Evaluate(rule.Action, evalCtx); err != nil {
			RuleEvaluations.WithLabelValues(step, outcomeError).Inc()
			return false, &RuleError{Step: step, Rule: rule.Name, Phase: PhaseAction, Err: err}
		}
		RuleEvaluations.WithLabelValues(step, outcomeApplied).Inc()

		e.logger.Debug().
			Str("step", step).
			Str("rule", rule.Name).
			Msg("Rule applied")
	}

	return true, nil
}

func (e *Engine) newContext(ctx context.Context, req *mvc.Request, resp *mvc.Response, extra map[string]interface{}) Context {
	session := mvc.SessionFromContext(ctx)

	// A typed nil would compare unequal to nil inside expressions.
	var sessionBinding interface{}
	if session != nil {
		sessionBinding = session
	}

	c := Context{
		BindingRequest:       req,
		BindingResponse:      resp,
		BindingSession:       sessionBinding,
		BindingResponseCache: NewCacheHandle(ctx, e.manager, session),
	}

	for k, v := range extra {
		c[k] = v
	}
	return c
}

// DefaultSteps returns the built-in rules for expr-lang: serve anonymous GET
// requests from cache before dispatch, and store their successful responses
// after dispatch unless the response sets a cookie.
func DefaultSteps() map[string][]Rule {
	return map[string][]Rule{
		StepBeforeDispatch: {
			{
				Name:      "serveFromCache",
				Condition: `request.Method == "GET" && request.GetHeader("Authorization") == ""` +
					` && responseCache.AllowsCaching(request)`,
				Action:    `responseCache.Get(request, response)`,
				Position:  "10",
			},
		},
		StepAfterDispatch: {
			{
				Name: "storeInCache",
				Condition: `dispatchError == nil && request.Method == "GET" && response.StatusCode == 200` +
					` && request.GetHeader("Authorization") == "" && response.GetHeader("Set-Cookie") == ""` +
					` && responseCache.AllowsCaching(request) && responseCache.CanBeCached(response)` +
					` && response.GetHeader("X-Cover-Cache") != "hit"`,
				Action:   `responseCache.Set(request, response)`,
				Position: "10",
			},
		},
	}
}
