// Package dispatch wraps controller dispatch with the cache rule steps.
//
// The Interceptor evaluates beforeDispatch, skips the controller when a rule
// marked the request dispatched (a cache hit), and otherwise runs the
// controller followed by afterDispatch. Handler adapts this to net/http.
package dispatch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/pkg/mvc"
	"github.com/Sternrassler/cover/pkg/rules"
)

// NextFunc performs normal dispatch of req into resp.
type NextFunc func(ctx context.Context, req *mvc.Request, resp *mvc.Response) error

// StepEvaluator evaluates a named rule step. *rules.Engine implements it.
type StepEvaluator interface {
	EvaluateStep(ctx context.Context, step string, req *mvc.Request, resp *mvc.Response, extra map[string]interface{}) (bool, error)
}

// Interceptor runs rule steps around normal dispatch.
type Interceptor struct {
	steps  StepEvaluator
	logger zerolog.Logger
}

// NewInterceptor creates an interceptor. It panics if steps is nil.
func NewInterceptor(steps StepEvaluator, logger zerolog.Logger) *Interceptor {
	if steps == nil {
		panic("dispatch: step evaluator is required")
	}
	return &Interceptor{steps: steps, logger: logger}
}

// Dispatch evaluates beforeDispatch and returns (true, nil) if the request was
// handled there. Otherwise it calls next, evaluates afterDispatch whether or
// not next failed, and returns the error of next.
//
// An error of the afterDispatch step is joined with the error of next. An
// error of the beforeDispatch step is returned without dispatching.
func (i *Interceptor) Dispatch(ctx context.Context, req *mvc.Request, resp *mvc.Response, next NextFunc) (bool, error) {
	if _, err := i.steps.EvaluateStep(ctx, rules.StepBeforeDispatch, req, resp, nil); err != nil {
		DispatchTotal.WithLabelValues(outcomeError).Inc()
		return false, err
	}

	if req.IsDispatched() {
		DispatchTotal.WithLabelValues(outcomeCache).Inc()
		i.logger.Debug().
			Str("path", req.Path).
			Msg("Served before dispatch")
		return true, nil
	}

	dispatchErr := next(ctx, req, resp)
	if dispatchErr != nil {
		i.logger.Debug().
			Err(dispatchErr).
			Str("path", req.Path).
			Msg("Dispatch failed")
	}

	extra := map[string]interface{}{rules.BindingDispatchError: dispatchErr}
	if _, err := i.steps.EvaluateStep(ctx, rules.StepAfterDispatch, req, resp, extra); err != nil {
		DispatchTotal.WithLabelValues(outcomeError).Inc()
		return false, errors.Join(dispatchErr, err)
	}

	if dispatchErr != nil {
		DispatchTotal.WithLabelValues(outcomeError).Inc()
		return false, dispatchErr
	}

	DispatchTotal.WithLabelValues(outcomeDispatched).Inc()
	return false, nil
}
