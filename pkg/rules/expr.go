package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEvaluator evaluates expr-lang expressions
// (https://expr-lang.org). Bindings are resolved at run time, so methods of
// the bound values are callable: responseCache.Get(request, response).
//
// Programs are compiled on first use and cached by source text.
type ExprEvaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExprEvaluator creates an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{programs: make(map[string]*vm.Program)}
}

// Compile parses and caches expression.
func (e *ExprEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate runs expression with ctx as its environment.
func (e *ExprEvaluator) Evaluate(expression string, ctx Context) (interface{}, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, map[string]interface{}(ctx))
	if err != nil {
		return nil, fmt.Errorf("run expression %q: %w", expression, err)
	}
	return out, nil
}

func (e *ExprEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()
	return program, nil
}

var (
	_ Evaluator = (*ExprEvaluator)(nil)
	_ Compiler  = (*ExprEvaluator)(nil)
	_ Compiler  = (*FuncEvaluator)(nil)
)
