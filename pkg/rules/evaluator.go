package rules

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Sternrassler/cover/pkg/mvc"
)

// ErrUnknownExpression indicates a FuncEvaluator has no function registered
// under an expression name.
var ErrUnknownExpression = errors.New("unknown expression")

// Binding names provided to every evaluation.
const (
	BindingRequest       = "request"
	BindingResponse      = "response"
	BindingSession       = "session"
	BindingResponseCache = "responseCache"
	BindingDispatchError = "dispatchError"
)

// Context holds the named bindings of one step evaluation.
type Context map[string]interface{}

// Request returns the request binding, or nil.
func (c Context) Request() *mvc.Request {
	req, _ := c[BindingRequest].(*mvc.Request)
	return req
}

// Response returns the response binding, or nil.
func (c Context) Response() *mvc.Response {
	resp, _ := c[BindingResponse].(*mvc.Response)
	return resp
}

// Session returns the session binding, or nil.
func (c Context) Session() *mvc.Session {
	s, _ := c[BindingSession].(*mvc.Session)
	return s
}

// Cache returns the response cache handle, or nil.
func (c Context) Cache() *CacheHandle {
	h, _ := c[BindingResponseCache].(*CacheHandle)
	return h
}

// Evaluator evaluates an expression against a Context.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: malformed expressions and failing side effects are returned,
//     never swallowed.
type Evaluator interface {
	Evaluate(expression string, ctx Context) (interface{}, error)
}

// Compiler is implemented by evaluators that can validate an expression
// before its first evaluation.
type Compiler interface {
	Compile(expression string) error
}

// Truthy coerces a condition result to a boolean: nil, false, zero numbers
// and empty strings, slices and maps are false; everything else is true.
func Truthy(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Func is a rule expression implemented in Go.
type Func func(ctx Context) (interface{}, error)

// FuncEvaluator resolves expressions to registered Go functions by name.
// It trades runtime configurability for compile-time checking.
type FuncEvaluator struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewFuncEvaluator creates an empty function table.
func NewFuncEvaluator() *FuncEvaluator {
	return &FuncEvaluator{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any previous function.
func (e *FuncEvaluator) Register(name string, fn Func) *FuncEvaluator {
	e.mu.Lock()
	e.funcs[name] = fn
	e.mu.Unlock()
	return e
}

// Compile checks that expression names a registered function.
func (e *FuncEvaluator) Compile(expression string) error {
	e.mu.RLock()
	_, ok := e.funcs[expression]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExpression, expression)
	}
	return nil
}

// Evaluate calls the function registered under expression.
func (e *FuncEvaluator) Evaluate(expression string, ctx Context) (interface{}, error) {
	e.mu.RLock()
	fn, ok := e.funcs[expression]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExpression, expression)
	}
	return fn(ctx)
}

var _ Evaluator = (*FuncEvaluator)(nil)
