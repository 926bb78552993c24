package rules

import (
	"errors"
	"testing"

	"github.com/Sternrassler/cover/pkg/mvc"
)

func TestTruthy(t *testing.T) {
	var nilSession *mvc.Session

	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero float", 0.0, false},
		{"float", 0.5, true},
		{"empty string", "", false},
		{"string", "0", true},
		{"empty slice", []string{}, false},
		{"slice", []string{"a"}, true},
		{"nil pointer", nilSession, false},
		{"pointer", &mvc.Session{}, true},
		{"struct", struct{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truthy(tt.value); got != tt.want {
				t.Errorf("Truthy(%#v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFuncEvaluator(t *testing.T) {
	e := NewFuncEvaluator().
		Register("isGet", func(ctx Context) (interface{}, error) {
			return ctx.Request().Method == "GET", nil
		}).
		Register("fail", func(Context) (interface{}, error) {
			return nil, errors.New("boom")
		})

	ctx := Context{BindingRequest: mvc.NewRequest("GET", "/")}

	v, err := e.Evaluate("isGet", ctx)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if v != true {
		t.Errorf("isGet = %v, want true", v)
	}

	if _, err := e.Evaluate("fail", ctx); err == nil || err.Error() != "boom" {
		t.Errorf("fail error = %v, want boom", err)
	}

	if _, err := e.Evaluate("missing", ctx); !errors.Is(err, ErrUnknownExpression) {
		t.Errorf("missing error = %v, want ErrUnknownExpression", err)
	}
	if err := e.Compile("missing"); !errors.Is(err, ErrUnknownExpression) {
		t.Errorf("Compile(missing) = %v, want ErrUnknownExpression", err)
	}
	if err := e.Compile("isGet"); err != nil {
		t.Errorf("Compile(isGet) = %v", err)
	}
}

func TestContextAccessors(t *testing.T) {
	empty := Context{}
	if empty.Request() != nil || empty.Response() != nil || empty.Session() != nil || empty.Cache() != nil {
		t.Error("accessors on empty context should return nil")
	}

	req := mvc.NewRequest("GET", "/")
	resp := mvc.NewResponse()
	session := &mvc.Session{ID: "abc", Started: true}
	ctx := Context{BindingRequest: req, BindingResponse: resp, BindingSession: session}

	if ctx.Request() != req {
		t.Error("Request() mismatch")
	}
	if ctx.Response() != resp {
		t.Error("Response() mismatch")
	}
	if ctx.Session() != session {
		t.Error("Session() mismatch")
	}
}
