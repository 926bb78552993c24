package rules

import (
	"strings"
	"testing"

	"github.com/Sternrassler/cover/pkg/mvc"
)

func TestExprEvaluator_Evaluate(t *testing.T) {
	e := NewExprEvaluator()

	req := mvc.NewRequest("GET", "/articles/5")
	req.SetHeader("Cache-Control", "max-age=60")
	resp := mvc.NewResponse()
	resp.SetHeader("X-Cover-Cache", "hit")

	ctx := Context{
		BindingRequest:  req,
		BindingResponse: resp,
		BindingSession:  nil,
	}

	tests := []struct {
		name       string
		expression string
		want       interface{}
	}{
		{"field", `request.Method`, "GET"},
		{"membership", `request.Method in ["GET", "HEAD"]`, true},
		{"method call", `response.GetHeader("X-Cover-Cache") == "hit"`, true},
		{"status", `response.StatusCode == 200`, true},
		{"nil session", `session == nil`, true},
		{"undefined binding", `dispatchError == nil`, true},
		{"arithmetic", `1 + 2`, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expression, ctx)
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.expression, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.expression, got, tt.want)
			}
		})
	}
}

func TestExprEvaluator_SideEffects(t *testing.T) {
	e := NewExprEvaluator()
	req := mvc.NewRequest("GET", "/")

	if _, err := e.Evaluate(`request.AddCacheTag("node-42")`, Context{BindingRequest: req}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if tags := req.CacheTags(); len(tags) != 1 || tags[0] != "node-42" {
		t.Errorf("CacheTags() = %v, want [node-42]", tags)
	}

	if _, err := e.Evaluate(`request.MarkDispatched()`, Context{BindingRequest: req}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !req.IsDispatched() {
		t.Error("request should be dispatched")
	}
}

func TestExprEvaluator_Errors(t *testing.T) {
	e := NewExprEvaluator()

	if err := e.Compile(`request.Method ==`); err == nil {
		t.Error("Compile should reject malformed expression")
	}

	_, err := e.Evaluate(`request.Method ==`, Context{})
	if err == nil || !strings.Contains(err.Error(), "compile expression") {
		t.Errorf("Evaluate error = %v, want compile error", err)
	}

	// Calling a method on an absent binding fails at run time.
	_, err = e.Evaluate(`response.GetHeader("A")`, Context{})
	if err == nil || !strings.Contains(err.Error(), "run expression") {
		t.Errorf("Evaluate error = %v, want run error", err)
	}
}

func TestExprEvaluator_CachesPrograms(t *testing.T) {
	e := NewExprEvaluator()
	for i := 0; i < 3; i++ {
		if _, err := e.Evaluate(`1 == 1`, Context{}); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
	}
	if len(e.programs) != 1 {
		t.Errorf("cached programs = %d, want 1", len(e.programs))
	}
}
