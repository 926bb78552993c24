package rules

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/mvc"
	"github.com/Sternrassler/cover/pkg/store"
)

// trace records the order in which rule actions run.
type trace struct {
	entries []string
}

func (t *trace) Append(s string) int {
	t.entries = append(t.entries, s)
	return len(t.entries)
}

func newTestEngine(t *testing.T, steps map[string][]Rule, evaluator Evaluator) (*Engine, *cache.Manager) {
	t.Helper()

	cfg, err := NewStepConfiguration(steps)
	if err != nil {
		t.Fatalf("NewStepConfiguration failed: %v", err)
	}
	manager := cache.NewManager(store.NewMemoryStore(), store.NewMemoryStore(), cache.Config{
		Environment:     "Testing",
		DefaultLifetime: time.Minute,
	}, zerolog.Nop())
	return NewEngine(cfg, evaluator, manager, zerolog.Nop()), manager
}

func articleRequest() *mvc.Request {
	req := mvc.NewRequest("GET", "/articles/5")
	req.Scheme = "http"
	req.Host = "example.com"
	req.Format = "html"
	req.ControllerObjectName = `Acme\Blog\Controller\ArticleController`
	req.ControllerActionName = "show"
	req.Arguments["article"] = "5"
	return req
}

func TestNewEngine_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewEngine should panic with nil collaborators")
		}
	}()
	NewEngine(nil, nil, nil, zerolog.Nop())
}

func TestEngine_EvaluateStep_Order(t *testing.T) {
	steps := map[string][]Rule{
		"custom": {
			{Name: "second", Action: `calls.Append("second")`, Position: "20"},
			{Name: "skipped", Condition: `false`, Action: `calls.Append("skipped")`, Position: "15"},
			{Name: "first", Action: `calls.Append("first")`, Position: "10"},
			{Name: "guarded", Condition: `request.Method == "GET"`, Action: `calls.Append("guarded")`, Position: "end"},
		},
	}
	engine, _ := newTestEngine(t, steps, NewExprEvaluator())

	log := &trace{}
	ok, err := engine.EvaluateStep(context.Background(), "custom", articleRequest(), mvc.NewResponse(), map[string]interface{}{"calls": log})
	if err != nil {
		t.Fatalf("EvaluateStep failed: %v", err)
	}
	if !ok {
		t.Error("EvaluateStep should return true for a known step")
	}

	want := []string{"first", "second", "guarded"}
	if !reflect.DeepEqual(log.entries, want) {
		t.Errorf("actions ran as %v, want %v", log.entries, want)
	}
}

func TestEngine_EvaluateStep_UnknownStep(t *testing.T) {
	engine, _ := newTestEngine(t, map[string][]Rule{}, NewExprEvaluator())

	ok, err := engine.EvaluateStep(context.Background(), "missing", articleRequest(), mvc.NewResponse(), nil)
	if err != nil {
		t.Fatalf("EvaluateStep failed: %v", err)
	}
	if ok {
		t.Error("EvaluateStep should return false for an unknown step")
	}
}

func TestEngine_EvaluateStep_Errors(t *testing.T) {
	boom := errors.New("boom")
	evaluator := NewFuncEvaluator().
		Register("yes", func(Context) (interface{}, error) { return true, nil }).
		Register("fail", func(Context) (interface{}, error) { return nil, boom })

	tests := []struct {
		name      string
		rules     []Rule
		wantRule  string
		wantPhase string
	}{
		{
			name:      "condition",
			rules:     []Rule{{Name: "r", Condition: "fail", Action: "yes"}},
			wantRule:  "r",
			wantPhase: PhaseCondition,
		},
		{
			name: "action aborts remaining rules",
			rules: []Rule{
				{Name: "r1", Condition: "yes", Action: "fail", Position: "1"},
				{Name: "r2", Action: "missing", Position: "2"},
			},
			wantRule:  "r1",
			wantPhase: PhaseAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t, map[string][]Rule{"step": tt.rules}, evaluator)

			ok, err := engine.EvaluateStep(context.Background(), "step", articleRequest(), mvc.NewResponse(), nil)
			if ok {
				t.Error("EvaluateStep should not report success")
			}

			var ruleErr *RuleError
			if !errors.As(err, &ruleErr) {
				t.Fatalf("error = %v, want *RuleError", err)
			}
			if ruleErr.Step != "step" || ruleErr.Rule != tt.wantRule || ruleErr.Phase != tt.wantPhase {
				t.Errorf("RuleError = %+v", ruleErr)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error should wrap evaluator error, got %v", err)
			}
		})
	}
}

func TestEngine_EvaluateStep_ExtraOverridesDefaults(t *testing.T) {
	var seen *mvc.Request
	evaluator := NewFuncEvaluator().Register("capture", func(ctx Context) (interface{}, error) {
		seen = ctx.Request()
		return nil, nil
	})
	engine, _ := newTestEngine(t, map[string][]Rule{"step": {{Action: "capture"}}}, evaluator)

	override := mvc.NewRequest("POST", "/other")
	_, err := engine.EvaluateStep(context.Background(), "step", articleRequest(), mvc.NewResponse(), map[string]interface{}{
		BindingRequest: override,
	})
	if err != nil {
		t.Fatalf("EvaluateStep failed: %v", err)
	}
	if seen != override {
		t.Error("extra binding should override the request binding")
	}
}

func TestEngine_SessionBinding(t *testing.T) {
	var got Context
	evaluator := NewFuncEvaluator().Register("capture", func(ctx Context) (interface{}, error) {
		got = ctx
		return nil, nil
	})
	engine, _ := newTestEngine(t, map[string][]Rule{"step": {{Action: "capture"}}}, evaluator)

	if _, err := engine.EvaluateStep(context.Background(), "step", articleRequest(), mvc.NewResponse(), nil); err != nil {
		t.Fatalf("EvaluateStep failed: %v", err)
	}
	if v, ok := got[BindingSession]; !ok || v != nil {
		t.Errorf("session binding = %#v, want untyped nil", v)
	}
	if got.Cache() == nil {
		t.Error("responseCache binding missing")
	}

	session := &mvc.Session{ID: "s1", Started: true}
	ctx := mvc.WithSession(context.Background(), session)
	if _, err := engine.EvaluateStep(ctx, "step", articleRequest(), mvc.NewResponse(), nil); err != nil {
		t.Fatalf("EvaluateStep failed: %v", err)
	}
	if got.Session() != session {
		t.Error("session binding should come from the context")
	}
}

func TestEngine_Precompile(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultSteps(), NewExprEvaluator())
	if err := engine.Precompile(); err != nil {
		t.Errorf("default rules should compile: %v", err)
	}

	broken := map[string][]Rule{
		"step": {{Name: "bad", Condition: `request.Method ==`, Action: `true`}},
	}
	engine, _ = newTestEngine(t, broken, NewExprEvaluator())

	var ruleErr *RuleError
	if err := engine.Precompile(); !errors.As(err, &ruleErr) || ruleErr.Phase != PhaseCondition {
		t.Errorf("Precompile error = %v, want condition RuleError", err)
	}
}

func TestEngine_DefaultSteps_CacheRoundTrip(t *testing.T) {
	engine, manager := newTestEngine(t, DefaultSteps(), NewExprEvaluator())
	ctx := context.Background()

	// First request: miss, then controller runs and the response is stored.
	req := articleRequest()
	resp := mvc.NewResponse()
	if _, err := engine.EvaluateStep(ctx, StepBeforeDispatch, req, resp, nil); err != nil {
		t.Fatalf("beforeDispatch failed: %v", err)
	}
	if req.IsDispatched() {
		t.Fatal("request should not be dispatched on a miss")
	}
	if got := resp.GetHeader(cache.HeaderCache); got != "miss" {
		t.Errorf("%s = %q, want miss", cache.HeaderCache, got)
	}

	resp.SetStatus(http.StatusOK, "")
	resp.SetHeader("Cache-Control", "max-age=300")
	resp.SetContent("<h1>Article 5</h1>")
	req.SetDispatched(true)

	extra := map[string]interface{}{BindingDispatchError: nil}
	if _, err := engine.EvaluateStep(ctx, StepAfterDispatch, req, resp, extra); err != nil {
		t.Fatalf("afterDispatch failed: %v", err)
	}

	ok, err := manager.Has(ctx, articleRequest(), nil)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !ok {
		t.Fatal("response should be cached after afterDispatch")
	}

	// Second request: served from cache.
	req2 := articleRequest()
	resp2 := mvc.NewResponse()
	if _, err := engine.EvaluateStep(ctx, StepBeforeDispatch, req2, resp2, nil); err != nil {
		t.Fatalf("beforeDispatch failed: %v", err)
	}
	if !req2.IsDispatched() {
		t.Error("request should be dispatched on a hit")
	}
	if resp2.Content != "<h1>Article 5</h1>" {
		t.Errorf("Content = %q", resp2.Content)
	}
	if got := resp2.GetHeader(cache.HeaderCache); got != "hit" {
		t.Errorf("%s = %q, want hit", cache.HeaderCache, got)
	}
}

func TestEngine_DefaultSteps_SkipsUncacheable(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(req *mvc.Request, resp *mvc.Response)
		extra   map[string]interface{}
	}{
		{
			name: "private response",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				resp.SetHeader("Cache-Control", "private")
			},
		},
		{
			name: "no-cache request",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				req.SetHeader("Cache-Control", "no-cache")
			},
		},
		{
			name: "post request",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				req.Method = "POST"
			},
		},
		{
			name: "authorized request",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				req.SetHeader("Authorization", "Bearer alice")
			},
		},
		{
			name: "response sets cookie",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				resp.SetHeader("Set-Cookie", "sid=victim1; Path=/")
			},
		},
		{
			name: "head request",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				req.Method = "HEAD"
			},
		},
		{
			name: "error status",
			prepare: func(req *mvc.Request, resp *mvc.Response) {
				resp.SetStatus(http.StatusInternalServerError, "")
			},
		},
		{
			name:    "dispatch error",
			prepare: func(req *mvc.Request, resp *mvc.Response) {},
			extra:   map[string]interface{}{BindingDispatchError: errors.New("controller failed")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, manager := newTestEngine(t, DefaultSteps(), NewExprEvaluator())
			ctx := context.Background()

			req := articleRequest()
			resp := mvc.NewResponse()
			resp.SetContent("body")
			req.SetDispatched(true)
			tt.prepare(req, resp)

			if _, err := engine.EvaluateStep(ctx, StepAfterDispatch, req, resp, tt.extra); err != nil {
				t.Fatalf("afterDispatch failed: %v", err)
			}

			ok, err := manager.Has(ctx, req, nil)
			if err != nil {
				t.Fatalf("Has failed: %v", err)
			}
			if ok {
				t.Error("response should not be cached")
			}
		})
	}
}

func TestEngine_DefaultSteps_BeforeDispatchSkipsLookup(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(req *mvc.Request)
	}{
		{
			name:    "authorized request",
			prepare: func(req *mvc.Request) { req.SetHeader("Authorization", "Bearer alice") },
		},
		{
			name:    "head request",
			prepare: func(req *mvc.Request) { req.Method = "HEAD" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, manager := newTestEngine(t, DefaultSteps(), NewExprEvaluator())
			ctx := context.Background()

			stored := articleRequest()
			stored.SetDispatched(true)
			if _, err := manager.Set(ctx, stored, mvc.NewResponse().SetContent("cached"), nil); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			req := articleRequest()
			tt.prepare(req)
			resp := mvc.NewResponse()
			if _, err := engine.EvaluateStep(ctx, StepBeforeDispatch, req, resp, nil); err != nil {
				t.Fatalf("beforeDispatch failed: %v", err)
			}

			if req.IsDispatched() || resp.Content == "cached" {
				t.Error("request should not be served from cache")
			}
			if got := resp.GetHeader(cache.HeaderCache); got != "" {
				t.Errorf("%s = %q, want no lookup", cache.HeaderCache, got)
			}
		})
	}
}
