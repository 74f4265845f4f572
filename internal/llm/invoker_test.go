package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// scriptTransport replays a fixed sequence of outcomes and records the model
// of every call it receives.
type scriptTransport struct {
	script []func() (string, error)
	calls  []string
}

func (s *scriptTransport) Complete(_ context.Context, req Request) (string, error) {
	s.calls = append(s.calls, req.Model)
	if len(s.script) == 0 {
		return "", errors.New("script exhausted")
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next()
}

func ok(content string) func() (string, error) {
	return func() (string, error) { return content, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		APIKey:        "k",
		PrimaryModel:  "primary/model",
		FallbackModel: "fallback/model",
		MaxRetries:    1,
	}
}

func TestGenerateDisabledMakesNoCalls(t *testing.T) {
	tr := &scriptTransport{}
	cfg := testConfig()
	cfg.Enabled = false
	res := NewInvoker(cfg, tr).Generate(context.Background(), "s", "u")
	if res.OK || res.Code != CodeDisabled {
		t.Fatalf("got %+v, want code %s", res, CodeDisabled)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("transport was called %d times while disabled", len(tr.calls))
	}
}

func TestGenerateMissingKeyMakesNoCalls(t *testing.T) {
	tr := &scriptTransport{}
	cfg := testConfig()
	cfg.APIKey = "   "
	res := NewInvoker(cfg, tr).Generate(context.Background(), "s", "u")
	if res.Code != CodeMissingAPIKey {
		t.Fatalf("code = %s, want %s", res.Code, CodeMissingAPIKey)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("transport was called %d times without a key", len(tr.calls))
	}
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	tr := &scriptTransport{script: []func() (string, error){ok("answer")}}
	res := NewInvoker(testConfig(), tr).Generate(context.Background(), "s", "u")
	if !res.OK || res.Content != "answer" || res.Model != "primary/model" {
		t.Fatalf("got %+v", res)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("calls = %v", tr.calls)
	}
}

func TestGenerateWalksFullChainInOrder(t *testing.T) {
	// 3 failed attempts, then the fallback's retry succeeds.
	tr := &scriptTransport{script: []func() (string, error){
		fail(&StatusError{StatusCode: 500, Model: "primary/model"}),
		ok("   "), // blank content is a failed attempt
		fail(&StatusError{StatusCode: 429, Model: "fallback/model"}),
		ok("from fallback"),
	}}
	res := NewInvoker(testConfig(), tr).Generate(context.Background(), "s", "u")
	if !res.OK || res.Model != "fallback/model" || res.Content != "from fallback" {
		t.Fatalf("got %+v", res)
	}
	wantCalls := []string{"primary/model", "primary/model", "fallback/model", "fallback/model"}
	if diff := cmp.Diff(wantCalls, tr.calls); diff != "" {
		t.Fatalf("call order (-want +got):\n%s", diff)
	}
}

func TestGenerateExhaustionReturnsCallFailed(t *testing.T) {
	tr := &scriptTransport{script: []func() (string, error){
		fail(&StatusError{StatusCode: 500}),
		fail(&StatusError{StatusCode: 500}),
		fail(&StatusError{StatusCode: 500}),
		fail(&StatusError{StatusCode: 500}),
	}}
	res := NewInvoker(testConfig(), tr).Generate(context.Background(), "s", "u")
	if res.OK || res.Code != CodeCallFailed {
		t.Fatalf("got %+v, want code %s", res, CodeCallFailed)
	}
	if res.LastErr == "" {
		t.Error("LastErr should carry the final attempt's diagnostics")
	}
	if len(tr.calls) != 4 {
		t.Fatalf("calls = %d, want 4 (2 models x 2 attempts)", len(tr.calls))
	}
}

func TestGenerateNetworkErrorShortCircuitsWholeChain(t *testing.T) {
	// The fallback model is never tried after a transport-class failure.
	tr := &scriptTransport{script: []func() (string, error){
		fail(&net.OpError{Op: "dial", Err: errors.New("connection refused")}),
	}}
	res := NewInvoker(testConfig(), tr).Generate(context.Background(), "s", "u")
	if res.Code != CodeNetworkUnreachable {
		t.Fatalf("code = %s, want %s", res.Code, CodeNetworkUnreachable)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("calls = %v, want the chain to stop after the first", tr.calls)
	}
}

func TestGenerateDuplicateModelsCollapse(t *testing.T) {
	tr := &scriptTransport{script: []func() (string, error){
		fail(&StatusError{StatusCode: 500}),
		fail(&StatusError{StatusCode: 500}),
	}}
	cfg := testConfig()
	cfg.FallbackModel = cfg.PrimaryModel
	res := NewInvoker(cfg, tr).Generate(context.Background(), "s", "u")
	if res.Code != CodeCallFailed {
		t.Fatalf("code = %s", res.Code)
	}
	if len(tr.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (one model, 1+1 attempts)", len(tr.calls))
	}
}

func TestGenerateNilTransport(t *testing.T) {
	res := NewInvoker(testConfig(), nil).Generate(context.Background(), "s", "u")
	if res.OK || res.Code != CodeCallFailed {
		t.Fatalf("got %+v", res)
	}
}

func TestAttemptPlanSkipsBlankModels(t *testing.T) {
	cfg := Config{PrimaryModel: "  ", FallbackModel: "only/model", MaxRetries: 2}
	plan := attemptPlan(cfg)
	if len(plan) != 3 {
		t.Fatalf("plan length = %d, want 3", len(plan))
	}
	for i, at := range plan {
		if at.model != "only/model" || at.n != i+1 {
			t.Errorf("plan[%d] = %+v", i, at)
		}
	}
}

func TestIsNetworkUnreachable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status error", &StatusError{StatusCode: 503, Message: "service unavailable"}, false},
		{"wrapped status error", fmt.Errorf("call: %w", &StatusError{StatusCode: 500}), false},
		{"deadline", context.DeadlineExceeded, true},
		{"net.Error", &net.OpError{Op: "read", Err: errors.New("reset")}, true},
		{"string hint", errors.New("Get \"https://x\": dial tcp: no such host"), true},
		{"plain failure", errors.New("schema mismatch"), false},
	}
	for _, tc := range cases {
		if got := IsNetworkUnreachable(tc.err); got != tc.want {
			t.Errorf("%s: IsNetworkUnreachable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
