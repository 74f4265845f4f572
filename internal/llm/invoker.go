// Package llm issues text-generation requests through a primary/fallback
// model chain with bounded retries. Generate never returns a Go error: the
// outcome is always a typed Result whose Code, when set, is one of the
// closed set below. The fallback-then-retry sequence is deliberately
// serialized so the model that produced the final answer is unambiguous.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	CodeDisabled           = "llm_disabled"
	CodeMissingAPIKey      = "missing_api_key"
	CodeNetworkUnreachable = "network_unreachable"
	CodeCallFailed         = "llm_call_failed"
)

// Result is the typed outcome of one Generate call. OK=true implies
// non-empty Content and the Model that produced it; OK=false implies exactly
// one Code. LastErr is diagnostics only, never user-facing.
type Result struct {
	OK      bool
	Content string
	Model   string
	Code    string
	LastErr string
}

// Request is one completion request handed to a Transport.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Transport performs the actual call. Implementations return the raw content
// string or an error; classification of errors is the invoker's job.
type Transport interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Enabled       bool
	APIKey        string
	PrimaryModel  string
	FallbackModel string
	MaxRetries    int
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
}

type Invoker struct {
	cfg       Config
	transport Transport
}

func NewInvoker(cfg Config, t Transport) *Invoker {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Invoker{cfg: cfg, transport: t}
}

type attempt struct {
	model string
	n     int
}

// attemptPlan expands the model chain into the ordered (model, attempt)
// pairs that Generate walks. Blank and duplicate models are skipped.
func attemptPlan(cfg Config) []attempt {
	var models []string
	for _, m := range []string{cfg.PrimaryModel, cfg.FallbackModel} {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		dup := false
		for _, seen := range models {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup {
			models = append(models, m)
		}
	}
	var plan []attempt
	for _, m := range models {
		for n := 1; n <= 1+cfg.MaxRetries; n++ {
			plan = append(plan, attempt{model: m, n: n})
		}
	}
	return plan
}

// Generate walks the attempt plan until the first non-empty response.
// A transport-class failure (network, DNS, timeout) terminates the whole
// chain immediately: it indicates the environment, not the model, is
// unusable. Every other failure moves on to the next attempt.
func (iv *Invoker) Generate(ctx context.Context, system, user string) Result {
	if !iv.cfg.Enabled {
		return Result{Code: CodeDisabled, Content: "(LLM not applied: disabled by configuration)"}
	}
	if strings.TrimSpace(iv.cfg.APIKey) == "" {
		return Result{Code: CodeMissingAPIKey, Content: "(LLM not applied: API key not configured)"}
	}
	if iv.transport == nil {
		return Result{Code: CodeCallFailed, Content: "(LLM not applied: call failed)", LastErr: "no transport configured"}
	}

	lastErr := ""
	for _, at := range attemptPlan(iv.cfg) {
		content, err := iv.complete(ctx, at.model, system, user)
		if err != nil {
			if IsNetworkUnreachable(err) {
				return Result{
					Code:    CodeNetworkUnreachable,
					Content: "(LLM not applied: network unreachable)",
					LastErr: err.Error(),
				}
			}
			lastErr = fmt.Sprintf("%s (model=%s attempt=%d)", err.Error(), at.model, at.n)
			continue
		}
		if strings.TrimSpace(content) == "" {
			// An empty completion is a failed attempt, not a success.
			lastErr = fmt.Sprintf("empty response (model=%s attempt=%d)", at.model, at.n)
			continue
		}
		return Result{OK: true, Content: content, Model: at.model}
	}

	return Result{
		Code:    CodeCallFailed,
		Content: "(LLM not applied: call failed)",
		LastErr: lastErr,
	}
}

func (iv *Invoker) complete(ctx context.Context, model, system, user string) (string, error) {
	if iv.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.cfg.Timeout)
		defer cancel()
	}
	return iv.transport.Complete(ctx, Request{
		Model:       model,
		System:      system,
		User:        user,
		Temperature: iv.cfg.Temperature,
		MaxTokens:   iv.cfg.MaxTokens,
	})
}
