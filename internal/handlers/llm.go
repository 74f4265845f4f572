// Package handlers holds the task-specific units driven by the pipeline:
// dia analyzes tabular/document attachments, logcop analyzes log text.
// Both degrade to rule-based summarizers whenever the generative backend is
// unavailable, so every run still produces a substantive report.
package handlers

import (
	"context"

	"github.com/vsavkov/triage/internal/llm"
	"github.com/vsavkov/triage/internal/pipeline"
)

// generate calls the run's generator, treating an unwired generator like a
// disabled one.
func generate(ctx context.Context, sc *pipeline.StageContext, system, user string) llm.Result {
	if sc.LLM == nil {
		return llm.Result{Code: llm.CodeDisabled, Content: "(LLM not applied: disabled by configuration)"}
	}
	return sc.LLM.Generate(ctx, system, user)
}

// llmStatusLine is the one-line status every report carries, shared across
// handlers so operators can grep for it.
func llmStatusLine(res llm.Result) string {
	if res.OK {
		return "- LLM: applied"
	}
	switch res.Code {
	case llm.CodeDisabled:
		return "- LLM: not applied (disabled)"
	case llm.CodeMissingAPIKey:
		return "- LLM: not applied (missing API key)"
	case llm.CodeNetworkUnreachable:
		return "- LLM: not applied (network unreachable)"
	case llm.CodeCallFailed:
		return "- LLM: not applied (call failed)"
	default:
		return "- LLM: not applied (unknown)"
	}
}

func emitLLMEvents(sc *pipeline.StageContext, res llm.Result) {
	if res.OK {
		sc.Emit(pipeline.Info("execute.llm_used", "generated insights with model "+res.Model))
		return
	}
	sc.Emit(pipeline.Warn("execute.llm_fallback", res.Content+" ("+res.Code+")"))
}
