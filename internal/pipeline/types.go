// Package pipeline drives one request through the Plan → Execute → Review
// state machine and assembles the run's canonical outcome. The flow is
// strictly linear: every run reaches Done exactly once, and a Review
// rejection is reported, not corrected.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/vsavkov/triage/internal/artifact"
	"github.com/vsavkov/triage/internal/llm"
	"github.com/vsavkov/triage/internal/reqctx"
	"github.com/vsavkov/triage/internal/review"
)

// Execution error codes. Extraction-layer failures map onto these; the set
// is closed and flows upward without re-wrapping.
const (
	ErrFileLoadFailed      = "file_load_failed"
	ErrUnsupportedFileKind = "unsupported_file_kind"
	ErrNoHandlers          = "no_handlers_registered"
)

// LLM status values recorded in the outcome.
const (
	LLMStatusOK      = "ok"
	LLMStatusSkipped = "skipped"
	LLMStatusFailed  = "failed"
)

// Plan is the Plan stage's output: read-only input to Execute.
type Plan struct {
	Intent      string
	Assumptions []string
	Constraints []string
	Notes       map[string]string
}

// ExecutionResult is the Execute stage's output. OK=false implies ErrorCode
// is set; LLMUsed=true implies LLMStatus=ok.
type ExecutionResult struct {
	OK        bool
	Mode      string
	Summary   string
	Artifacts []artifact.Ref

	LLMUsed   bool
	LLMStatus string
	LLMReason string
	LLMModel  string

	FileKind  string
	ErrorCode string
}

// ApplyLLM folds a generation result into the execution's llm fields.
func (r *ExecutionResult) ApplyLLM(res llm.Result) {
	r.LLMModel = res.Model
	if res.OK {
		r.LLMUsed = true
		r.LLMStatus = LLMStatusOK
		r.LLMReason = ""
		return
	}
	r.LLMUsed = false
	r.LLMReason = res.Code
	switch res.Code {
	case llm.CodeDisabled, llm.CodeMissingAPIKey:
		r.LLMStatus = LLMStatusSkipped
	default:
		r.LLMStatus = LLMStatusFailed
	}
}

// Generator is the slice of the LLM invoker the pipeline needs.
type Generator interface {
	Generate(ctx context.Context, system, user string) llm.Result
}

// StageContext is the runtime context shared by the stages of one run.
type StageContext struct {
	Message string
	Request reqctx.RequestContext
	TraceID string

	Store *artifact.Store
	LLM   Generator
	Log   *slog.Logger

	rec *recorder
}

// Emit appends an event to the run's ordered event stream.
func (sc *StageContext) Emit(ev Event) {
	if sc.rec != nil {
		sc.rec.emit(ev)
	}
}

// Handler is the task-specific unit selected by the router and driven
// through the stages.
type Handler interface {
	ID() string

	// Plan inspects the request context only; it performs no I/O and
	// never fails.
	Plan(sc *StageContext) Plan

	// Execute produces a result even when its collaborators fail; errors
	// are folded into the result, never raised.
	Execute(ctx context.Context, sc *StageContext, p Plan) ExecutionResult

	// ReviewSpec declares the gate this handler's executions must pass.
	ReviewSpec() review.Spec
}

// Result is the final tuple handed to renderers and audit. Meta is the
// canonical outcome contract; renderers treat it as opaque pass-through.
type Result struct {
	Text      string
	Artifacts []artifact.Ref
	Events    []Event
	Meta      MetaRecord
}
