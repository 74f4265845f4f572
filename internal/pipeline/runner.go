package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vsavkov/triage/internal/artifact"
	"github.com/vsavkov/triage/internal/logging"
	"github.com/vsavkov/triage/internal/reqctx"
	"github.com/vsavkov/triage/internal/review"
	"github.com/vsavkov/triage/internal/route"
)

// AuditSink records a finished run. Implementations must never panic; a
// returned error is downgraded to a warning event and the user-visible
// result is unaffected.
type AuditSink interface {
	Record(res *Result, message string, rc reqctx.RequestContext) (string, error)
}

type RunnerOptions struct {
	Registry *Registry
	Store    *artifact.Store
	LLM      Generator
	Audit    AuditSink
	Policy   artifact.Policy

	// ActiveHandler pins every run to one handler id; empty or "auto"
	// means the router decides.
	ActiveHandler  string
	DefaultHandler string

	Log        *slog.Logger
	Now        func() time.Time
	NewTraceID func() string
}

// Runner owns no mutable state across runs; concurrent Run calls for
// distinct requests are independent.
type Runner struct {
	opts RunnerOptions
}

func NewRunner(opts RunnerOptions) *Runner {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTraceID == nil {
		opts.NewTraceID = func() string { return ulid.Make().String() }
	}
	if opts.DefaultHandler == "" {
		opts.DefaultHandler = route.DataHandlerID
	}
	return &Runner{opts: opts}
}

// Route returns the decision Run would act on, without executing anything.
func (r *Runner) Route(message string, rc reqctx.RequestContext) route.Decision {
	active := strings.TrimSpace(r.opts.ActiveHandler)
	if active != "" && active != "auto" {
		if _, ok := r.opts.Registry.Get(active); ok {
			return route.Decision{HandlerID: active, Confidence: 1.0, Reason: "active_handler=" + active}
		}
	}
	return route.Decide(message, rc, r.opts.Registry.IDs(), r.opts.DefaultHandler)
}

// Run drives one request through Plan, Execute and Review, then hands the
// outcome to the audit sink. It always returns a well-formed Result.
func (r *Runner) Run(ctx context.Context, message string, raw map[string]any) Result {
	rc := reqctx.Normalize(raw)
	traceID := r.opts.NewTraceID()
	lg := logging.WithTrace(r.opts.Log, traceID)

	rec := &recorder{}
	decision := r.Route(message, rc)
	rec.emit(Info("route.decision", fmt.Sprintf("handler=%s confidence=%.2f reason=%s",
		decision.HandlerID, decision.Confidence, decision.Reason)))
	lg.Info("routed", "handler", decision.HandlerID, "confidence", decision.Confidence, "reason", decision.Reason)

	handler, ok := r.opts.Registry.Get(decision.HandlerID)
	if !ok {
		return r.unrouted(rec, decision, traceID, message, rc, lg)
	}

	sc := &StageContext{
		Message: message,
		Request: rc,
		TraceID: traceID,
		Store:   r.opts.Store,
		LLM:     r.opts.LLM,
		Log:     lg,
		rec:     rec,
	}

	// Plan
	rec.emit(StepStart("plan", "interpreting the request"))
	plan := handler.Plan(sc)
	rec.emit(Info("plan.intent", planSummary(plan)))
	rec.emit(StepEnd("plan", "plan ready"))

	// Execute
	rec.emit(StepStart("execute", "running handler "+handler.ID()))
	exec := handler.Execute(ctx, sc, plan)
	normalizeExec(&exec, rec)
	rec.emit(StepEnd("execute", "execution finished"))

	// Artifact record policy
	kept, dropped := r.opts.Policy.Apply(exec.Artifacts)
	if len(dropped) > 0 {
		rec.emit(Warn("artifacts.excluded", "not recorded per policy: "+strings.Join(dropped, ", ")))
	}
	exec.Artifacts = kept

	// Review
	rec.emit(StepStart("review", "evaluating execution"))
	outcome := review.Evaluate(handler.ReviewSpec(), review.Input{
		ExecOK:    exec.OK,
		Summary:   exec.Summary,
		Artifacts: exec.Artifacts,
		ErrorCode: exec.ErrorCode,
	})
	if outcome.Approved {
		rec.emit(Info("review.approved", "all checks passed"))
	} else {
		rec.emit(Warn("review.rejected", strings.Join(outcome.Issues, "; ")))
	}
	rec.emit(StepEnd("review", reviewVerdict(outcome)))

	meta := buildMeta(handler.ID(), traceID, exec, outcome)
	res := Result{
		Text:      finalText(handler.ID(), exec, outcome),
		Artifacts: exec.Artifacts,
		Events:    rec.events,
		Meta:      meta,
	}

	r.record(&res, message, rc, lg)
	return res
}

// unrouted terminates a run that could not be matched to any handler. This
// only happens when the registry is empty — a configuration defect — and is
// kept distinguishable downstream via its error code.
func (r *Runner) unrouted(rec *recorder, decision route.Decision, traceID, message string, rc reqctx.RequestContext, lg *slog.Logger) Result {
	rec.emit(Error("route.unrouted", "no handlers registered; cannot execute"))
	exec := ExecutionResult{
		OK:        false,
		Mode:      "unrouted",
		Summary:   "No task handlers are registered, so the request could not be executed. This indicates a deployment configuration defect, not a problem with the request.",
		LLMStatus: LLMStatusSkipped,
		LLMReason: "not_attempted",
		FileKind:  "none",
		ErrorCode: ErrNoHandlers,
	}
	outcome := review.Outcome{
		Approved: false,
		Issues:   []string{"no handlers registered"},
	}
	meta := buildMeta(decision.HandlerID, traceID, exec, outcome)
	res := Result{
		Text:      exec.Summary,
		Artifacts: nil,
		Events:    rec.events,
		Meta:      meta,
	}
	r.record(&res, message, rc, lg)
	return res
}

func (r *Runner) record(res *Result, message string, rc reqctx.RequestContext, lg *slog.Logger) {
	if r.opts.Audit == nil {
		return
	}
	desc, err := r.opts.Audit.Record(res, message, rc)
	switch {
	case err != nil:
		res.Events = append(res.Events, Warn("audit.failed", "audit export failed: "+err.Error()))
		lg.Warn("audit export failed", "err", err)
	case desc == "":
		res.Events = append(res.Events, Info("audit.disabled", "audit disabled by configuration"))
	default:
		res.Events = append(res.Events, Info("audit.saved", desc))
	}
}

// normalizeExec enforces the result invariants before anything downstream
// reads them.
func normalizeExec(exec *ExecutionResult, rec *recorder) {
	if !exec.OK && exec.ErrorCode == "" {
		exec.ErrorCode = "unknown_error"
		rec.emit(Warn("execute.missing_error_code", "failed execution carried no error code"))
	}
	if exec.LLMStatus == "" {
		exec.LLMStatus = LLMStatusSkipped
		if exec.LLMReason == "" {
			exec.LLMReason = "not_attempted"
		}
	}
	if exec.FileKind == "" {
		exec.FileKind = "unknown"
	}
}

func planSummary(p Plan) string {
	parts := []string{"intent=" + p.Intent}
	if len(p.Assumptions) > 0 {
		parts = append(parts, "assumptions: "+strings.Join(p.Assumptions, "; "))
	}
	if len(p.Constraints) > 0 {
		parts = append(parts, "constraints: "+strings.Join(p.Constraints, "; "))
	}
	return strings.Join(parts, " | ")
}

func reviewVerdict(out review.Outcome) string {
	if out.Approved {
		return "approved"
	}
	return fmt.Sprintf("rejected (%d issues)", len(out.Issues))
}

func finalText(handlerID string, exec ExecutionResult, out review.Outcome) string {
	var b strings.Builder
	b.WriteString(exec.Summary)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "- handler: %s\n", handlerID)
	fmt.Fprintf(&b, "- artifacts: %d\n", len(exec.Artifacts))
	fmt.Fprintf(&b, "- review: %s\n", reviewVerdict(out))
	return b.String()
}
