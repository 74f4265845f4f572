package pipeline

import "github.com/vsavkov/triage/internal/review"

// MetaSchemaVersion tags the outcome contract. Consumers pin on this.
const MetaSchemaVersion = "meta.v1"

type LLMMeta struct {
	Used   bool   `json:"used"`
	Status string `json:"status"`
	Reason string `json:"reason"`
	Model  string `json:"model"`
}

type ReviewMeta struct {
	Issues    []string `json:"issues"`
	Followups []string `json:"followups"`
}

// MetaRecord is the run's canonical outcome contract, built exactly once per
// run. Every field is always present — consumers never branch on key
// absence — so nothing here carries omitempty.
type MetaRecord struct {
	SchemaVersion  string     `json:"schema_version"`
	HandlerID      string     `json:"handler_id"`
	Mode           string     `json:"mode"`
	Approved       bool       `json:"approved"`
	FileKind       string     `json:"file_kind"`
	ArtifactsCount int        `json:"artifacts_count"`
	ErrorCode      string     `json:"error_code"`
	LLM            LLMMeta    `json:"llm"`
	Review         ReviewMeta `json:"review"`
	TraceID        string     `json:"trace_id"`
}

func buildMeta(handlerID, traceID string, exec ExecutionResult, outcome review.Outcome) MetaRecord {
	issues := outcome.Issues
	if issues == nil {
		issues = []string{}
	}
	followups := outcome.Followups
	if followups == nil {
		followups = []string{}
	}
	return MetaRecord{
		SchemaVersion:  MetaSchemaVersion,
		HandlerID:      handlerID,
		Mode:           exec.Mode,
		Approved:       outcome.Approved,
		FileKind:       exec.FileKind,
		ArtifactsCount: len(exec.Artifacts),
		ErrorCode:      exec.ErrorCode,
		LLM: LLMMeta{
			Used:   exec.LLMUsed,
			Status: exec.LLMStatus,
			Reason: exec.LLMReason,
			Model:  exec.LLMModel,
		},
		Review: ReviewMeta{
			Issues:    issues,
			Followups: followups,
		},
		TraceID: traceID,
	}
}
