// Package review is the quality gate that evaluates a completed execution
// against a declarative spec. All checks run and issues accumulate — a
// single pass can surface every problem at once. Evaluation is pure and
// deterministic; it never mutates the execution it inspects.
package review

import (
	"fmt"
	"strings"

	"github.com/vsavkov/triage/internal/artifact"
)

// Spec declares what an approved execution must look like. The gate itself
// is generic; handlers supply the values.
type Spec struct {
	RequireArtifacts bool
	MinArtifacts     int
	RequireMarkdown  bool
	MarkdownMinChars int

	DisallowPlaceholders bool
	PlaceholderMarkers   []string

	// AllowApproveWhenExecFailed lets a failed execution still pass, for
	// handlers where a well-formed failure report is an acceptable outcome.
	AllowApproveWhenExecFailed bool
}

// DefaultSpec is the baseline gate shared by report-producing handlers.
func DefaultSpec() Spec {
	return Spec{
		RequireArtifacts:     true,
		MinArtifacts:         1,
		RequireMarkdown:      true,
		MarkdownMinChars:     80,
		DisallowPlaceholders: true,
		PlaceholderMarkers:   DefaultPlaceholderMarkers(),
	}
}

// DefaultPlaceholderMarkers lists substrings whose presence means the report
// body is a generic failure/empty-result notice rather than substance.
func DefaultPlaceholderMarkers() []string {
	return []string{
		"no extractable text",
		"unsupported file kind",
		"file could not be loaded",
		"unknown_error",
	}
}

// Input flattens the execution fields the gate reads.
type Input struct {
	ExecOK    bool
	Summary   string
	Artifacts []artifact.Ref
	ErrorCode string
}

// Outcome is the gate's verdict. Approved is true exactly when no issues
// were found.
type Outcome struct {
	Approved  bool
	Issues    []string
	Followups []string
}

// Evaluate runs every check in order. Issues accumulate without
// short-circuiting, except that the length check is skipped once the
// missing-markdown issue fired (the second finding would be noise).
func Evaluate(spec Spec, in Input) Outcome {
	var issues, followups []string

	if !in.ExecOK && !spec.AllowApproveWhenExecFailed {
		issues = append(issues, "execution finished in a failed state")
		if in.ErrorCode != "" {
			issues = append(issues, fmt.Sprintf("- error_code: %s", in.ErrorCode))
		}
		followups = append(followups, "check the error code and event log, then verify the input file and settings")
	}

	if spec.RequireArtifacts && len(in.Artifacts) < spec.MinArtifacts {
		issues = append(issues, fmt.Sprintf("not enough artifacts (min=%d, actual=%d)", spec.MinArtifacts, len(in.Artifacts)))
		followups = append(followups, "re-upload the input file and retry the same request")
	}

	markdownMissing := false
	if spec.RequireMarkdown {
		found := false
		for _, a := range in.Artifacts {
			if artifact.IsMarkdown(a) {
				found = true
				break
			}
		}
		if !found {
			markdownMissing = true
			issues = append(issues, "no markdown report artifact was produced")
		}
	}

	if spec.RequireMarkdown && spec.MarkdownMinChars > 0 && !markdownMissing {
		if len(in.Summary) < spec.MarkdownMinChars {
			issues = append(issues, fmt.Sprintf("report text is too short (len<%d)", spec.MarkdownMinChars))
			followups = append(followups, "check whether the input was empty or the loader returned only a preview")
		}
	}

	if spec.DisallowPlaceholders && in.Summary != "" {
		low := strings.ToLower(in.Summary)
		for _, m := range spec.PlaceholderMarkers {
			if m == "" {
				continue
			}
			if strings.Contains(low, strings.ToLower(m)) {
				issues = append(issues, fmt.Sprintf("report looks like a placeholder/error notice (marker=%q)", m))
				followups = append(followups, "verify that real data was loaded and extracted, then re-upload the file")
				break
			}
		}
	}

	return Outcome{
		Approved:  len(issues) == 0,
		Issues:    issues,
		Followups: followups,
	}
}
