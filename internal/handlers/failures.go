package handlers

import (
	"fmt"
	"strings"

	"github.com/vsavkov/triage/internal/extract"
	"github.com/vsavkov/triage/internal/pipeline"
	"github.com/vsavkov/triage/internal/reqctx"
)

// failedExtraction folds an extraction failure into a complete execution
// result: a remediation artifact, a mapped error code and ok=false. The gate
// then rejects the run on the execution failure, with the artifact preserved
// so the user still sees what to do next.
func failedExtraction(sc *pipeline.StageContext, title string, f reqctx.FileRef, res extract.Result) pipeline.ExecutionResult {
	code := pipeline.ErrFileLoadFailed
	mode := "load_failed"
	if res.Error == extract.ErrUnsupportedType {
		code = pipeline.ErrUnsupportedFileKind
		mode = "unsupported"
	}
	sc.Emit(pipeline.Error("execute.extract_failed", fmt.Sprintf("file=%s code=%s", f.Name, res.Error)))

	exec := pipeline.ExecutionResult{
		OK:        false,
		Mode:      mode,
		Summary:   failureSummary(code, f),
		LLMStatus: pipeline.LLMStatusSkipped,
		LLMReason: "extraction_failed",
		FileKind:  res.Kind,
		ErrorCode: code,
	}

	body := failureReport(title, f, code, res)
	if sc.Store != nil {
		if ref, err := sc.Store.SaveMarkdown(title+" (failed)", body); err != nil {
			sc.Emit(pipeline.Error("execute.artifact_failed", "could not save failure note: "+err.Error()))
		} else {
			exec.Artifacts = append(exec.Artifacts, ref)
		}
	}
	return exec
}

func failureSummary(code string, f reqctx.FileRef) string {
	if code == pipeline.ErrUnsupportedFileKind {
		return fmt.Sprintf("The attached file %s is an unsupported file kind and was not analyzed. Supported formats are .csv, .pdf, .log, .txt and .out; please convert or re-export the file.", f.Name)
	}
	return fmt.Sprintf("The attached file %s could not be loaded, so no analysis was produced. Check that the path is reachable from this service and that the file is not corrupted.", f.Name)
}

func failureReport(title string, f reqctx.FileRef, code string, res extract.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", title, f.Name)
	b.WriteString("## What happened\n")
	fmt.Fprintf(&b, "- file: %s\n", f.Name)
	fmt.Fprintf(&b, "- error: %s\n\n", code)
	b.WriteString("## How to fix it\n")
	if code == pipeline.ErrUnsupportedFileKind {
		b.WriteString("- Convert the file to one of the supported formats: .csv, .pdf, .log, .txt, .out.\n")
		b.WriteString("- Spreadsheets (.xlsx/.xls) should be re-exported as CSV.\n")
		b.WriteString("- Archives should be expanded and the relevant inner file attached directly.\n")
	} else {
		b.WriteString("- Verify the file path is reachable from this service.\n")
		b.WriteString("- Re-upload the file; partial uploads and corrupted files fail to parse.\n")
		b.WriteString("- If the file is very large, attach a trimmed extract around the part that matters.\n")
	}
	if res.LastErr != "" {
		b.WriteString("\n## Diagnostics\n")
		b.WriteString("```\n" + res.LastErr + "\n```\n")
	}
	return b.String()
}
