// Package route maps an incoming message plus its request context to a
// handler id. Decide is a pure function: no I/O, strict rule order, and the
// returned handler is always a member of the caller-supplied available set
// except for the final hardcoded branch, which signals that no handlers are
// registered at all.
package route

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vsavkov/triage/internal/reqctx"
)

// Decision records where a request was routed and why. Informational after
// routing; it gates nothing by itself.
type Decision struct {
	HandlerID  string  `json:"handler_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const (
	// LogHandlerID and DataHandlerID are the well-known handler ids the
	// rules below may target when present in the available set.
	LogHandlerID  = "logcop"
	DataHandlerID = "dia"

	// UnroutedHandlerID is returned only when the available set is empty.
	// Seeing it downstream means a configuration defect, not a bad request.
	UnroutedHandlerID = "unrouted"
)

var logExts = map[string]bool{
	".log": true,
	".txt": true,
	".out": true,
}

var dataExts = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
	".pdf":  true,
}

// incidentKeywords is the bilingual error/incident vocabulary that pulls a
// message toward log analysis.
var incidentKeywords = []string{
	"error", "exception", "stacktrace", "traceback", "caused by",
	"timeout", "pkix", "ssl", "connection",
	"에러", "오류", "예외", "원인", "장애", "실패",
}

// Decide evaluates the rules in strict priority order, first match wins.
func Decide(message string, rc reqctx.RequestContext, available []string, defaultID string) Decision {
	ext := ""
	if len(rc.Files) > 0 {
		f := rc.Files[0]
		ext = strings.ToLower(filepath.Ext(f.Path))
		// name-only attachments still carry a usable extension
		if ext == "" {
			ext = strings.ToLower(filepath.Ext(f.Name))
		}
	}

	if ext != "" {
		if logExts[ext] && contains(available, LogHandlerID) {
			return Decision{
				HandlerID:  LogHandlerID,
				Confidence: 0.95,
				Reason:     fmt.Sprintf("file_ext=%s -> %s", ext, LogHandlerID),
			}
		}
		if dataExts[ext] && contains(available, DataHandlerID) {
			return Decision{
				HandlerID:  DataHandlerID,
				Confidence: 0.90,
				Reason:     fmt.Sprintf("file_ext=%s -> %s", ext, DataHandlerID),
			}
		}
	}

	if kw := matchKeyword(message); kw != "" && contains(available, LogHandlerID) {
		return Decision{
			HandlerID:  LogHandlerID,
			Confidence: 0.80,
			Reason:     fmt.Sprintf("keyword_match=%q -> %s", kw, LogHandlerID),
		}
	}

	if contains(available, defaultID) {
		return Decision{HandlerID: defaultID, Confidence: 0.60, Reason: "fallback default handler"}
	}
	if len(available) > 0 {
		return Decision{HandlerID: available[0], Confidence: 0.55, Reason: "fallback first available handler"}
	}
	return Decision{HandlerID: UnroutedHandlerID, Confidence: 0.10, Reason: "no handlers registered"}
}

func matchKeyword(message string) string {
	msg := strings.ToLower(message)
	for _, kw := range incidentKeywords {
		if strings.Contains(msg, kw) {
			return kw
		}
	}
	return ""
}

func contains(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
