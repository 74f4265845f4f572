// Package reqctx turns the loosely shaped payload that arrives with a request
// into one canonical, strongly typed context value. Normalization never
// fails: malformed pieces are dropped or defaulted, because upstream capture
// (UI layers, relays) is unreliable by nature.
package reqctx

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultSessionID is the sentinel used when no session id was supplied.
const DefaultSessionID = "-"

// FileRef is the canonical reference to an attached file. Never mutated
// after creation.
type FileRef struct {
	Name string
	Path string
	MIME string
}

// Referencer lets typed values carry their own file reference through the
// payload without the normalizer knowing their concrete type.
type Referencer interface {
	FileRef() FileRef
}

// RequestContext is the canonical per-request context. Built once by
// Normalize, immutable afterward.
type RequestContext struct {
	SessionID string
	Files     []FileRef
	// Extra preserves unrecognized top-level payload keys verbatim.
	Extra map[string]any
}

// Normalize converts a raw payload map (possibly nil) into a RequestContext.
// Recognized keys are "session_id" and "attached_files"; everything else is
// kept under Extra for forward compatibility.
func Normalize(raw map[string]any) RequestContext {
	rc := RequestContext{SessionID: DefaultSessionID}
	if len(raw) == 0 {
		return rc
	}

	rc.SessionID = coerceSessionID(raw["session_id"])

	for _, v := range asSlice(raw["attached_files"]) {
		if ref, ok := coerceFileRef(v); ok {
			rc.Files = append(rc.Files, ref)
		}
	}

	for k, v := range raw {
		if k == "session_id" || k == "attached_files" {
			continue
		}
		if rc.Extra == nil {
			rc.Extra = map[string]any{}
		}
		rc.Extra[k] = v
	}
	return rc
}

func coerceSessionID(v any) string {
	if v == nil {
		return DefaultSessionID
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSessionID
	}
	return s
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []FileRef:
		out := make([]any, 0, len(t))
		for _, f := range t {
			out = append(out, f)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, m := range t {
			out = append(out, m)
		}
		return out
	default:
		return nil
	}
}

// coerceFileRef projects one attached-file entry onto FileRef. Typed access
// is tried first, then key lookup. Entries lacking both name and path are
// dropped (ok=false); a missing name is derived from the path's final
// segment.
func coerceFileRef(v any) (FileRef, bool) {
	var ref FileRef
	switch t := v.(type) {
	case nil:
		return FileRef{}, false
	case FileRef:
		ref = t
	case *FileRef:
		if t == nil {
			return FileRef{}, false
		}
		ref = *t
	case Referencer:
		ref = t.FileRef()
	case map[string]any:
		ref = FileRef{
			Name: stringKey(t, "name"),
			Path: stringKey(t, "path"),
			MIME: stringKey(t, "mime"),
		}
	case map[string]string:
		ref = FileRef{Name: t["name"], Path: t["path"], MIME: t["mime"]}
	default:
		return FileRef{}, false
	}

	ref.Name = strings.TrimSpace(ref.Name)
	ref.Path = strings.TrimSpace(ref.Path)
	ref.MIME = strings.TrimSpace(ref.MIME)
	if ref.Name == "" && ref.Path == "" {
		return FileRef{}, false
	}
	if ref.Name == "" {
		ref.Name = filepath.Base(ref.Path)
	}
	return ref, true
}

func stringKey(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
