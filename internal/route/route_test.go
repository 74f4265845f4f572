package route

import (
	"strings"
	"testing"

	"github.com/vsavkov/triage/internal/reqctx"
)

func ctxWithFile(path string) reqctx.RequestContext {
	return reqctx.Normalize(map[string]any{
		"attached_files": []any{map[string]any{"path": path}},
	})
}

var bothHandlers = []string{DataHandlerID, LogHandlerID}

func TestDecideLogExtension(t *testing.T) {
	for _, path := range []string{"/tmp/trace.log", "/tmp/notes.TXT", "/x/run.out"} {
		d := Decide("please analyze", ctxWithFile(path), bothHandlers, DataHandlerID)
		if d.HandlerID != LogHandlerID {
			t.Errorf("%s: routed to %s, want %s", path, d.HandlerID, LogHandlerID)
		}
		if d.Confidence != 0.95 {
			t.Errorf("%s: confidence = %v, want 0.95", path, d.Confidence)
		}
		if !strings.Contains(d.Reason, "file_ext=") {
			t.Errorf("%s: reason %q does not cite the extension", path, d.Reason)
		}
	}
}

func TestDecideDataExtension(t *testing.T) {
	for _, path := range []string{"/d/report.csv", "/d/book.xlsx", "/d/old.xls", "/d/doc.pdf"} {
		d := Decide("", ctxWithFile(path), bothHandlers, DataHandlerID)
		if d.HandlerID != DataHandlerID || d.Confidence != 0.90 {
			t.Errorf("%s: got (%s, %v), want (%s, 0.90)", path, d.HandlerID, d.Confidence, DataHandlerID)
		}
	}
}

func TestDecideExtensionBeatsKeyword(t *testing.T) {
	// A data extension wins even when the message screams incident.
	d := Decide("error exception timeout", ctxWithFile("/d/report.csv"), bothHandlers, DataHandlerID)
	if d.HandlerID != DataHandlerID {
		t.Fatalf("routed to %s, want %s", d.HandlerID, DataHandlerID)
	}
}

func TestDecideIncidentKeywords(t *testing.T) {
	for _, msg := range []string{
		"we saw an ERROR in prod",
		"java.lang.Exception at line 3",
		"연결 오류가 발생했습니다",
		"서비스 장애 보고",
	} {
		d := Decide(msg, reqctx.RequestContext{}, bothHandlers, DataHandlerID)
		if d.HandlerID != LogHandlerID || d.Confidence != 0.80 {
			t.Errorf("%q: got (%s, %v), want (%s, 0.80)", msg, d.HandlerID, d.Confidence, LogHandlerID)
		}
		if !strings.Contains(d.Reason, "keyword_match=") {
			t.Errorf("%q: reason %q does not cite the keyword", msg, d.Reason)
		}
	}
}

func TestDecideDefaultFallback(t *testing.T) {
	d := Decide("summarize this please", reqctx.RequestContext{}, bothHandlers, DataHandlerID)
	if d.HandlerID != DataHandlerID || d.Confidence != 0.60 {
		t.Fatalf("got (%s, %v), want (%s, 0.60)", d.HandlerID, d.Confidence, DataHandlerID)
	}
}

func TestDecideFirstAvailableFallback(t *testing.T) {
	// Default id not registered: first available wins at lower confidence.
	d := Decide("hello", reqctx.RequestContext{}, []string{LogHandlerID}, DataHandlerID)
	if d.HandlerID != LogHandlerID || d.Confidence != 0.55 {
		t.Fatalf("got (%s, %v), want (%s, 0.55)", d.HandlerID, d.Confidence, LogHandlerID)
	}
}

func TestDecideNoHandlers(t *testing.T) {
	d := Decide("hello", reqctx.RequestContext{}, nil, DataHandlerID)
	if d.HandlerID != UnroutedHandlerID || d.Confidence != 0.10 {
		t.Fatalf("got (%s, %v), want (%s, 0.10)", d.HandlerID, d.Confidence, UnroutedHandlerID)
	}
}

func TestDecideMembership(t *testing.T) {
	// Whatever the inputs, the decision targets the available set unless it
	// is the hardcoded unrouted branch.
	msgs := []string{"", "error", "summarize", "오류"}
	ctxs := []reqctx.RequestContext{
		{}, ctxWithFile("/a.log"), ctxWithFile("/a.csv"), ctxWithFile("/a.zip"),
	}
	avails := [][]string{nil, {DataHandlerID}, {LogHandlerID}, bothHandlers}
	for _, msg := range msgs {
		for _, rc := range ctxs {
			for _, avail := range avails {
				d := Decide(msg, rc, avail, DataHandlerID)
				if d.HandlerID == UnroutedHandlerID {
					if len(avail) != 0 {
						t.Errorf("unrouted with non-empty available set %v", avail)
					}
					continue
				}
				found := false
				for _, id := range avail {
					if id == d.HandlerID {
						found = true
					}
				}
				if !found {
					t.Errorf("decision %q outside available set %v (msg=%q)", d.HandlerID, avail, msg)
				}
			}
		}
	}
}

func TestDecideNameOnlyAttachment(t *testing.T) {
	// Normalization admits attachments that carry a name but no path; the
	// extension rules still apply to them.
	rc := reqctx.Normalize(map[string]any{
		"attached_files": []any{map[string]any{"name": "trace.log"}},
	})
	d := Decide("please check", rc, bothHandlers, DataHandlerID)
	if d.HandlerID != LogHandlerID || d.Confidence != 0.95 {
		t.Fatalf("got (%s, %v), want (%s, 0.95)", d.HandlerID, d.Confidence, LogHandlerID)
	}

	rc = reqctx.Normalize(map[string]any{
		"attached_files": []any{map[string]any{"name": "report.csv"}},
	})
	d = Decide("", rc, bothHandlers, DataHandlerID)
	if d.HandlerID != DataHandlerID || d.Confidence != 0.90 {
		t.Fatalf("got (%s, %v), want (%s, 0.90)", d.HandlerID, d.Confidence, DataHandlerID)
	}
}

func TestDecideUnknownExtensionFallsThrough(t *testing.T) {
	d := Decide("please check", ctxWithFile("/tmp/archive.zip"), bothHandlers, DataHandlerID)
	if d.HandlerID != DataHandlerID || d.Confidence != 0.60 {
		t.Fatalf("got (%s, %v), want default fallback", d.HandlerID, d.Confidence)
	}
}
