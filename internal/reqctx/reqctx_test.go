package reqctx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type refCarrier struct{ ref FileRef }

func (c refCarrier) FileRef() FileRef { return c.ref }

func TestNormalizeNilAndEmpty(t *testing.T) {
	for _, raw := range []map[string]any{nil, {}} {
		rc := Normalize(raw)
		if rc.SessionID != DefaultSessionID {
			t.Errorf("SessionID = %q, want %q", rc.SessionID, DefaultSessionID)
		}
		if len(rc.Files) != 0 || rc.Extra != nil {
			t.Errorf("unexpected files/extra: %+v", rc)
		}
	}
}

func TestNormalizeAcceptsManyShapes(t *testing.T) {
	raw := map[string]any{
		"session_id": "s-42",
		"attached_files": []any{
			FileRef{Name: "a.csv", Path: "/tmp/a.csv"},
			&FileRef{Path: "/tmp/b.log"},
			refCarrier{ref: FileRef{Name: "c.pdf", Path: "/data/c.pdf", MIME: "application/pdf"}},
			map[string]any{"path": "/tmp/d.txt", "mime": "text/plain"},
			map[string]string{"name": "e.out"},
		},
	}
	rc := Normalize(raw)

	want := []FileRef{
		{Name: "a.csv", Path: "/tmp/a.csv"},
		{Name: "b.log", Path: "/tmp/b.log"},
		{Name: "c.pdf", Path: "/data/c.pdf", MIME: "application/pdf"},
		{Name: "d.txt", Path: "/tmp/d.txt", MIME: "text/plain"},
		{Name: "e.out"},
	}
	if diff := cmp.Diff(want, rc.Files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if rc.SessionID != "s-42" {
		t.Errorf("SessionID = %q", rc.SessionID)
	}
}

func TestNormalizeDropsUnusableEntries(t *testing.T) {
	raw := map[string]any{
		"attached_files": []any{
			nil,
			42,
			map[string]any{"mime": "text/plain"}, // neither name nor path
			map[string]any{"name": "  ", "path": "\t"},
			(*FileRef)(nil),
		},
	}
	rc := Normalize(raw)
	if len(rc.Files) != 0 {
		t.Fatalf("want all entries dropped, got %+v", rc.Files)
	}
}

func TestNormalizeKeepsExtraKeys(t *testing.T) {
	raw := map[string]any{
		"session_id": "x",
		"locale":     "ko-KR",
		"priority":   3,
	}
	rc := Normalize(raw)
	wantExtra := map[string]any{"locale": "ko-KR", "priority": 3}
	if diff := cmp.Diff(wantExtra, rc.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeSessionCoercion(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, DefaultSessionID},
		{"", DefaultSessionID},
		{"  ", DefaultSessionID},
		{"abc", "abc"},
		{" abc ", "abc"},
		{123, "123"},
	}
	for _, tc := range cases {
		rc := Normalize(map[string]any{"session_id": tc.in})
		if rc.SessionID != tc.want {
			t.Errorf("session_id=%v: got %q, want %q", tc.in, rc.SessionID, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := map[string]any{
		"session_id":     "once",
		"attached_files": []any{map[string]any{"path": "/tmp/a.csv"}},
		"tag":            "v",
	}
	first := Normalize(raw)
	second := Normalize(raw)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("normalization not stable (-first +second):\n%s", diff)
	}
}
