package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestSaveMarkdown(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreAt(dir, fixedClock)

	ref, err := s.SaveMarkdown("Data Analysis report.csv", "# body\n")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Kind != KindMarkdown || ref.MIMEType != "text/markdown" {
		t.Fatalf("ref = %+v", ref)
	}
	wantName := "20260314T092653Z__Data Analysis report.csv.md"
	if ref.Name != wantName {
		t.Fatalf("name = %q, want %q", ref.Name, wantName)
	}
	b, err := os.ReadFile(ref.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "# body\n" {
		t.Fatalf("content = %q", b)
	}
}

func TestSaveMarkdownSanitizesTitle(t *testing.T) {
	s := NewStoreAt(t.TempDir(), fixedClock)
	ref, err := s.SaveMarkdown(`a/b\c:d?e`, "x")
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(filepath.Base(ref.Path), `/\:?`) {
		t.Fatalf("unsafe characters survived: %q", ref.Name)
	}
}

func TestNewStorePlacesArtifactsUnderWorkspace(t *testing.T) {
	s := NewStore(filepath.Join("ws", "run1"))
	want := filepath.Join("ws", "run1", "artifacts")
	if s.Dir() != want {
		t.Fatalf("dir = %q, want %q", s.Dir(), want)
	}
}

func TestIsMarkdown(t *testing.T) {
	cases := []struct {
		ref  Ref
		want bool
	}{
		{Ref{Kind: KindMarkdown}, true},
		{Ref{Kind: KindFile, MIMEType: "text/markdown; charset=utf-8"}, true},
		{Ref{Kind: KindFile, Path: "/w/report.MD"}, true},
		{Ref{Kind: KindFile, Name: "notes.md"}, true},
		{Ref{Kind: KindFile, Name: "notes.txt"}, false},
		{Ref{Kind: KindImage, Path: "/w/plot.png"}, false},
	}
	for _, tc := range cases {
		if got := IsMarkdown(tc.ref); got != tc.want {
			t.Errorf("IsMarkdown(%+v) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

func TestPolicyApply(t *testing.T) {
	p := Policy{ExcludeGlobs: []string{"*.tmp", "**/scratch/**"}}
	refs := []Ref{
		{Name: "report.md", Path: "/w/artifacts/report.md"},
		{Name: "x.tmp", Path: "/w/artifacts/x.tmp"},
		{Name: "keep.md", Path: `C:\w\scratch\keep.md`},
	}
	kept, dropped := p.Apply(refs)

	wantKept := []Ref{refs[0]}
	if diff := cmp.Diff(wantKept, kept); diff != "" {
		t.Fatalf("kept mismatch (-want +got):\n%s", diff)
	}
	wantDropped := []string{"x.tmp", "keep.md"}
	if diff := cmp.Diff(wantDropped, dropped); diff != "" {
		t.Fatalf("dropped mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyEmptyIsPassthrough(t *testing.T) {
	refs := []Ref{{Name: "a.md"}, {Name: "b.tmp"}}
	kept, dropped := Policy{}.Apply(refs)
	if len(kept) != 2 || dropped != nil {
		t.Fatalf("kept=%v dropped=%v", kept, dropped)
	}
}

func TestPolicyInvalidPatternNeverExcludes(t *testing.T) {
	p := Policy{ExcludeGlobs: []string{"[unclosed"}}
	if !p.Allows(Ref{Name: "anything.md", Path: "/w/anything.md"}) {
		t.Fatal("invalid pattern excluded an artifact")
	}
}
