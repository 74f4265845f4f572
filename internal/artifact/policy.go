package artifact

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy decides which produced files are recorded as run artifacts. Globs
// match against the artifact name and against its workspace-relative path,
// so both `*.tmp` and `**/scratch/**` style patterns work.
type Policy struct {
	ExcludeGlobs []string
}

// Allows reports whether the ref may be recorded. Invalid patterns never
// exclude anything; policy is a filter, not a gate that can fail a run.
func (p Policy) Allows(a Ref) bool {
	for _, g := range p.ExcludeGlobs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, a.Name); err == nil && ok {
			return false
		}
		if ok, err := doublestar.Match(g, normalizePath(a.Path)); err == nil && ok {
			return false
		}
	}
	return true
}

// Apply filters refs through the policy, returning the kept refs and the
// names of the dropped ones.
func (p Policy) Apply(refs []Ref) (kept []Ref, dropped []string) {
	if len(p.ExcludeGlobs) == 0 {
		return refs, nil
	}
	for _, a := range refs {
		if p.Allows(a) {
			kept = append(kept, a)
		} else {
			dropped = append(dropped, a.Name)
		}
	}
	return kept, dropped
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
