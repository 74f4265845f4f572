package handlers

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/vsavkov/triage/internal/extract"
)

// columnStats is a numeric profile of one table column.
type columnStats struct {
	Name  string
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P50   float64
	Max   float64
}

// numericStats profiles every column whose non-empty values all parse as
// numbers. Columns with no values at all are skipped.
func numericStats(t *extract.Table) []columnStats {
	if t == nil || len(t.Columns) == 0 {
		return nil
	}
	var out []columnStats
	for i, name := range t.Columns {
		var vals []float64
		numeric := true
		for _, row := range t.Rows {
			if i >= len(row) {
				continue
			}
			s := strings.TrimSpace(row[i])
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				numeric = false
				break
			}
			vals = append(vals, f)
		}
		if !numeric || len(vals) == 0 {
			continue
		}
		out = append(out, profile(name, vals))
	}
	return out
}

func profile(name string, vals []float64) columnStats {
	cs := columnStats{Name: name, Count: len(vals)}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	cs.Min = sorted[0]
	cs.Max = sorted[len(sorted)-1]
	cs.P50 = sorted[len(sorted)/2]

	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	cs.Mean = sum / float64(len(vals))

	if len(vals) > 1 {
		ss := 0.0
		for _, v := range vals {
			d := v - cs.Mean
			ss += d * d
		}
		cs.Std = math.Sqrt(ss / float64(len(vals)-1))
	}
	return cs
}

// numericSummaryLines renders the profile the way the report's numeric
// section expects it.
func numericSummaryLines(stats []columnStats) string {
	if len(stats) == 0 {
		return "(no numeric columns)"
	}
	var b strings.Builder
	for _, cs := range stats {
		fmt.Fprintf(&b, "- %s: mean=%.3f, std=%.3f, min=%.3f, p50=%.3f, max=%.3f\n",
			cs.Name, cs.Mean, cs.Std, cs.Min, cs.P50, cs.Max)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ruleBasedTableInsights produces the deterministic insight sections used
// when no generated insights are available. Pure transform; never fails.
func ruleBasedTableInsights(t *extract.Table) string {
	stats := numericStats(t)

	var insights, actions, caveats []string

	if len(stats) > 0 {
		ranked := append([]columnStats(nil), stats...)
		sort.Slice(ranked, func(i, j int) bool {
			return (ranked[i].Max - ranked[i].Min) > (ranked[j].Max - ranked[j].Min)
		})
		limit := 2
		if len(ranked) < limit {
			limit = len(ranked)
		}
		for _, cs := range ranked[:limit] {
			insights = append(insights, fmt.Sprintf(
				"- `%s` shows the widest spread: min=%.3f, p50=%.3f, max=%.3f (mean=%.3f).",
				cs.Name, cs.Min, cs.P50, cs.Max, cs.Mean))
		}
		top := ranked[0]
		actions = append(actions, fmt.Sprintf(
			"- Extract the records at the extremes of `%s` and cross-tabulate them against the categorical columns.", top.Name))
	} else {
		insights = append(insights, "- No numeric columns were found, so quantitative insights are limited.")
		actions = append(actions, "- Build the report around frequency and trend analysis of the categorical columns.")
	}

	if shares := topCategoricalShares(t, 3); len(shares) > 0 {
		insights = append(insights, shares...)
	}

	caveats = append(caveats,
		"- These findings are rule-based; validate them against domain context (ownership, seasonality, deployments).")

	return strings.Join([]string{
		"## Summary",
		"- Profiled the uploaded table and scanned for dominant patterns.",
		"",
		"## Insights",
		strings.Join(insights, "\n"),
		"",
		"## Actions",
		strings.Join(actions, "\n"),
		"",
		"## Caveats",
		strings.Join(caveats, "\n"),
	}, "\n")
}

// topCategoricalShares reports the dominant values of low-cardinality
// non-numeric columns. High-cardinality columns (ids, dates) are skipped.
func topCategoricalShares(t *extract.Table, k int) []string {
	if t == nil || len(t.Rows) == 0 {
		return nil
	}
	numeric := map[string]bool{}
	for _, cs := range numericStats(t) {
		numeric[cs.Name] = true
	}

	var out []string
	for i, name := range t.Columns {
		if numeric[name] {
			continue
		}
		counts := map[string]int{}
		total := 0
		for _, row := range t.Rows {
			if i >= len(row) {
				continue
			}
			counts[row[i]]++
			total++
		}
		if total == 0 || len(counts)*2 > total {
			// unique-ish column; not a useful category
			continue
		}
		type kv struct {
			val string
			n   int
		}
		ranked := make([]kv, 0, len(counts))
		for v, n := range counts {
			ranked = append(ranked, kv{v, n})
		}
		sort.Slice(ranked, func(a, b int) bool {
			if ranked[a].n != ranked[b].n {
				return ranked[a].n > ranked[b].n
			}
			return ranked[a].val < ranked[b].val
		})
		if len(ranked) > k {
			ranked = ranked[:k]
		}
		parts := make([]string, 0, len(ranked))
		for _, e := range ranked {
			parts = append(parts, fmt.Sprintf("%s (%.1f%%)", e.val, float64(e.n)/float64(total)*100))
		}
		out = append(out, fmt.Sprintf("- `%s` is dominated by: %s.", name, strings.Join(parts, ", ")))
		if len(out) >= k {
			break
		}
	}
	return out
}

// logKeywords are the error signals scanned for by the rule-based log
// summarizer. Kept in sync with the router's incident vocabulary.
var logKeywords = []string{
	"exception", "error", "stacktrace", "traceback", "caused by",
	"timeout", "pkix", "ssl", "connection",
}

// ruleBasedLogInsights scans log text for error signals and emits a findings
// report. Pure transform; never fails.
func ruleBasedLogInsights(text string) string {
	lowered := strings.ToLower(text)
	var hits []string
	for _, k := range logKeywords {
		if strings.Contains(lowered, k) {
			hits = append(hits, k)
		}
	}

	var b strings.Builder
	b.WriteString("## Summary\n")
	b.WriteString("- Scanned the provided log/text for error signals.\n")
	if len(hits) > 0 {
		fmt.Fprintf(&b, "- Detected keywords: %s\n", strings.Join(hits, ", "))
	} else {
		b.WriteString("- No clear error keywords were detected.\n")
	}
	b.WriteString("\n## Actions\n")
	b.WriteString("- Capture the surrounding log window (200-500 lines) around the failure timestamps.\n")
	b.WriteString("- Read the bottom of the `Exception / Caused by` chain first; that is usually the root cause.\n")
	b.WriteString("- For network/SSL signals, check proxy settings, internal certificates and CRL policy before anything else.\n")
	b.WriteString("\n## Caveats\n")
	b.WriteString("- These findings are rule-based; confirm them against service topology, versions and recent deployments.\n")
	return b.String()
}
