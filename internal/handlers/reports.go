package handlers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vsavkov/triage/internal/extract"
)

// reportSections are the headings every analysis report must carry.
var reportSections = []string{"## Summary", "## Insights", "## Actions", "## Caveats"}

// logReportSections relax the shape for log findings, where a scan with no
// anomalies is a legitimate short result.
var logReportSections = []string{"## Summary", "## Actions", "## Caveats"}

// ensureSections appends a stub for any required heading the generated body
// is missing, so downstream readers can rely on the report shape.
func ensureSections(body string, required []string) string {
	var missing []string
	for _, h := range required {
		if !strings.Contains(body, h) {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	for _, h := range missing {
		b.WriteString("\n\n")
		b.WriteString(h)
		b.WriteString("\n- (not provided)")
	}
	return b.String()
}

// markdownPreview renders the first n table rows as a pipe table.
func markdownPreview(t *extract.Table, n int) string {
	if t == nil || len(t.Columns) == 0 {
		return "(no rows)"
	}
	rows := t.Rows
	if len(rows) > n {
		rows = rows[:n]
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.Columns)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(t.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.ReplaceAll(row[i], "|", "\\|")
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if t.RowsTotal > len(rows) {
		fmt.Fprintf(&b, "\n(%d of %d rows shown)\n", len(rows), t.RowsTotal)
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildDataReport(fileName string, t *extract.Table, statusLine, insights string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Data Analysis Report: %s\n\n", fileName)
	b.WriteString("## Dataset\n")
	fmt.Fprintf(&b, "- file: %s\n", fileName)
	fmt.Fprintf(&b, "- shape: %d rows x %d columns\n", t.RowsTotal, len(t.Columns))
	if t.Truncated {
		fmt.Fprintf(&b, "- note: analysis covers the first %d rows\n", len(t.Rows))
	}
	b.WriteString(statusLine + "\n\n")
	b.WriteString("## Preview\n")
	b.WriteString(markdownPreview(t, 10) + "\n\n")
	b.WriteString("## Numeric Profile\n")
	b.WriteString(numericSummaryLines(numericStats(t)) + "\n\n")
	b.WriteString(ensureSections(insights, reportSections))
	b.WriteString("\n")
	return b.String()
}

func buildDocReport(fileName, kind string, pagesRead int, text, statusLine, insights string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Document Analysis Report: %s\n\n", fileName)
	b.WriteString("## Source\n")
	fmt.Fprintf(&b, "- file: %s\n", fileName)
	fmt.Fprintf(&b, "- kind: %s\n", kind)
	if kind == extract.KindPDF {
		fmt.Fprintf(&b, "- pages read: %d\n", pagesRead)
	}
	b.WriteString(statusLine + "\n\n")
	b.WriteString("## Excerpt\n")
	b.WriteString("```\n" + excerpt(text, 1200) + "\n```\n\n")
	b.WriteString(ensureSections(insights, reportSections))
	b.WriteString("\n")
	return b.String()
}

func buildLogReport(sourceName string, text, statusLine, insights string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Log Analysis Report: %s\n\n", sourceName)
	b.WriteString("## Source\n")
	fmt.Fprintf(&b, "- input: %s\n", sourceName)
	fmt.Fprintf(&b, "- chars analyzed: %d\n", len(text))
	b.WriteString(statusLine + "\n\n")
	b.WriteString(ensureSections(insights, logReportSections))
	b.WriteString("\n")
	return b.String()
}

// excerpt keeps the head of s, cut on a rune boundary; documents carry their
// substance up front.
func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}

// tail keeps the end of s, cut on a rune boundary; logs carry the failure at
// the end.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
