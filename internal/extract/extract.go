// Package extract is the single entry point for turning an attached file
// into usable data. Load returns a tagged Result: consumers switch on Kind
// and never look at payload fields the kind does not promise. Load never
// panics and never returns an error value; failures are encoded in the
// Result with one code from the closed set.
package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	KindText    = "text"
	KindCSV     = "csv"
	KindPDF     = "pdf"
	KindUnknown = "unknown"
)

const (
	ErrFileNotFound    = "file_not_found"
	ErrUnsupportedType = "unsupported_type"
	ErrLoadFailed      = "load_failed"
)

// Table is the structured payload for tabular kinds.
type Table struct {
	Columns   []string
	Rows      [][]string
	RowsTotal int
	Truncated bool
}

// Result is the tagged outcome of one extraction.
//   - Kind=text: Text (+TextTruncated)
//   - Kind=csv:  Table
//   - Kind=pdf:  Text, PagesRead
//
// LastErr carries diagnostics only and is never shown to end users.
type Result struct {
	OK      bool
	Kind    string
	Summary string
	Error   string
	LastErr string

	Text          string
	TextTruncated bool
	PagesRead     int
	Table         *Table
}

type Options struct {
	MaxRows      int
	PDFMaxPages  int
	TextMaxChars int
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = 5000
	}
	if o.PDFMaxPages <= 0 {
		o.PDFMaxPages = 1
	}
	if o.TextMaxChars <= 0 {
		o.TextMaxChars = 20_000
	}
	return o
}

// Load extracts the file at path with default options.
func Load(path string) Result {
	return LoadWithOptions(path, Options{})
}

func LoadWithOptions(path string, opts Options) (res Result) {
	opts = opts.withDefaults()

	// The pdf reader is known to panic on malformed input; fold that into
	// the load_failed code like any other extraction failure.
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				OK:      false,
				Kind:    res.Kind,
				Summary: "file load failed",
				Error:   ErrLoadFailed,
				LastErr: fmt.Sprint(r),
			}
		}
	}()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{OK: false, Kind: KindUnknown, Summary: "file not found", Error: ErrFileNotFound, LastErr: path}
		}
		return Result{OK: false, Kind: KindUnknown, Summary: "file load failed", Error: ErrLoadFailed, LastErr: err.Error()}
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".log", ".txt", ".out":
		return loadText(path, opts)
	case ".csv":
		return loadCSV(path, opts)
	case ".pdf":
		return loadPDF(path, opts)
	default:
		return Result{OK: false, Kind: KindUnknown, Summary: "unsupported file type", Error: ErrUnsupportedType, LastErr: ext}
	}
}

// loadText reads the tail of a plain-text file, keeping the most recent
// TextMaxChars. Tail wins over head because log files carry the failure at
// the end.
func loadText(path string, opts Options) Result {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{OK: false, Kind: KindText, Summary: "file load failed", Error: ErrLoadFailed, LastErr: err.Error()}
	}
	text := string(b)
	truncated := false
	if len(text) > opts.TextMaxChars {
		start := len(text) - opts.TextMaxChars
		// keep the cut on a rune boundary
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
		text = text[start:]
		truncated = true
	}
	return Result{
		OK:            true,
		Kind:          KindText,
		Summary:       fmt.Sprintf("loaded text: chars=%d truncated=%t", len(text), truncated),
		Text:          text,
		TextTruncated: truncated,
	}
}

func loadCSV(path string, opts Options) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{OK: false, Kind: KindCSV, Summary: "file load failed", Error: ErrLoadFailed, LastErr: err.Error()}
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return Result{OK: false, Kind: KindCSV, Summary: "file load failed", Error: ErrLoadFailed, LastErr: "empty csv"}
		}
		return Result{OK: false, Kind: KindCSV, Summary: "file load failed", Error: ErrLoadFailed, LastErr: err.Error()}
	}
	cols := make([]string, len(header))
	for i, c := range header {
		cols[i] = strings.TrimSpace(c)
	}

	t := &Table{Columns: cols}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{OK: false, Kind: KindCSV, Summary: "file load failed", Error: ErrLoadFailed, LastErr: err.Error()}
		}
		t.RowsTotal++
		if len(t.Rows) < opts.MaxRows {
			t.Rows = append(t.Rows, rec)
		} else {
			t.Truncated = true
		}
	}

	return Result{
		OK:      true,
		Kind:    KindCSV,
		Summary: fmt.Sprintf("loaded csv: shape=%dx%d truncated=%t", t.RowsTotal, len(t.Columns), t.Truncated),
		Table:   t,
	}
}

func loadPDF(path string, opts Options) Result {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{OK: false, Kind: KindPDF, Summary: "file load failed", Error: ErrLoadFailed, LastErr: err.Error()}
	}
	defer func() { _ = f.Close() }()

	var parts []string
	pages := r.NumPage()
	read := 0
	for i := 1; i <= pages && read < opts.PDFMaxPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		read++
		if s := strings.TrimSpace(text); s != "" {
			parts = append(parts, s)
		}
	}

	joined := strings.Join(parts, "\n\n")
	if joined == "" {
		joined = "(no extractable text; possibly a scanned document)"
	}
	return Result{
		OK:        true,
		Kind:      KindPDF,
		Summary:   fmt.Sprintf("loaded pdf: pages=%d", read),
		Text:      joined,
		PagesRead: read,
	}
}
