// Package audit persists one record per finished run: a standalone snapshot
// file plus an append-only jsonl index, sharing one timestamp and trace id.
// Recording is strictly best-effort; a failure here never affects the run's
// user-visible outcome.
package audit

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/blake3"

	"github.com/vsavkov/triage/internal/artifact"
	"github.com/vsavkov/triage/internal/pipeline"
	"github.com/vsavkov/triage/internal/reqctx"
)

// SchemaVersion tags every audit entry.
const SchemaVersion = "audit.v1"

// IndexFile is the append-only per-line index next to the snapshots.
const IndexFile = "audit.jsonl"

// maxEventNames bounds the event-name digest carried per entry.
const maxEventNames = 30

//go:embed audit_schema.json
var schemaJSON string

// entrySchema validates entries before they are written. A violation is a
// defect in this package, reported as a warning; the entry is still written.
var entrySchema = jsonschema.MustCompileString("audit.v1.json", schemaJSON)

type Options struct {
	Enabled bool
	Dir     string

	// StoreMessage opts the full request text into the record; the bounded
	// preview is always kept.
	StoreMessage  bool
	MessageMaxLen int

	// StoreFilePaths keeps attachment paths in the record. Disable when
	// paths themselves are sensitive.
	StoreFilePaths bool
}

type HandlerInfo struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`
}

type OutcomeInfo struct {
	Approved  bool             `json:"approved"`
	ErrorCode string           `json:"error_code"`
	LLM       pipeline.LLMMeta `json:"llm"`
}

type FileInfo struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	MIME string `json:"mime,omitempty"`
}

type RequestInfo struct {
	SessionID      string     `json:"session_id"`
	MessageLen     int        `json:"message_len"`
	MessagePreview string     `json:"message_preview"`
	Message        string     `json:"message,omitempty"`
	Files          []FileInfo `json:"files"`
}

type ArtifactInfo struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Digest string `json:"digest,omitempty"`
}

type EventsSummary struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

// Entry is one audit record. The snapshot file and the jsonl line carry the
// same bytes.
type Entry struct {
	SchemaVersion string              `json:"schema_version"`
	TS            string              `json:"ts"`
	TraceID       string              `json:"trace_id"`
	Handler       HandlerInfo         `json:"handler"`
	Outcome       OutcomeInfo         `json:"outcome"`
	Request       RequestInfo         `json:"request"`
	Artifacts     []ArtifactInfo      `json:"artifacts"`
	Events        EventsSummary       `json:"events_summary"`
	Meta          pipeline.MetaRecord `json:"meta"`
}

// Builder assembles and writes audit records. It implements
// pipeline.AuditSink.
type Builder struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

func NewBuilder(opts Options, log *slog.Logger) *Builder {
	if opts.MessageMaxLen <= 0 {
		opts.MessageMaxLen = 200
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{opts: opts, log: log, now: time.Now}
}

// NewBuilderAt is like NewBuilder but takes a clock, for tests.
func NewBuilderAt(opts Options, log *slog.Logger, now func() time.Time) *Builder {
	b := NewBuilder(opts, log)
	if now != nil {
		b.now = now
	}
	return b
}

// Record writes the run's snapshot and index line. It returns a short
// description of what was written, or ("", nil) when auditing is disabled.
// It never panics; any failure comes back as the error.
func (b *Builder) Record(res *pipeline.Result, message string, rc reqctx.RequestContext) (desc string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit: %v", r)
		}
	}()

	if !b.opts.Enabled {
		return "", nil
	}

	ts := b.now().UTC()
	entry := b.build(res, message, rc, ts)

	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("audit: marshal entry: %w", err)
	}
	b.validate(raw, entry.TraceID)

	if err := os.MkdirAll(b.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("audit: create dir: %w", err)
	}

	name := fmt.Sprintf("%s__%s__%s.json",
		artifact.Timestamp(ts),
		artifact.SafeFilename(entry.Handler.ID),
		artifact.SafeFilename(entry.TraceID))
	snapshot := filepath.Join(b.opts.Dir, name)

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		err = os.WriteFile(snapshot, pretty.Bytes(), 0o644)
	} else {
		err = os.WriteFile(snapshot, raw, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("audit: write snapshot: %w", err)
	}

	if err := appendLine(filepath.Join(b.opts.Dir, IndexFile), raw); err != nil {
		return "", fmt.Errorf("audit: append index: %w", err)
	}
	return name, nil
}

func (b *Builder) build(res *pipeline.Result, message string, rc reqctx.RequestContext, ts time.Time) Entry {
	req := RequestInfo{
		SessionID:      rc.SessionID,
		MessageLen:     len(message),
		MessagePreview: preview(message, b.opts.MessageMaxLen),
		Files:          []FileInfo{},
	}
	if b.opts.StoreMessage {
		req.Message = message
	}
	for _, f := range rc.Files {
		fi := FileInfo{Name: f.Name, MIME: f.MIME}
		if b.opts.StoreFilePaths {
			fi.Path = f.Path
		}
		req.Files = append(req.Files, fi)
	}

	arts := make([]ArtifactInfo, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		ai := ArtifactInfo{Kind: string(a.Kind), Name: a.Name, Digest: digestFile(a.Path)}
		if b.opts.StoreFilePaths {
			ai.Path = a.Path
		}
		arts = append(arts, ai)
	}

	names := make([]string, 0, maxEventNames)
	for _, ev := range res.Events {
		if len(names) == maxEventNames {
			break
		}
		names = append(names, ev.Name)
	}

	return Entry{
		SchemaVersion: SchemaVersion,
		TS:            ts.Format(time.RFC3339),
		TraceID:       res.Meta.TraceID,
		Handler:       HandlerInfo{ID: res.Meta.HandlerID, Mode: res.Meta.Mode},
		Outcome: OutcomeInfo{
			Approved:  res.Meta.Approved,
			ErrorCode: res.Meta.ErrorCode,
			LLM:       res.Meta.LLM,
		},
		Request:   req,
		Artifacts: arts,
		Events:    EventsSummary{Count: len(res.Events), Names: names},
		Meta:      res.Meta,
	}
}

func (b *Builder) validate(raw []byte, traceID string) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		b.log.Warn("audit entry not re-decodable", "trace_id", traceID, "err", err)
		return
	}
	if err := entrySchema.Validate(v); err != nil {
		b.log.Warn("audit entry violates contract", "trace_id", traceID, "err", err)
	}
}

// appendLine appends one jsonl line with a single write, so concurrent
// writers cannot interleave partial lines.
func appendLine(path string, raw []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	line := make([]byte, 0, len(raw)+1)
	line = append(line, raw...)
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}

// digestFile returns the hex blake3 digest of the file, or "" when it cannot
// be read. A missing digest is diagnostic, not fatal.
func digestFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// preview bounds s to max bytes, cutting on a rune boundary so the record
// stays valid UTF-8; a cut is marked with an ellipsis.
func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
