package domain

import (
	"errors"
	"time"
)

// Sentinel errors surfaced to callers. Row-level problems never become
// errors; they are recorded as extension warnings on the affected finding.
var (
	// ErrUnsupportedFormat means the container could not be inferred at all
	// (binary or corrupt input). It is the only hard stop in the pipeline.
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrInvalidWeightProfile rejects a scoring profile at configuration
	// time, before any file is processed.
	ErrInvalidWeightProfile = errors.New("invalid weight profile")
)

// Container is the physical encoding of a scanner export.
type Container string

const (
	ContainerCSV     Container = "csv"
	ContainerXML     Container = "xml"
	ContainerJSON    Container = "json"
	ContainerUnknown Container = "unknown"
)

// ScannerFormat identifies the product that produced an export.
// An unknown format with a known container still proceeds through the
// generic mapper; it is a normal classification, not an error.
type ScannerFormat string

const (
	FormatUnknown ScannerFormat = "Unknown Scanner"
	FormatNessus  ScannerFormat = "Nessus"
	FormatQualys  ScannerFormat = "Qualys VMDR"
	FormatXForce  ScannerFormat = "IBM X-Force"

	// FormatUnified is the pipeline's own CSV artifact. Analysts edit the
	// exported table (typically bumping date_updated) and upload it again,
	// so it must round-trip like any vendor format.
	FormatUnified ScannerFormat = "vmap Unified"
)

// Provenance records how a dataset was produced.
type Provenance struct {
	SourceFiles   []string  `json:"source_files"`
	Formats       []string  `json:"formats"`
	RowsRead      int       `json:"rows_read"`
	RecordsBefore int       `json:"records_before_dedup"`
	RecordsAfter  int       `json:"records_after_dedup"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Dataset is the unified, deduplicated collection of findings produced by
// one pipeline run. It is immutable once published: a later upload merges
// against it and publishes a new Dataset value.
type Dataset struct {
	ID         string     `json:"id"`
	Findings   []Finding  `json:"findings"`
	Provenance Provenance `json:"provenance"`
}

// UploadSummary mirrors the counters the dashboard shows after an upload.
type UploadSummary struct {
	TotalInputRows  int `json:"total_input_rows"`
	UniqueCVEsFound int `json:"unique_cves_found"`
	RecordsMerged   int `json:"records_merged"`
	ParseWarnings   int `json:"parse_warnings"`
}

// ProcessResult is the shape the dashboard upload flow consumes.
// On unrecoverable failure Error is populated and the other fields are zero.
type ProcessResult struct {
	Data    []Finding     `json:"data"`
	CSV     string        `json:"csv"`
	Scanner string        `json:"scanner"`
	Count   int           `json:"count"`
	Summary UploadSummary `json:"summary"`
	Error   string        `json:"error,omitempty"`
}
