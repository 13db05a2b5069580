package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// cvePattern matches CVE identifiers anywhere in free text.
var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)

// dateLayouts are tried in order when parsing source timestamps. Scanner
// exports disagree wildly here; everything normalizes to UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"Jan 2, 2006 15:04:05 MST",
	"Jan 2, 2006",
	"02 Jan 2006",
}

// expectedFields are the per-row fields every known format's export carries.
// A row missing one proceeds on defaults but is flagged as partial.
var expectedFields = []string{
	domain.FieldSeverity,
	domain.FieldName,
	domain.FieldUpdated,
}

// Normalizer turns mapped records into canonical findings: type coercion,
// severity vocabulary, UTC dates, identity key derivation.
type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewAt pins the pipeline-run clock, used as the fallback for unparseable
// dates. Tests use it for deterministic output.
func NewAt(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize builds one canonical finding from a mapped record.
// Row-level problems are recovered in place and flagged in extensions;
// Normalize never fails.
func (n *Normalizer) Normalize(scanner domain.ScannerFormat, rec domain.MappedRecord) domain.Finding {
	f := domain.Finding{
		Host:              rec.Fields[domain.FieldHost],
		IPAddress:         rec.Fields[domain.FieldIPAddress],
		Port:              strings.TrimSpace(rec.Fields[domain.FieldPort]),
		Protocol:          strings.ToLower(strings.TrimSpace(rec.Fields[domain.FieldProtocol])),
		ScannerName:       string(scanner),
		ScannerPluginID:   rec.Fields[domain.FieldPluginID],
		VulnerabilityName: rec.Fields[domain.FieldName],
		Description:       rec.Fields[domain.FieldDescription],
		Status:            domain.ParseStatus(rec.Fields[domain.FieldStatus]),
		Extensions:        rec.Extensions,
	}
	if f.Extensions == nil {
		f.Extensions = make(map[string]string)
	}
	if f.Host == "" {
		f.Host = f.IPAddress
	}
	// Re-uploaded unified CSVs carry the original scanner name forward.
	if v := rec.Fields[domain.FieldScanner]; v != "" {
		f.ScannerName = v
	}

	// The scanner's own claim survives untouched for audit; the normalized
	// value is the pipeline's single authoritative judgment.
	rawSeverity := rec.Fields[domain.FieldSeverity]
	f.ReportedSeverity = domain.ClassifySeverity(rawSeverity)
	f.NormalizedSeverity = f.ReportedSeverity
	if rawSeverity != "" && rawSeverity != string(f.ReportedSeverity) {
		f.Extensions["scanner_severity_raw"] = rawSeverity
	}

	f.Solutions = splitList(rec.Fields[domain.FieldSolution])
	f.Patches = splitList(rec.Fields[domain.FieldPatch])
	if v := rec.Fields[domain.FieldScannerSeverity]; v != "" {
		f.Extensions["scanner_severity"] = v
	}
	if v := rec.Fields[domain.FieldPluginOutput]; v != "" {
		f.Extensions["plugin_output"] = v
	}

	for _, cwe := range splitList(rec.Fields[domain.FieldWeakness]) {
		f.Weaknesses = appendUnique(f.Weaknesses, normalizeCWE(cwe))
	}

	// Unknown formats carry no field expectations; anything the generic
	// mapper could not place is already in extensions.
	if scanner != domain.FormatUnknown {
		flagMissingFields(&f, rec)
	}

	f.UpdatedDate = n.parseDate(&f, rec.Fields[domain.FieldUpdated])

	// CVE extraction sweeps the mapped CVE field plus the free-text fields
	// vendors bury identifiers in.
	for _, text := range []string{
		rec.Fields[domain.FieldCVE],
		f.VulnerabilityName,
		f.Description,
		f.Extensions["plugin_output"],
	} {
		for _, match := range cvePattern.FindAllString(text, -1) {
			f.AddCVE(match)
		}
	}

	f.IdentityKey = domain.IdentityKey(f.PrimaryCVE(), f.Asset(), f.Port, f.ScannerPluginID)

	// Dashboard compatibility: the legacy unified table exposed this
	// concatenated id as its leading column.
	f.Extensions["host_findings_id"] = f.Asset() + f.ScannerPluginID

	return f
}

// parseDate parses the source timestamp into UTC. Unparseable values fail
// soft: the pipeline-run time is used and the row is flagged.
func (n *Normalizer) parseDate(f *domain.Finding, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.now().UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	f.Extensions["date_parse_warning"] = "unparseable date: " + raw
	telemetry.ParseWarnings.WithLabelValues("date").Inc()
	return n.now().UTC()
}

// flagMissingFields records which expected fields a known format's row failed
// to supply. The row still proceeds with defaults; the flag travels with the
// finding so consumers can see the loss.
func flagMissingFields(f *domain.Finding, rec domain.MappedRecord) {
	var missing []string
	for _, field := range expectedFields {
		if strings.TrimSpace(rec.Fields[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return
	}
	f.Extensions["partial_field_loss"] = "missing fields: " + strings.Join(missing, ", ")
	telemetry.ParseWarnings.WithLabelValues("field").Inc()
}

func normalizeCWE(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return ""
	}
	if !strings.HasPrefix(c, "CWE-") {
		c = "CWE-" + strings.TrimPrefix(c, "CWE")
	}
	return c
}

// splitList splits multi-value scanner fields on the separators seen in the
// wild (comma, semicolon, newline).
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
