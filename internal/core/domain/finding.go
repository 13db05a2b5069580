package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the canonical severity vocabulary shared by every scanner
// format after normalization.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Severities lists all severities from most to least severe.
// Funnel views and CSV output iterate this order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank returns an integer rank for comparison (Info=0, Critical=4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Weight maps the severity onto the 0-10 scoring scale.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10.0
	case SeverityHigh:
		return 7.5
	case SeverityMedium:
		return 5.0
	case SeverityLow:
		return 2.5
	default:
		return 0.0
	}
}

// ClassifySeverity coerces a raw scanner severity string into the canonical
// vocabulary. Keyword matching is priority ordered: a string containing both
// "critical" and "low" classifies as Critical. Anything unrecognized is Info.
func ClassifySeverity(raw string) Severity {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "critical"):
		return SeverityCritical
	case strings.Contains(s, "high"):
		return SeverityHigh
	case strings.Contains(s, "medium"), strings.Contains(s, "moderate"):
		return SeverityMedium
	case strings.Contains(s, "low"):
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// AttackComplexity classifies how hard a finding is to exploit.
type AttackComplexity string

const (
	ComplexitySimple  AttackComplexity = "Simple"
	ComplexityComplex AttackComplexity = "Complex"
	ComplexityUnknown AttackComplexity = "Unknown"
)

// FindingStatus tracks the remediation state of a finding.
type FindingStatus string

const (
	StatusOpen       FindingStatus = "Open"
	StatusRemediated FindingStatus = "Remediated"
	StatusClosed     FindingStatus = "Closed"
)

// statusPrecedence orders statuses for equal-timestamp merge conflicts:
// an open finding outranks a remediated one, which outranks a closed one.
func (s FindingStatus) Precedence() int {
	switch s {
	case StatusOpen:
		return 2
	case StatusRemediated:
		return 1
	default:
		return 0
	}
}

// ParseStatus maps raw scanner status strings onto the canonical set.
// Scanners report closure in many vocabularies (Fixed, Resolved, Closed,
// Remediated, Patched); everything else defaults to Open.
func ParseStatus(raw string) FindingStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "remediat"), strings.Contains(s, "fixed"), strings.Contains(s, "patched"):
		return StatusRemediated
	case strings.Contains(s, "closed"), strings.Contains(s, "resolved"):
		return StatusClosed
	default:
		return StatusOpen
	}
}

// Finding is the canonical record every scanner export is mapped into.
// IdentityKey is derived once at creation and never reassigned; it is the
// natural key the deduplicator groups on.
type Finding struct {
	IdentityKey string `json:"identity_key"`

	CVEs []string `json:"cve_ids"`

	Host      string `json:"host"`
	IPAddress string `json:"ip_address"`
	Port      string `json:"port"`
	Protocol  string `json:"protocol"`

	ScannerName     string `json:"scanner_name"`
	ScannerPluginID string `json:"scanner_plugin_id"`

	VulnerabilityName string `json:"vulnerability_name"`
	Description       string `json:"description"`

	ReportedSeverity   Severity `json:"scanner_reported_severity"`
	NormalizedSeverity Severity `json:"normalized_severity"`

	VRRScore   float64          `json:"vrr_score"`
	Complexity AttackComplexity `json:"attack_complexity"`

	Status FindingStatus `json:"status"`

	Weaknesses []string `json:"weaknesses,omitempty"` // CWE ids
	Patches    []string `json:"patches,omitempty"`
	Solutions  []string `json:"solutions,omitempty"`

	UpdatedDate time.Time `json:"date_updated"`

	// Extensions carries source fields not claimed by any mapping table,
	// verbatim under their original keys. Scoring never interprets them
	// beyond the documented enrichment lookups.
	Extensions map[string]string `json:"extensions,omitempty"`
}

// IdentityKey derives the stable dedup key for a finding.
// Components are normalized so that case and whitespace differences between
// uploads never split a finding into two records.
func IdentityKey(cveID, host, port, pluginID string) string {
	norm := func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return fmt.Sprintf("%s|%s|%s|%s",
		strings.ToUpper(strings.TrimSpace(cveID)), norm(host), norm(port), norm(pluginID))
}

// PrimaryCVE returns the first referenced CVE, or "" for findings without one.
func (f *Finding) PrimaryCVE() string {
	if len(f.CVEs) == 0 {
		return ""
	}
	return f.CVEs[0]
}

// Asset returns the best available host identifier.
func (f *Finding) Asset() string {
	if f.Host != "" {
		return f.Host
	}
	return f.IPAddress
}

// PopulatedFields counts non-empty scalar fields. The merger uses it as the
// deterministic tie-break when two records disagree at the same timestamp.
func (f *Finding) PopulatedFields() int {
	count := 0
	for _, v := range []string{
		f.Host, f.IPAddress, f.Port, f.Protocol,
		f.ScannerName, f.ScannerPluginID,
		f.VulnerabilityName, f.Description,
		string(f.ReportedSeverity), string(f.Status),
	} {
		if v != "" {
			count++
		}
	}
	count += len(f.CVEs) + len(f.Weaknesses) + len(f.Patches) + len(f.Solutions) + len(f.Extensions)
	return count
}

// AddCVE appends a CVE preserving set semantics and encounter order.
func (f *Finding) AddCVE(id string) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return
	}
	for _, existing := range f.CVEs {
		if existing == id {
			return
		}
	}
	f.CVEs = append(f.CVEs, id)
}
