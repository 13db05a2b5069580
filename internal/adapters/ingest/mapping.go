package ingest

import (
	"sort"
	"strings"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// FieldMap is one format's mapping table: canonical field name → candidate
// source columns/paths tried in priority order. The first present, non-empty
// value wins.
type FieldMap map[string][]string

// formatTables holds the static mapping table per known scanner format.
// Column names follow each vendor's export layout. Adding a vendor means
// adding a table here; normalizer and scorer contracts are unaffected.
var formatTables = map[domain.ScannerFormat]FieldMap{
	domain.FormatNessus: {
		domain.FieldCVE:          {"CVE"},
		domain.FieldHost:         {"Host"},
		domain.FieldIPAddress:    {"IP Address", "Host"},
		domain.FieldPort:         {"Port"},
		domain.FieldProtocol:     {"Protocol"},
		domain.FieldPluginID:     {"Plugin ID"},
		domain.FieldName:         {"Name", "Synopsis"},
		domain.FieldDescription:  {"Description", "Synopsis"},
		domain.FieldSeverity:     {"Risk", "Severity"},
		domain.FieldScannerSeverity: {"CVSS v3.0 Base Score", "CVSS"},
		domain.FieldStatus:       {"Status"},
		domain.FieldUpdated:      {"Last Observed", "Plugin Modification Date"},
		domain.FieldSolution:     {"Solution"},
		domain.FieldPatch:        {"See Also"},
		domain.FieldWeakness:     {"CWE"},
		domain.FieldPluginOutput: {"Plugin Output"},
	},
	domain.FormatQualys: {
		domain.FieldCVE:          {"CVE ID"},
		domain.FieldHost:         {"DNS", "IP"},
		domain.FieldIPAddress:    {"IP"},
		domain.FieldPort:         {"Port"},
		domain.FieldProtocol:     {"Protocol"},
		domain.FieldPluginID:     {"QID"},
		domain.FieldName:         {"Title"},
		domain.FieldDescription:  {"Diagnosis", "Threat"},
		domain.FieldSeverity:     {"Severity"},
		domain.FieldScannerSeverity: {"CVSS Base", "CVSS3 Base"},
		domain.FieldStatus:       {"Vuln Status"},
		domain.FieldUpdated:      {"Last Detected", "Last Fixed"},
		domain.FieldSolution:     {"Solution"},
		domain.FieldPatch:        {"Patchable"},
		domain.FieldWeakness:     {"CWE"},
		domain.FieldPluginOutput: {"Results"},
	},
	domain.FormatUnified: {
		domain.FieldCVE:          {"CVE IDs"},
		domain.FieldScanner:      {"Scanner Name"},
		domain.FieldHost:         {"Host"},
		domain.FieldIPAddress:    {"IPAddress"},
		domain.FieldPort:         {"Port"},
		domain.FieldProtocol:     {"Protocol"},
		domain.FieldPluginID:     {"Scanner plugin ID"},
		domain.FieldName:         {"Vulnerability name"},
		domain.FieldDescription:  {"Description"},
		domain.FieldSeverity:     {"Scanner Reported Severity"},
		domain.FieldStatus:       {"Status"},
		domain.FieldUpdated:      {"date_updated"},
		domain.FieldSolution:     {"Possible Solutions"},
		domain.FieldPatch:        {"Possible patches"},
		domain.FieldWeakness:     {"Weaknesses"},
	},
	domain.FormatXForce: {
		domain.FieldCVE:          {"cve", "cve_id", "stdcode"},
		domain.FieldHost:         {"host", "hostname"},
		domain.FieldIPAddress:    {"ip", "ip_address"},
		domain.FieldPort:         {"port"},
		domain.FieldProtocol:     {"protocol"},
		domain.FieldPluginID:     {"xfdbid"},
		domain.FieldName:         {"title"},
		domain.FieldDescription:  {"description"},
		domain.FieldSeverity:     {"risk_level", "severity"},
		domain.FieldScannerSeverity: {"cvss.score", "ibm_cvss3_base_score"},
		domain.FieldStatus:       {"status"},
		domain.FieldUpdated:      {"reported", "updated"},
		domain.FieldSolution:     {"remedy"},
		domain.FieldPatch:        {"patch_url", "references"},
		domain.FieldWeakness:     {"cwe"},
		domain.FieldPluginOutput: {"evidence"},
	},
}

// derivedColumns are output columns the pipeline recomputes on every run.
// A re-uploaded unified CSV carries them, but feeding them back in as
// extensions would grow the next export; they are claimed and discarded.
var derivedColumns = map[domain.ScannerFormat][]string{
	domain.FormatUnified: {
		"Normalized Severity",
		"VRR Score",
		"Attack Complexity",
		"Host Findings ID",
	},
}

// genericAliases drives the heuristic fallback for unknown formats:
// a header containing any alias (case-insensitive) maps to the canonical
// field. Earlier entries win when several aliases hit the same header.
var genericAliases = []struct {
	field   string
	aliases []string
}{
	{domain.FieldCVE, []string{"cve"}},
	{domain.FieldIPAddress, []string{"ip address", "ipaddress", "ip_address", "ip"}},
	{domain.FieldHost, []string{"host", "target", "asset", "dns"}},
	{domain.FieldPort, []string{"port"}},
	{domain.FieldProtocol, []string{"protocol"}},
	{domain.FieldPluginID, []string{"plugin id", "plugin_id", "qid", "template id", "issue id", "vulnerability id"}},
	{domain.FieldName, []string{"vulnerability name", "name", "title", "alert"}},
	{domain.FieldSeverity, []string{"reported severity", "severity", "risk"}},
	{domain.FieldStatus, []string{"status", "state"}},
	{domain.FieldUpdated, []string{"date_updated", "updated_date", "updated", "last detected", "last observed", "date"}},
	{domain.FieldSolution, []string{"solution", "fix", "recommendation", "remedy"}},
	{domain.FieldPatch, []string{"patch", "see also", "reference"}},
	{domain.FieldWeakness, []string{"cwe", "weakness"}},
	{domain.FieldDescription, []string{"description", "synopsis", "diagnosis", "detail"}},
	{domain.FieldPluginOutput, []string{"plugin output", "output", "evidence", "proof", "results"}},
}

// Mapper translates raw source rows into mapped records by format tag.
type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// Map applies the format's mapping table to one raw row. Every source field
// not claimed by the table passes through into Extensions verbatim.
func (m *Mapper) Map(format domain.ScannerFormat, row map[string]string) domain.MappedRecord {
	table, ok := formatTables[format]
	if !ok {
		return m.mapGeneric(row)
	}

	rec := domain.NewMappedRecord()
	lower := lowerKeyed(row)
	claimed := make(map[string]bool, len(row))

	for field, candidates := range table {
		for _, candidate := range candidates {
			key := strings.ToLower(candidate)
			if v, ok := lower[key]; ok {
				claimed[key] = true
				if rec.Fields[field] == "" && strings.TrimSpace(v) != "" {
					rec.Fields[field] = strings.TrimSpace(v)
				}
			}
		}
	}

	for _, derived := range derivedColumns[format] {
		claimed[strings.ToLower(derived)] = true
	}

	for k, v := range row {
		if !claimed[strings.ToLower(k)] {
			rec.Extensions[k] = v
		}
	}
	return rec
}

// mapGeneric is the best-effort mapper for unknown formats: case-insensitive
// substring match of headers against the canonical alias list, in alias
// priority order. Each header is claimed at most once; a second header
// hitting an already-claimed field keeps its original key so no source data
// is lost.
func (m *Mapper) mapGeneric(row map[string]string) domain.MappedRecord {
	rec := domain.NewMappedRecord()

	// Deterministic header order so repeated runs claim the same columns.
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	claimed := make(map[string]bool, len(keys))
	for _, entry := range genericAliases {
		for _, alias := range entry.aliases {
			if rec.Fields[entry.field] != "" {
				break
			}
			for _, key := range keys {
				if claimed[key] {
					continue
				}
				if !strings.Contains(strings.ToLower(strings.TrimSpace(key)), alias) {
					continue
				}
				if v := strings.TrimSpace(row[key]); v != "" {
					rec.Fields[entry.field] = v
					claimed[key] = true
					break
				}
			}
		}
	}

	for _, key := range keys {
		if !claimed[key] {
			rec.Extensions[key] = row[key]
		}
	}
	return rec
}

func lowerKeyed(row map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
