package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

func TestMapNessusRow(t *testing.T) {
	m := NewMapper()
	row := map[string]string{
		"Plugin ID":     "19506",
		"CVE":           "CVE-2024-1234",
		"Risk":          "High",
		"Host":          "web01",
		"Protocol":      "tcp",
		"Port":          "443",
		"Name":          "Example Vulnerability",
		"Description":   "Something bad",
		"Solution":      "Upgrade",
		"Plugin Output": "evidence here",
		"XCustomField":  "custom value",
	}

	rec := m.Map(domain.FormatNessus, row)

	assert.Equal(t, "19506", rec.Fields[domain.FieldPluginID])
	assert.Equal(t, "CVE-2024-1234", rec.Fields[domain.FieldCVE])
	assert.Equal(t, "High", rec.Fields[domain.FieldSeverity])
	assert.Equal(t, "web01", rec.Fields[domain.FieldHost])
	assert.Equal(t, "443", rec.Fields[domain.FieldPort])
	assert.Equal(t, "Example Vulnerability", rec.Fields[domain.FieldName])
	assert.Equal(t, "evidence here", rec.Fields[domain.FieldPluginOutput])

	// Unclaimed columns pass through verbatim.
	assert.Equal(t, "custom value", rec.Extensions["XCustomField"])
	assert.NotContains(t, rec.Extensions, "Plugin ID")
}

func TestMapCandidatePriority(t *testing.T) {
	m := NewMapper()
	// Nessus description prefers Description over Synopsis.
	rec := m.Map(domain.FormatNessus, map[string]string{
		"Description": "full text",
		"Synopsis":    "short text",
	})
	assert.Equal(t, "full text", rec.Fields[domain.FieldDescription])

	// Synopsis fills in when Description is empty.
	rec = m.Map(domain.FormatNessus, map[string]string{
		"Description": "",
		"Synopsis":    "short text",
	})
	assert.Equal(t, "short text", rec.Fields[domain.FieldDescription])
}

func TestMapQualysRow(t *testing.T) {
	m := NewMapper()
	rec := m.Map(domain.FormatQualys, map[string]string{
		"QID":         "38170",
		"IP":          "10.0.0.5",
		"DNS":         "db01.internal",
		"Severity":    "4",
		"Title":       "SSL Certificate Expired",
		"Vuln Status": "Fixed",
	})

	assert.Equal(t, "38170", rec.Fields[domain.FieldPluginID])
	assert.Equal(t, "db01.internal", rec.Fields[domain.FieldHost])
	assert.Equal(t, "10.0.0.5", rec.Fields[domain.FieldIPAddress])
	assert.Equal(t, "Fixed", rec.Fields[domain.FieldStatus])
}

func TestMapUnifiedRowCarriesScannerName(t *testing.T) {
	m := NewMapper()
	rec := m.Map(domain.FormatUnified, map[string]string{
		"Scanner Name":              "Nessus",
		"Scanner plugin ID":         "19506",
		"Scanner Reported Severity": "High",
		"Host":                      "web01",
		"date_updated":              "2024-02-01T00:00:00Z",
	})

	assert.Equal(t, "Nessus", rec.Fields[domain.FieldScanner])
	assert.Equal(t, "High", rec.Fields[domain.FieldSeverity])
	assert.Equal(t, "2024-02-01T00:00:00Z", rec.Fields[domain.FieldUpdated])
}

func TestMapUnifiedRowDiscardsDerivedColumns(t *testing.T) {
	m := NewMapper()
	rec := m.Map(domain.FormatUnified, map[string]string{
		"Scanner Name":        "Nessus",
		"Host":                "web01",
		"Normalized Severity": "High",
		"VRR Score":           "7.75",
		"Attack Complexity":   "Complex",
		"Host Findings ID":    "web0119506",
		"epss_value":          "0.42",
	})

	// Recomputed output columns never ride back in as extensions; real
	// extension columns still pass through.
	for _, derived := range []string{"Normalized Severity", "VRR Score", "Attack Complexity", "Host Findings ID"} {
		assert.NotContains(t, rec.Extensions, derived)
	}
	assert.Equal(t, "0.42", rec.Extensions["epss_value"])
}

func TestMapGenericUnknownFormat(t *testing.T) {
	m := NewMapper()
	rec := m.Map(domain.FormatUnknown, map[string]string{
		"Vulnerability Title": "SQL Injection",
		"Target Host":         "web01",
		"Reported Severity":   "High",
		"Notes":               "legacy export",
	})

	assert.Equal(t, "SQL Injection", rec.Fields[domain.FieldName])
	assert.Equal(t, "web01", rec.Fields[domain.FieldHost])
	assert.Equal(t, "High", rec.Fields[domain.FieldSeverity])
	assert.Equal(t, "legacy export", rec.Extensions["Notes"])
}

func TestMapGenericClaimsHeaderOnce(t *testing.T) {
	m := NewMapper()
	// "Reported Severity" must claim the severity field before the plain
	// "Severity Notes" column can shadow it.
	rec := m.Map(domain.FormatUnknown, map[string]string{
		"Reported Severity": "Critical",
		"Severity Notes":    "see appendix",
	})

	assert.Equal(t, "Critical", rec.Fields[domain.FieldSeverity])
	assert.Equal(t, "see appendix", rec.Extensions["Severity Notes"])
}
