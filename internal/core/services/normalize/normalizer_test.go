package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewAt(func() time.Time { return testNow })
}

func record(fields map[string]string) domain.MappedRecord {
	rec := domain.NewMappedRecord()
	for k, v := range fields {
		rec.Fields[k] = v
	}
	return rec
}

func TestNormalizeBasicFinding(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldCVE:      "CVE-2024-0001",
		domain.FieldHost:     "Web01.Example.COM",
		domain.FieldPort:     " 443 ",
		domain.FieldProtocol: "TCP",
		domain.FieldPluginID: "19506",
		domain.FieldName:     "TLS Weakness",
		domain.FieldSeverity: "High",
		domain.FieldUpdated:  "2024-01-10",
	}))

	assert.Equal(t, "Nessus", f.ScannerName)
	assert.Equal(t, "443", f.Port)
	assert.Equal(t, "tcp", f.Protocol)
	assert.Equal(t, domain.SeverityHigh, f.ReportedSeverity)
	assert.Equal(t, domain.SeverityHigh, f.NormalizedSeverity)
	assert.Equal(t, []string{"CVE-2024-0001"}, f.CVEs)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), f.UpdatedDate)
	assert.Equal(t, "CVE-2024-0001|web01.example.com|443|19506", f.IdentityKey)
	assert.Equal(t, domain.StatusOpen, f.Status)
}

func TestNormalizePreservesRawSeverity(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatQualys, record(map[string]string{
		domain.FieldSeverity: "4 - Critical",
	}))

	assert.Equal(t, domain.SeverityCritical, f.NormalizedSeverity)
	assert.Equal(t, "4 - Critical", f.Extensions["scanner_severity_raw"])
}

func TestNormalizeUnparseableDateFailsSoft(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldUpdated: "sometime last week",
	}))

	assert.Equal(t, testNow, f.UpdatedDate)
	assert.Contains(t, f.Extensions["date_parse_warning"], "sometime last week")
}

func TestNormalizeDateLayouts(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-10T15:30:00Z", time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)},
		{"2024-01-10 15:30:00", time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)},
		{"2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"01/10/2024", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"", testNow},
	}

	for _, tt := range tests {
		f := n.Normalize(domain.FormatNessus, record(map[string]string{domain.FieldUpdated: tt.raw}))
		assert.Equal(t, tt.want, f.UpdatedDate, "raw=%q", tt.raw)
		assert.NotContains(t, f.Extensions, "date_parse_warning", "raw=%q", tt.raw)
	}
}

func TestNormalizeCVESweep(t *testing.T) {
	n := newTestNormalizer()
	rec := record(map[string]string{
		domain.FieldCVE:         "CVE-2024-0001",
		domain.FieldName:        "Vuln referencing cve-2024-0002 in the name",
		domain.FieldDescription: "Also fixes CVE-2024-0003 and CVE-2024-0001 again.",
	})
	rec.Fields[domain.FieldPluginOutput] = "evidence mentions CVE-2019-19781"

	f := n.Normalize(domain.FormatUnknown, rec)

	assert.Equal(t, []string{"CVE-2024-0001", "CVE-2024-0002", "CVE-2024-0003", "CVE-2019-19781"}, f.CVEs)
	assert.Equal(t, "CVE-2024-0001", f.PrimaryCVE())
}

func TestNormalizeNoCVE(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldHost:     "web01",
		domain.FieldPluginID: "10180",
	}))

	assert.Empty(t, f.CVEs)
	assert.Equal(t, "|web01||10180", f.IdentityKey)
}

func TestNormalizeHostFallsBackToIP(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatQualys, record(map[string]string{
		domain.FieldIPAddress: "10.0.0.5",
	}))

	assert.Equal(t, "10.0.0.5", f.Host)
	assert.Equal(t, "10.0.0.5", f.Asset())
}

func TestNormalizeScannerNameOverride(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatUnified, record(map[string]string{
		domain.FieldScanner: "Qualys VMDR",
	}))

	// Re-uploaded unified CSVs keep the original scanner attribution.
	assert.Equal(t, "Qualys VMDR", f.ScannerName)
}

func TestNormalizeCWEs(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldWeakness: "79, CWE-89; cwe-79",
	}))

	assert.Equal(t, []string{"CWE-79", "CWE-89"}, f.Weaknesses)
}

func TestNormalizeSetsHostFindingsID(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldHost:     "web01",
		domain.FieldPluginID: "19506",
	}))

	require.Contains(t, f.Extensions, "host_findings_id")
	assert.Equal(t, "web0119506", f.Extensions["host_findings_id"])
}

func TestNormalizeFlagsPartialFieldLoss(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldHost:     "10.0.0.5",
		domain.FieldPluginID: "19506",
	}))

	// Severity, name and date were all missing; defaults applied, row flagged.
	assert.Equal(t, domain.SeverityInfo, f.NormalizedSeverity)
	require.Contains(t, f.Extensions, "partial_field_loss")
	warning := f.Extensions["partial_field_loss"]
	assert.Contains(t, warning, domain.FieldSeverity)
	assert.Contains(t, warning, domain.FieldName)
	assert.Contains(t, warning, domain.FieldUpdated)
}

func TestNormalizeCompleteRowHasNoPartialFieldLoss(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldHost:     "10.0.0.5",
		domain.FieldName:     "TLS Weakness",
		domain.FieldSeverity: "High",
		domain.FieldUpdated:  "2024-01-10",
	}))

	assert.NotContains(t, f.Extensions, "partial_field_loss")
}

func TestNormalizeUnknownFormatNotFlagged(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatUnknown, record(map[string]string{
		domain.FieldHost: "10.0.0.5",
	}))

	// No per-format field expectations exist for an unattributed export.
	assert.NotContains(t, f.Extensions, "partial_field_loss")
}

func TestNormalizeSolutionsAndPatches(t *testing.T) {
	n := newTestNormalizer()
	f := n.Normalize(domain.FormatNessus, record(map[string]string{
		domain.FieldSolution: "Upgrade to 2.0; Apply vendor fix",
		domain.FieldPatch:    "https://vendor/patch1, https://vendor/patch2",
	}))

	assert.Equal(t, []string{"Upgrade to 2.0", "Apply vendor fix"}, f.Solutions)
	assert.Len(t, f.Patches, 2)
}
