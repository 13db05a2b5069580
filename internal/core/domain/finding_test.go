package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		raw  string
		want Severity
	}{
		{"Critical", SeverityCritical},
		{"CRITICAL - act now", SeverityCritical},
		{"critical/low", SeverityCritical},
		{"High", SeverityHigh},
		{"4 - High", SeverityHigh},
		{"Medium", SeverityMedium},
		{"Moderate", SeverityMedium},
		{"low", SeverityLow},
		{"Informational", SeverityInfo},
		{"None", SeverityInfo},
		{"", SeverityInfo},
		{"banana", SeverityInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySeverity(tt.raw), "raw=%q", tt.raw)
	}
}

func TestSeverityRankOrder(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, SeverityLow.Rank(), SeverityInfo.Rank())
}

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 10.0, SeverityCritical.Weight())
	assert.Equal(t, 7.5, SeverityHigh.Weight())
	assert.Equal(t, 5.0, SeverityMedium.Weight())
	assert.Equal(t, 2.5, SeverityLow.Weight())
	assert.Equal(t, 0.0, SeverityInfo.Weight())
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusOpen, ParseStatus(""))
	assert.Equal(t, StatusOpen, ParseStatus("Active"))
	assert.Equal(t, StatusRemediated, ParseStatus("Fixed"))
	assert.Equal(t, StatusRemediated, ParseStatus("remediated"))
	assert.Equal(t, StatusRemediated, ParseStatus("Patched"))
	assert.Equal(t, StatusClosed, ParseStatus("Closed"))
	assert.Equal(t, StatusClosed, ParseStatus("Resolved"))
}

func TestStatusPrecedence(t *testing.T) {
	assert.Greater(t, StatusOpen.Precedence(), StatusRemediated.Precedence())
	assert.Greater(t, StatusRemediated.Precedence(), StatusClosed.Precedence())
}

func TestIdentityKeyNormalization(t *testing.T) {
	a := IdentityKey("cve-2024-1234", "Web01.Example.COM", "443", "19506")
	b := IdentityKey("CVE-2024-1234", "  web01.example.com ", " 443", "19506 ")
	assert.Equal(t, a, b)
	assert.Equal(t, "CVE-2024-1234|web01.example.com|443|19506", a)
}

func TestIdentityKeyEmptyComponents(t *testing.T) {
	key := IdentityKey("", "10.0.0.5", "", "101")
	assert.Equal(t, "|10.0.0.5||101", key)
}

func TestAddCVESetSemantics(t *testing.T) {
	var f Finding
	f.AddCVE("cve-2024-0001")
	f.AddCVE("CVE-2024-0001")
	f.AddCVE("CVE-2024-0002")
	f.AddCVE("  ")
	assert.Equal(t, []string{"CVE-2024-0001", "CVE-2024-0002"}, f.CVEs)
}

func TestAssetPrefersHost(t *testing.T) {
	f := Finding{Host: "web01", IPAddress: "10.0.0.5"}
	assert.Equal(t, "web01", f.Asset())

	f.Host = ""
	assert.Equal(t, "10.0.0.5", f.Asset())
}

func TestPopulatedFields(t *testing.T) {
	empty := Finding{}
	full := Finding{
		Host:             "web01",
		Port:             "443",
		ReportedSeverity: SeverityHigh,
		Status:           StatusOpen,
		CVEs:             []string{"CVE-2024-0001"},
		Extensions:       map[string]string{"epss_value": "0.5"},
	}
	assert.Equal(t, 0, empty.PopulatedFields())
	assert.Greater(t, full.PopulatedFields(), empty.PopulatedFields())
}
