package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

func summaryDataset() *domain.Dataset {
	return &domain.Dataset{
		ID: "ds-1",
		Findings: []domain.Finding{
			{
				IdentityKey:        "CVE-2024-0001|web01|443|19506",
				Host:               "web01",
				VulnerabilityName:  "TLS Weakness",
				NormalizedSeverity: domain.SeverityCritical,
				Status:             domain.StatusOpen,
				VRRScore:           9.2,
				Complexity:         domain.ComplexityComplex,
			},
			{
				IdentityKey:        "|db01|0|10180",
				Host:               "db01",
				VulnerabilityName:  "Ping",
				NormalizedSeverity: domain.SeverityInfo,
				Status:             domain.StatusClosed,
				VRRScore:           1.0,
				Complexity:         domain.ComplexityUnknown,
			},
		},
		Provenance: domain.Provenance{
			SourceFiles: []string{"scan.csv"},
			RowsRead:    2,
			GeneratedAt: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportSummaryProducesPDF(t *testing.T) {
	exporter := NewPDFExporter()

	out, err := exporter.ExportSummary(summaryDataset())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestExportSummaryEmptyDataset(t *testing.T) {
	exporter := NewPDFExporter()

	out, err := exporter.ExportSummary(&domain.Dataset{ID: "empty"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestExportSummaryManyFindingsCapped(t *testing.T) {
	ds := summaryDataset()
	for i := 0; i < 50; i++ {
		ds.Findings = append(ds.Findings, domain.Finding{
			IdentityKey:        "k",
			Host:               "host",
			VulnerabilityName:  "A very long vulnerability name that needs truncation to fit the table column",
			NormalizedSeverity: domain.SeverityMedium,
			VRRScore:           5.0,
		})
	}

	exporter := NewPDFExporter()
	out, err := exporter.ExportSummary(ds)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactlyten", truncate("exactlyten", 10))
	assert.Equal(t, "toolong...", truncate("toolongvalue", 10))
}
