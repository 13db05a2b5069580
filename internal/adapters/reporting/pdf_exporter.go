package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/services/stats"
)

// topFindingsLimit caps the table on the summary page.
const topFindingsLimit = 10

// PDFExporter renders a dataset summary report to PDF format.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportSummary generates a one-page summary of a unified dataset: headline
// counters, the severity funnel, the highest-VRR findings and the
// attack-complexity split.
func (e *PDFExporter) ExportSummary(ds *domain.Dataset) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	overview := stats.Overview(ds.Findings)
	funnel := stats.Funnel(ds.Findings)
	complexity := stats.Complexity(ds.Findings)

	e.addHeader(pdf, ds)
	e.addRiskScore(pdf, overview)
	e.addFunnel(pdf, funnel)
	e.addTopFindings(pdf, ds.Findings)
	e.addComplexity(pdf, complexity)
	e.addFooter(pdf, ds)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// addHeader adds the report title and provenance line.
func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, ds *domain.Dataset) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, "Vulnerability Risk Summary", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", ds.Provenance.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Sources: %d files, %d rows read", len(ds.Provenance.SourceFiles), ds.Provenance.RowsRead), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

// addRiskScore adds the prominent average-VRR display.
func (e *PDFExporter) addRiskScore(pdf *gofpdf.Fpdf, overview domain.Overview) {
	r, g, b := e.getRiskColor(overview.VRRAverage)

	pdf.SetFillColor(r, g, b)
	pdf.Rect(20, pdf.GetY(), 170, 30, "F")

	y := pdf.GetY()

	pdf.SetFont("Arial", "B", 36)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(25, y+5)
	pdf.CellFormat(80, 20, fmt.Sprintf("%.1f/10", overview.VRRAverage), "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 14)
	pdf.SetXY(110, y+5)
	pdf.CellFormat(80, 10, "Average VRR", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.SetXY(110, y+16)
	pdf.CellFormat(80, 8, fmt.Sprintf("%d findings across %d hosts", overview.TotalFindings, overview.UniqueHosts), "", 0, "L", false, 0, "")

	pdf.SetY(y + 35)
	pdf.Ln(5)
}

// getRiskColor returns RGB color based on the average VRR score.
func (e *PDFExporter) getRiskColor(score float64) (r, g, b int) {
	switch {
	case score >= 8.0:
		return 220, 53, 69 // Red (Critical)
	case score >= 6.0:
		return 255, 149, 0 // Orange (High)
	case score >= 4.0:
		return 255, 204, 0 // Yellow (Medium)
	default:
		return 52, 199, 89 // Green (Low)
	}
}

// addFunnel adds the severity funnel table.
func (e *PDFExporter) addFunnel(pdf *gofpdf.Fpdf, funnel []domain.FunnelBucket) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Severity Funnel", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(35, 8, "Severity", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Findings", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Percent", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Open", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Assets", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, bucket := range funnel {
		r, g, b := e.getSeverityColor(bucket.Severity)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(35, 7, string(bucket.Severity), "1", 0, "L", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", bucket.Count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.1f%%", bucket.Percent), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", bucket.OpenFindings), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", bucket.Assets), "1", 1, "C", false, 0, "")
	}

	pdf.Ln(8)
}

// getSeverityColor returns RGB color per normalized severity.
func (e *PDFExporter) getSeverityColor(s domain.Severity) (r, g, b int) {
	switch s {
	case domain.SeverityCritical:
		return 220, 53, 69 // Red
	case domain.SeverityHigh:
		return 255, 149, 0 // Orange
	case domain.SeverityMedium:
		return 255, 204, 0 // Yellow
	case domain.SeverityLow:
		return 52, 199, 89 // Green
	default:
		return 108, 117, 125 // Gray
	}
}

// addTopFindings adds the highest-VRR findings table. The dataset is already
// VRR-descending, so the head of the slice is the table.
func (e *PDFExporter) addTopFindings(pdf *gofpdf.Fpdf, findings []domain.Finding) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Highest Risk Findings", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(findings) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No findings in the current dataset", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(18, 8, "VRR", "1", 0, "C", true, 0, "")
	pdf.CellFormat(62, 8, "Vulnerability", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Host", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "CVE", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	limit := len(findings)
	if limit > topFindingsLimit {
		limit = topFindingsLimit
	}
	for i := 0; i < limit; i++ {
		f := &findings[i]
		r, g, b := e.getSeverityColor(f.NormalizedSeverity)

		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(18, 7, fmt.Sprintf("%.1f", f.VRRScore), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(62, 7, truncate(f.VulnerabilityName, 40), "1", 0, "L", false, 0, "")

		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(25, 7, string(f.NormalizedSeverity), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 7, truncate(f.Asset(), 22), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, truncate(f.PrimaryCVE(), 22), "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addComplexity adds the attack-complexity split.
func (e *PDFExporter) addComplexity(pdf *gofpdf.Fpdf, dist domain.ComplexityDistribution) {
	if pdf.GetY() > 240 {
		pdf.AddPage()
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Attack Complexity", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	rows := []struct {
		label string
		count int
	}{
		{"Simple", dist.Simple},
		{"Complex", dist.Complex},
		{"Unknown", dist.Unknown},
	}

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(40, 7, row.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 102, 204)
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.count), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
	}

	pdf.Ln(8)
}

// addFooter adds the page footer.
func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, ds *domain.Dataset) {
	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 5, fmt.Sprintf("vmap dataset %s", ds.ID), "", 1, "C", false, 0, "")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
