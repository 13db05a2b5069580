package stats

import (
	"math"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// severityOrder fixes the funnel row order, most severe first.
var severityOrder = []domain.Severity{
	domain.SeverityCritical,
	domain.SeverityHigh,
	domain.SeverityMedium,
	domain.SeverityLow,
	domain.SeverityInfo,
}

// Funnel buckets findings by normalized severity. Every severity appears
// exactly once even when empty, so the widget never collapses rows between
// refreshes. Percentages are of the total finding count and sum to 100 for a
// non-empty dataset.
func Funnel(findings []domain.Finding) []domain.FunnelBucket {
	type acc struct {
		count  int
		open   int
		assets map[string]bool
	}
	bySeverity := make(map[domain.Severity]*acc, len(severityOrder))
	for _, s := range severityOrder {
		bySeverity[s] = &acc{assets: make(map[string]bool)}
	}

	for i := range findings {
		f := &findings[i]
		a, ok := bySeverity[f.NormalizedSeverity]
		if !ok {
			a = bySeverity[domain.SeverityInfo]
		}
		a.count++
		if f.Status == domain.StatusOpen {
			a.open++
		}
		if asset := f.Asset(); asset != "" {
			a.assets[asset] = true
		}
	}

	total := len(findings)
	buckets := make([]domain.FunnelBucket, 0, len(severityOrder))
	for _, s := range severityOrder {
		a := bySeverity[s]
		percent := 0.0
		if total > 0 {
			percent = round2(float64(a.count) / float64(total) * 100)
		}
		buckets = append(buckets, domain.FunnelBucket{
			Severity:     s,
			Count:        a.count,
			Percent:      percent,
			OpenFindings: a.open,
			Assets:       len(a.assets),
			Color:        domain.FunnelColor(s),
		})
	}
	return buckets
}

// Overview computes the headline counters. An empty dataset yields zeros,
// never NaN.
func Overview(findings []domain.Finding) domain.Overview {
	if len(findings) == 0 {
		return domain.Overview{}
	}
	hosts := make(map[string]bool)
	sum := 0.0
	for i := range findings {
		sum += findings[i].VRRScore
		if asset := findings[i].Asset(); asset != "" {
			hosts[asset] = true
		}
	}
	return domain.Overview{
		TotalFindings: len(findings),
		VRRAverage:    round2(sum / float64(len(findings))),
		UniqueHosts:   len(hosts),
	}
}

// Complexity counts findings per attack-complexity class.
func Complexity(findings []domain.Finding) domain.ComplexityDistribution {
	var dist domain.ComplexityDistribution
	for i := range findings {
		switch findings[i].Complexity {
		case domain.ComplexitySimple:
			dist.Simple++
		case domain.ComplexityComplex:
			dist.Complex++
		default:
			dist.Unknown++
		}
	}
	return dist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
