package domain

// FunnelBucket is one row of the severity funnel widget.
type FunnelBucket struct {
	Severity     Severity `json:"severity"`
	Count        int      `json:"count"`
	Percent      float64  `json:"percent"`
	OpenFindings int      `json:"openFindings"`
	Assets       int      `json:"assets"`
	Color        string   `json:"color"`
}

// Overview holds the headline counters shown above the funnel.
type Overview struct {
	TotalFindings int     `json:"totalFindings"`
	VRRAverage    float64 `json:"vrrAvg"`
	UniqueHosts   int     `json:"uniqueHosts"`
}

// ComplexityDistribution counts findings per attack-complexity class.
type ComplexityDistribution struct {
	Simple  int `json:"Simple"`
	Complex int `json:"Complex"`
	Unknown int `json:"Unknown"`
}

// funnelColors is the dashboard palette, keyed by severity.
var funnelColors = map[Severity]string{
	SeverityCritical: "#dc3545",
	SeverityHigh:     "#ff9500",
	SeverityMedium:   "#ffc107",
	SeverityLow:      "#28a745",
	SeverityInfo:     "#6c757d",
}

// FunnelColor returns the widget color for a severity bucket.
func FunnelColor(s Severity) string {
	if c, ok := funnelColors[s]; ok {
		return c
	}
	return funnelColors[SeverityInfo]
}
