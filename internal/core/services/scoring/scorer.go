package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// weightTolerance is how far the four weights may drift from summing to 1.
const weightTolerance = 1e-6

// WeightProfile holds the four VRR factor weights. Weights must each lie in
// [0,1] and sum to 1; deployments re-weight factors via configuration.
type WeightProfile struct {
	Severity         float64 `yaml:"severity" json:"severity"`
	Complexity       float64 `yaml:"complexity" json:"complexity"`
	Exploitability   float64 `yaml:"exploitability" json:"exploitability"`
	AssetCriticality float64 `yaml:"asset_criticality" json:"asset_criticality"`
}

// DefaultProfile is the standard deployment weighting.
func DefaultProfile() WeightProfile {
	return WeightProfile{
		Severity:         0.5,
		Complexity:       0.2,
		Exploitability:   0.2,
		AssetCriticality: 0.1,
	}
}

// Validate rejects profiles before any file is processed.
func (p WeightProfile) Validate() error {
	for name, w := range map[string]float64{
		"severity":          p.Severity,
		"complexity":        p.Complexity,
		"exploitability":    p.Exploitability,
		"asset_criticality": p.AssetCriticality,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: weight %s=%g outside [0,1]", domain.ErrInvalidWeightProfile, name, w)
		}
	}
	sum := p.Severity + p.Complexity + p.Exploitability + p.AssetCriticality
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %g, want 1", domain.ErrInvalidWeightProfile, sum)
	}
	return nil
}

// Scorer computes the VRR score and attack-complexity classification.
// Scoring is pure: identical inputs always produce identical output, and no
// external lookup happens inside the scoring path.
type Scorer struct {
	profile WeightProfile
}

// NewScorer validates the profile up front; an invalid profile is fatal at
// configuration time.
func NewScorer(profile WeightProfile) (*Scorer, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{profile: profile}, nil
}

// Profile returns the active weight profile.
func (s *Scorer) Profile() WeightProfile {
	return s.profile
}

// Score sets Complexity and VRRScore on a finding.
func (s *Scorer) Score(f *domain.Finding) {
	f.Complexity = classifyComplexity(f)

	vrr := s.profile.Severity*f.NormalizedSeverity.Weight() +
		s.profile.Complexity*complexityWeight(f.Complexity) +
		s.profile.Exploitability*exploitabilityWeight(f) +
		s.profile.AssetCriticality*assetCriticalityWeight(f)

	f.VRRScore = clamp(vrr, 0, 10)
}

// Rescore applies this scorer to a copy of the findings. Changing weights
// never mutates an already-published dataset; callers get a fresh slice.
func (s *Scorer) Rescore(findings []domain.Finding) []domain.Finding {
	out := make([]domain.Finding, len(findings))
	copy(out, findings)
	for i := range out {
		s.Score(&out[i])
	}
	return out
}

// classifyComplexity prefers vendor enrichment signals; hosts lacking
// scanner-level attack-complexity data fall back to the severity-derived
// default. Both tiers must be preserved exactly.
func classifyComplexity(f *domain.Finding) domain.AttackComplexity {
	for _, key := range []string{"ibm_attack_complexity", "attack_complexity", "cvss.access_complexity"} {
		if c, ok := parseComplexity(f.Extensions[key]); ok {
			return c
		}
	}
	// CVSS vector token, when a raw vector rode along in extensions.
	if vector := f.Extensions["cvss_vector"]; vector != "" {
		if strings.Contains(vector, "AC:L") {
			return domain.ComplexitySimple
		}
		if strings.Contains(vector, "AC:H") {
			return domain.ComplexityComplex
		}
	}

	switch f.NormalizedSeverity {
	case domain.SeverityCritical, domain.SeverityHigh:
		return domain.ComplexityComplex
	case domain.SeverityMedium, domain.SeverityLow:
		return domain.ComplexitySimple
	default:
		return domain.ComplexityUnknown
	}
}

func parseComplexity(raw string) (domain.AttackComplexity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return domain.ComplexityUnknown, false
	case "low", "simple":
		return domain.ComplexitySimple, true
	case "medium", "high", "complex":
		return domain.ComplexityComplex, true
	default:
		return domain.ComplexityUnknown, false
	}
}

func complexityWeight(c domain.AttackComplexity) float64 {
	switch c {
	case domain.ComplexitySimple:
		return 10.0
	case domain.ComplexityComplex:
		return 5.0
	default:
		return 2.5
	}
}

// exploitabilityWeight reads the enrichment flags the legacy VRR formula
// scored (known-exploit databases, EPSS probability). Findings without any
// signal inherit the severity scale so the composite stays total.
func exploitabilityWeight(f *domain.Finding) float64 {
	for _, key := range []string{"exploit_db", "metasploit", "cisa_key", "cisa_known_ransomware"} {
		if strings.EqualFold(f.Extensions[key], "yes") {
			return 10.0
		}
	}
	if raw := f.Extensions["epss_value"]; raw != "" {
		if epss, err := strconv.ParseFloat(raw, 64); err == nil {
			return clamp(epss*10, 0, 10)
		}
	}
	return f.NormalizedSeverity.Weight()
}

// assetCriticalityWeight reads the optional per-asset enrichment; no known
// scanner format supplies it, so Medium is the default input.
func assetCriticalityWeight(f *domain.Finding) float64 {
	switch strings.ToLower(strings.TrimSpace(f.Extensions["asset_criticality"])) {
	case "critical":
		return 10.0
	case "high":
		return 7.5
	case "low":
		return 2.5
	case "":
		return 5.0
	default:
		return 5.0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
