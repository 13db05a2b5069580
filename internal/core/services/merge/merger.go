package merge

import (
	"log/slog"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// Merger folds records sharing an identity key into one finding.
//
// Policy: scalar fields keep the value from the record with the latest
// updated date; set-valued fields union; status is last-write-wins when the
// newer record has a newer timestamp, precedence-ordered on ties; extensions
// merge key-wise with newer winning. Merging is idempotent, and a stale
// batch merged after a newer one only fills genuinely missing fields.
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// MergeAll merges incoming findings into prior ones, preserving prior order
// and appending new identities in encounter order. Inputs are not mutated.
func (m *Merger) MergeAll(prior, incoming []domain.Finding) []domain.Finding {
	out := make([]domain.Finding, 0, len(prior)+len(incoming))
	for _, f := range prior {
		out = append(out, cloneFinding(f))
	}

	index := make(map[string]int, len(out))
	for i := range out {
		index[out[i].IdentityKey] = i
	}

	for _, rec := range incoming {
		if i, ok := index[rec.IdentityKey]; ok {
			m.Merge(&out[i], rec)
			continue
		}
		index[rec.IdentityKey] = len(out)
		out = append(out, cloneFinding(rec))
	}
	return out
}

// Merge updates existing with fields from incoming. Both describe the same
// identity key; existing.IdentityKey is never reassigned.
func (m *Merger) Merge(existing *domain.Finding, incoming domain.Finding) {
	switch {
	case incoming.UpdatedDate.After(existing.UpdatedDate):
		m.mergeNewer(existing, incoming)
	case incoming.UpdatedDate.Before(existing.UpdatedDate):
		m.mergeOlder(existing, incoming)
	default:
		m.mergeEqual(existing, incoming)
	}

	// Set semantics regardless of recency.
	for _, cve := range incoming.CVEs {
		existing.AddCVE(cve)
	}
	existing.Weaknesses = unionStrings(existing.Weaknesses, incoming.Weaknesses)
	existing.Patches = unionStrings(existing.Patches, incoming.Patches)
	existing.Solutions = unionStrings(existing.Solutions, incoming.Solutions)
}

// mergeNewer: the incoming record is the latest observation. Its non-empty
// scalars win, its status wins outright (real remediation progress), and its
// extensions win on key conflicts. UpdatedDate advances.
func (m *Merger) mergeNewer(existing *domain.Finding, incoming domain.Finding) {
	applyScalars(existing, incoming, true)
	existing.Status = incoming.Status
	existing.ReportedSeverity = incoming.ReportedSeverity
	existing.NormalizedSeverity = incoming.NormalizedSeverity
	existing.VRRScore = incoming.VRRScore
	existing.Complexity = incoming.Complexity
	existing.UpdatedDate = incoming.UpdatedDate

	for k, v := range incoming.Extensions {
		existing.Extensions[k] = v
	}
}

// mergeOlder: a stale batch arrived after a newer one. It is a no-op except
// for filling fields the newer data never had. UpdatedDate never regresses.
func (m *Merger) mergeOlder(existing *domain.Finding, incoming domain.Finding) {
	applyScalars(existing, incoming, false)
	for k, v := range incoming.Extensions {
		if _, ok := existing.Extensions[k]; !ok {
			existing.Extensions[k] = v
		}
	}
}

// mergeEqual: same timestamp. Material disagreement on a scalar is a merge
// conflict, resolved deterministically: the record with more populated
// fields wins; on a draw the record processed later (incoming) wins.
func (m *Merger) mergeEqual(existing *domain.Finding, incoming domain.Finding) {
	incomingWins := incoming.PopulatedFields() >= existing.PopulatedFields()

	conflicts := conflictingScalars(existing, &incoming)
	if len(conflicts) > 0 {
		telemetry.MergeConflicts.Inc()
		slog.Warn("merge conflict resolved",
			"identity_key", existing.IdentityKey,
			"fields", conflicts,
			"winner_incoming", incomingWins)
	}

	if incomingWins {
		applyScalars(existing, incoming, true)
		existing.ReportedSeverity = incoming.ReportedSeverity
		existing.NormalizedSeverity = incoming.NormalizedSeverity
		existing.VRRScore = incoming.VRRScore
		existing.Complexity = incoming.Complexity
		for k, v := range incoming.Extensions {
			existing.Extensions[k] = v
		}
	} else {
		applyScalars(existing, incoming, false)
		for k, v := range incoming.Extensions {
			if _, ok := existing.Extensions[k]; !ok {
				existing.Extensions[k] = v
			}
		}
	}

	// Status keeps its precedence order on ties: an open finding never
	// silently closes because a same-timestamp duplicate said so.
	if incoming.Status.Precedence() > existing.Status.Precedence() {
		existing.Status = incoming.Status
	}
}

// applyScalars copies incoming scalar fields into existing. With overwrite,
// any non-empty incoming value replaces the current one; without it only
// empty fields are filled.
func applyScalars(existing *domain.Finding, incoming domain.Finding, overwrite bool) {
	set := func(dst *string, src string) {
		if src == "" {
			return
		}
		if overwrite || *dst == "" {
			*dst = src
		}
	}
	set(&existing.Host, incoming.Host)
	set(&existing.IPAddress, incoming.IPAddress)
	set(&existing.Port, incoming.Port)
	set(&existing.Protocol, incoming.Protocol)
	set(&existing.ScannerName, incoming.ScannerName)
	set(&existing.ScannerPluginID, incoming.ScannerPluginID)
	set(&existing.VulnerabilityName, incoming.VulnerabilityName)
	set(&existing.Description, incoming.Description)
}

// conflictingScalars lists fields where both records carry different
// non-empty values.
func conflictingScalars(a, b *domain.Finding) []string {
	var fields []string
	check := func(name, va, vb string) {
		if va != "" && vb != "" && va != vb {
			fields = append(fields, name)
		}
	}
	check("host", a.Host, b.Host)
	check("ip_address", a.IPAddress, b.IPAddress)
	check("port", a.Port, b.Port)
	check("protocol", a.Protocol, b.Protocol)
	check("vulnerability_name", a.VulnerabilityName, b.VulnerabilityName)
	check("description", a.Description, b.Description)
	check("severity", string(a.NormalizedSeverity), string(b.NormalizedSeverity))
	return fields
}

func unionStrings(a, b []string) []string {
	out := a
	for _, v := range b {
		found := false
		for _, existing := range out {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}

func cloneFinding(f domain.Finding) domain.Finding {
	out := f
	out.CVEs = append([]string(nil), f.CVEs...)
	out.Weaknesses = append([]string(nil), f.Weaknesses...)
	out.Patches = append([]string(nil), f.Patches...)
	out.Solutions = append([]string(nil), f.Solutions...)
	out.Extensions = make(map[string]string, len(f.Extensions))
	for k, v := range f.Extensions {
		out.Extensions[k] = v
	}
	return out
}
