package unify

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// csvColumns is the stable canonical column order of the unified CSV.
// Downstream consumers re-upload edited copies of this artifact, so the
// order is part of the contract and never changes between runs. Extension
// columns follow, as the sorted union of all extension keys seen.
var csvColumns = []string{
	"Host Findings ID",
	"VRR Score",
	"Scanner Name",
	"Scanner plugin ID",
	"Vulnerability name",
	"Scanner Reported Severity",
	"Normalized Severity",
	"Attack Complexity",
	"Status",
	"CVE IDs",
	"Host",
	"IPAddress",
	"Port",
	"Protocol",
	"Weaknesses",
	"Possible patches",
	"Possible Solutions",
	"Description",
	"date_updated",
}

// hostFindingsIDKey has a dedicated canonical column; it is skipped when
// extension columns are emitted.
const hostFindingsIDKey = "host_findings_id"

// Build assembles an immutable dataset from merged findings: deterministic
// order (VRR descending, identity key ascending on ties) plus provenance.
func Build(findings []domain.Finding, prov domain.Provenance) domain.Dataset {
	ordered := make([]domain.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].VRRScore != ordered[j].VRRScore {
			return ordered[i].VRRScore > ordered[j].VRRScore
		}
		return ordered[i].IdentityKey < ordered[j].IdentityKey
	})

	if prov.GeneratedAt.IsZero() {
		prov.GeneratedAt = time.Now().UTC()
	}
	prov.RecordsAfter = len(ordered)

	return domain.Dataset{
		ID:         uuid.NewString(),
		Findings:   ordered,
		Provenance: prov,
	}
}

// WriteCSV serializes findings as the unified CSV artifact. Quoting follows
// RFC 4180 via encoding/csv; embedded newlines, commas and quotes survive.
func WriteCSV(w io.Writer, findings []domain.Finding) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	extKeys := extensionColumns(findings)

	header := append(append([]string{}, csvColumns...), extKeys...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := range findings {
		f := &findings[i]
		row := []string{
			f.Extensions[hostFindingsIDKey],
			strconv.FormatFloat(f.VRRScore, 'f', 2, 64),
			f.ScannerName,
			f.ScannerPluginID,
			f.VulnerabilityName,
			string(f.ReportedSeverity),
			string(f.NormalizedSeverity),
			string(f.Complexity),
			string(f.Status),
			strings.Join(f.CVEs, ", "),
			f.Host,
			f.IPAddress,
			f.Port,
			f.Protocol,
			strings.Join(f.Weaknesses, ", "),
			strings.Join(f.Patches, ", "),
			strings.Join(f.Solutions, "; "),
			f.Description,
			f.UpdatedDate.UTC().Format(time.RFC3339),
		}
		for _, key := range extKeys {
			row = append(row, f.Extensions[key])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

// CSVString renders the unified CSV into memory for the upload response.
func CSVString(findings []domain.Finding) (string, error) {
	var b strings.Builder
	if err := WriteCSV(&b, findings); err != nil {
		return "", fmt.Errorf("building unified CSV: %w", err)
	}
	return b.String(), nil
}

// extensionColumns returns the sorted union of extension keys across all
// findings.
func extensionColumns(findings []domain.Finding) []string {
	seen := make(map[string]bool)
	for i := range findings {
		for key := range findings[i].Extensions {
			if key != hostFindingsIDKey {
				seen[key] = true
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
