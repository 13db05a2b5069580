package storage

import (
	"encoding/json"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// toModel converts a domain dataset to database models.
func toModel(ds domain.Dataset) (DatasetModel, []FindingModel) {
	model := DatasetModel{
		ID:            ds.ID,
		GeneratedAt:   ds.Provenance.GeneratedAt,
		SourceFiles:   encodeJSON(ds.Provenance.SourceFiles),
		Formats:       encodeJSON(ds.Provenance.Formats),
		RowsRead:      ds.Provenance.RowsRead,
		RecordsBefore: ds.Provenance.RecordsBefore,
		RecordsAfter:  ds.Provenance.RecordsAfter,
	}

	findings := make([]FindingModel, len(ds.Findings))
	for i, f := range ds.Findings {
		findings[i] = FindingModel{
			DatasetID:          ds.ID,
			IdentityKey:        f.IdentityKey,
			Host:               f.Host,
			IPAddress:          f.IPAddress,
			Port:               f.Port,
			Protocol:           f.Protocol,
			ScannerName:        f.ScannerName,
			ScannerPluginID:    f.ScannerPluginID,
			VulnerabilityName:  f.VulnerabilityName,
			Description:        f.Description,
			ReportedSeverity:   string(f.ReportedSeverity),
			NormalizedSeverity: string(f.NormalizedSeverity),
			VRRScore:           f.VRRScore,
			Complexity:         string(f.Complexity),
			Status:             string(f.Status),
			UpdatedDate:        f.UpdatedDate,
			CVEs:               encodeJSON(f.CVEs),
			Weaknesses:         encodeJSON(f.Weaknesses),
			Patches:            encodeJSON(f.Patches),
			Solutions:          encodeJSON(f.Solutions),
			Extensions:         encodeJSON(f.Extensions),
		}
	}
	return model, findings
}

// toDomain converts a database model back to a domain dataset.
func toDomain(m DatasetModel) domain.Dataset {
	ds := domain.Dataset{
		ID: m.ID,
		Provenance: domain.Provenance{
			SourceFiles:   decodeStrings(m.SourceFiles),
			Formats:       decodeStrings(m.Formats),
			RowsRead:      m.RowsRead,
			RecordsBefore: m.RecordsBefore,
			RecordsAfter:  m.RecordsAfter,
			GeneratedAt:   m.GeneratedAt,
		},
	}

	if len(m.Findings) > 0 {
		ds.Findings = make([]domain.Finding, len(m.Findings))
		for i, fm := range m.Findings {
			ds.Findings[i] = domain.Finding{
				IdentityKey:        fm.IdentityKey,
				Host:               fm.Host,
				IPAddress:          fm.IPAddress,
				Port:               fm.Port,
				Protocol:           fm.Protocol,
				ScannerName:        fm.ScannerName,
				ScannerPluginID:    fm.ScannerPluginID,
				VulnerabilityName:  fm.VulnerabilityName,
				Description:        fm.Description,
				ReportedSeverity:   domain.Severity(fm.ReportedSeverity),
				NormalizedSeverity: domain.Severity(fm.NormalizedSeverity),
				VRRScore:           fm.VRRScore,
				Complexity:         domain.AttackComplexity(fm.Complexity),
				Status:             domain.FindingStatus(fm.Status),
				UpdatedDate:        fm.UpdatedDate,
				CVEs:               decodeStrings(fm.CVEs),
				Weaknesses:         decodeStrings(fm.Weaknesses),
				Patches:            decodeStrings(fm.Patches),
				Solutions:          decodeStrings(fm.Solutions),
				Extensions:         decodeMap(fm.Extensions),
			}
		}
	}
	return ds
}

func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeStrings(raw string) []string {
	if raw == "" || raw == "null" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func decodeMap(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" || raw == "null" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
