package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

func collectRows(t *testing.T, det domain.Detection, input string) []domain.MappedRecord {
	t.Helper()
	rd := NewReader(0)

	var records []domain.MappedRecord
	_, err := rd.Read(context.Background(), det, strings.NewReader(input), func(rec domain.MappedRecord) error {
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	return records
}

func TestReadCSVStripsBOMAndHandlesRaggedRows(t *testing.T) {
	input := "\ufeffPlugin ID,CVE,Risk,Host,Port\n" +
		"19506,CVE-2024-0001,High,web01,443\n" +
		"10180,,Low,web02\n" // short row

	det := domain.Detection{Format: domain.FormatNessus, Container: domain.ContainerCSV}
	records := collectRows(t, det, input)

	require.Len(t, records, 2)
	assert.Equal(t, "19506", records[0].Fields[domain.FieldPluginID])
	assert.Equal(t, "CVE-2024-0001", records[0].Fields[domain.FieldCVE])
	assert.Equal(t, "web02", records[1].Fields[domain.FieldHost])
	assert.Empty(t, records[1].Fields[domain.FieldPort])
}

func TestReadCSVQuotedFields(t *testing.T) {
	input := `Plugin ID,Risk,Host,Name,Description
19506,High,web01,"Name, with comma","Line one
line two"
`
	det := domain.Detection{Format: domain.FormatNessus, Container: domain.ContainerCSV}
	records := collectRows(t, det, input)

	require.Len(t, records, 1)
	assert.Equal(t, "Name, with comma", records[0].Fields[domain.FieldName])
	assert.Contains(t, records[0].Fields[domain.FieldDescription], "line two")
}

func TestReadCSVContextCancellation(t *testing.T) {
	rd := NewReader(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	det := domain.Detection{Format: domain.FormatNessus, Container: domain.ContainerCSV}
	_, err := rd.Read(ctx, det, strings.NewReader("Plugin ID,Risk\n1,High\n"), func(domain.MappedRecord) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadNessusXML(t *testing.T) {
	input := `<?xml version="1.0"?>
<NessusClientData_v2>
  <Report name="weekly">
    <ReportHost name="web01.example.com">
      <ReportItem port="443" protocol="tcp" pluginID="19506" pluginName="TLS Weakness" severity="3">
        <risk_factor>High</risk_factor>
        <cve>CVE-2024-0001</cve>
        <cve>CVE-2024-0002</cve>
        <description>TLS config issue</description>
        <solution>Harden TLS</solution>
      </ReportItem>
      <ReportItem port="0" protocol="tcp" pluginID="10180" pluginName="Ping" severity="0">
        <risk_factor>None</risk_factor>
      </ReportItem>
    </ReportHost>
  </Report>
</NessusClientData_v2>`

	det := domain.Detection{Format: domain.FormatNessus, Container: domain.ContainerXML}
	records := collectRows(t, det, input)

	require.Len(t, records, 2)
	assert.Equal(t, "web01.example.com", records[0].Fields[domain.FieldHost])
	assert.Equal(t, "19506", records[0].Fields[domain.FieldPluginID])
	assert.Equal(t, "High", records[0].Fields[domain.FieldSeverity])
	assert.Contains(t, records[0].Fields[domain.FieldCVE], "CVE-2024-0001")
	assert.Contains(t, records[0].Fields[domain.FieldCVE], "CVE-2024-0002")

	// severity 0 with risk_factor None falls back to the numeric scale.
	assert.Equal(t, "Info", records[1].Fields[domain.FieldSeverity])
}

func TestReadQualysXML(t *testing.T) {
	input := `<?xml version="1.0"?>
<SCAN>
  <IP value="10.0.0.5" name="db01.internal">
    <VULN>
      <QID>38170</QID>
      <TITLE>SSL Certificate Expired</TITLE>
      <SEVERITY>4</SEVERITY>
      <PORT>443</PORT>
      <PROTOCOL>tcp</PROTOCOL>
      <DIAGNOSIS>The certificate has expired.</DIAGNOSIS>
      <SOLUTION>Renew it.</SOLUTION>
      <LAST_UPDATE>2024-02-01</LAST_UPDATE>
      <CVE_ID_LIST><CVE><ID>CVE-2024-0099</ID></CVE></CVE_ID_LIST>
    </VULN>
  </IP>
</SCAN>`

	det := domain.Detection{Format: domain.FormatQualys, Container: domain.ContainerXML}
	records := collectRows(t, det, input)

	require.Len(t, records, 1)
	assert.Equal(t, "db01.internal", records[0].Fields[domain.FieldHost])
	assert.Equal(t, "10.0.0.5", records[0].Fields[domain.FieldIPAddress])
	assert.Equal(t, "38170", records[0].Fields[domain.FieldPluginID])
	assert.Equal(t, "CVE-2024-0099", records[0].Fields[domain.FieldCVE])
	assert.Equal(t, "2024-02-01", records[0].Fields[domain.FieldUpdated])
}

func TestReadJSONTopLevelArray(t *testing.T) {
	input := `[
	  {"xfdbid": "1111", "title": "Issue A", "risk_level": "high", "host": "web01", "cvss": {"score": "7.5"}},
	  {"xfdbid": "2222", "title": "Issue B", "risk_level": "low", "host": "web02", "stdcode": ["CVE-2024-0010", "CVE-2024-0011"]}
	]`

	det := domain.Detection{Format: domain.FormatXForce, Container: domain.ContainerJSON}
	records := collectRows(t, det, input)

	require.Len(t, records, 2)
	assert.Equal(t, "1111", records[0].Fields[domain.FieldPluginID])
	assert.Equal(t, "high", records[0].Fields[domain.FieldSeverity])
	// Nested cvss.score flattens into the dotted key the mapper claims.
	assert.Equal(t, "7.5", records[0].Fields[domain.FieldScannerSeverity])
	// Arrays of primitives join; the mapper reads stdcode as CVE.
	assert.Equal(t, "CVE-2024-0010, CVE-2024-0011", records[1].Fields[domain.FieldCVE])
}

func TestReadJSONObjectWrapper(t *testing.T) {
	input := `{"scan_id": "abc", "vulnerabilities": [{"xfdbid": "1111", "title": "Issue A", "risk_level": "medium"}]}`

	det := domain.Detection{Format: domain.FormatXForce, Container: domain.ContainerJSON}
	records := collectRows(t, det, input)

	require.Len(t, records, 1)
	assert.Equal(t, "Issue A", records[0].Fields[domain.FieldName])
}

func TestReadJSONSingleObject(t *testing.T) {
	input := `{"xfdbid": "9999", "title": "Lone Finding", "risk_level": "critical"}`

	det := domain.Detection{Format: domain.FormatXForce, Container: domain.ContainerJSON}
	records := collectRows(t, det, input)

	require.Len(t, records, 1)
	assert.Equal(t, "Lone Finding", records[0].Fields[domain.FieldName])
	assert.Equal(t, "critical", records[0].Fields[domain.FieldSeverity])
}
