package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// nessusReportItem is one <ReportItem> inside a <ReportHost>.
type nessusReportItem struct {
	Port         string   `xml:"port,attr"`
	Protocol     string   `xml:"protocol,attr"`
	PluginID     string   `xml:"pluginID,attr"`
	PluginName   string   `xml:"pluginName,attr"`
	Severity     string   `xml:"severity,attr"`
	RiskFactor   string   `xml:"risk_factor"`
	CVEs         []string `xml:"cve"`
	CWEs         []string `xml:"cwe"`
	Description  string   `xml:"description"`
	Synopsis     string   `xml:"synopsis"`
	Solution     string   `xml:"solution"`
	SeeAlso      string   `xml:"see_also"`
	PluginOutput string   `xml:"plugin_output"`
	CVSSScore    string   `xml:"cvss3_base_score"`
	PatchDate    string   `xml:"patch_publication_date"`
	LastModified string   `xml:"plugin_modification_date"`
}

// qualysVuln is one <VULN> element inside an <IP> block of a Qualys scan
// report, or inside <VULN_INFO_LIST> of an asset data report.
type qualysVuln struct {
	QID          string `xml:"QID"`
	Title        string `xml:"TITLE"`
	Severity     string `xml:"SEVERITY"`
	Port         string `xml:"PORT"`
	Protocol     string `xml:"PROTOCOL"`
	Diagnosis    string `xml:"DIAGNOSIS"`
	Solution     string `xml:"SOLUTION"`
	Result       string `xml:"RESULT"`
	LastUpdate   string `xml:"LAST_UPDATE"`
	CVSSBase     string `xml:"CVSS_BASE"`
	VulnStatus   string `xml:"VULN_STATUS"`
	CVEList      struct {
		IDs []string `xml:"CVE>ID"`
	} `xml:"CVE_ID_LIST"`
}

// readXML streams findings rows from a recognized scanner XML export.
// Token-level decoding keeps memory bounded: only one report item is
// materialized at a time, however large the file.
func readXML(ctx context.Context, format domain.ScannerFormat, r io.Reader, fn func(map[string]string) error) (int, error) {
	switch format {
	case domain.FormatNessus:
		return readNessusXML(ctx, r, fn)
	case domain.FormatQualys:
		return readQualysXML(ctx, r, fn)
	default:
		return 0, fmt.Errorf("%w: no XML reader for format %q", domain.ErrUnsupportedFormat, format)
	}
}

func readNessusXML(ctx context.Context, r io.Reader, fn func(map[string]string) error) (int, error) {
	dec := xml.NewDecoder(r)
	rows := 0
	host := ""

	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("decoding Nessus XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "ReportHost":
			host = xmlAttr(start, "name")
		case "ReportItem":
			var item nessusReportItem
			if err := dec.DecodeElement(&item, &start); err != nil {
				return rows, fmt.Errorf("decoding ReportItem: %w", err)
			}
			rows++
			if err := fn(nessusRow(host, item)); err != nil {
				return rows, err
			}
		}
	}
}

func nessusRow(host string, item nessusReportItem) map[string]string {
	risk := item.RiskFactor
	if risk == "" || strings.EqualFold(risk, "None") {
		risk = nessusSeverityName(item.Severity)
	}
	row := map[string]string{
		"Host":          host,
		"Port":          item.Port,
		"Protocol":      item.Protocol,
		"Plugin ID":     item.PluginID,
		"Name":          item.PluginName,
		"Risk":          risk,
		"CVE":           strings.Join(item.CVEs, ", "),
		"CWE":           strings.Join(item.CWEs, ", "),
		"Description":   item.Description,
		"Synopsis":      item.Synopsis,
		"Solution":      item.Solution,
		"See Also":      item.SeeAlso,
		"Plugin Output": item.PluginOutput,
	}
	if item.CVSSScore != "" {
		row["CVSS v3.0 Base Score"] = item.CVSSScore
	}
	if item.LastModified != "" {
		row["Plugin Modification Date"] = item.LastModified
	}
	if item.PatchDate != "" {
		row["Patch Publication Date"] = item.PatchDate
	}
	return row
}

// nessusSeverityName maps the numeric severity attribute (0-4) used when
// risk_factor is absent.
func nessusSeverityName(severity string) string {
	switch severity {
	case "4":
		return "Critical"
	case "3":
		return "High"
	case "2":
		return "Medium"
	case "1":
		return "Low"
	default:
		return "Info"
	}
}

func readQualysXML(ctx context.Context, r io.Reader, fn func(map[string]string) error) (int, error) {
	dec := xml.NewDecoder(r)
	rows := 0
	ip := ""
	dns := ""

	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("decoding Qualys XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "IP":
			ip = xmlAttr(start, "value")
			dns = xmlAttr(start, "name")
		case "VULN", "VULN_INFO":
			var vuln qualysVuln
			if err := dec.DecodeElement(&vuln, &start); err != nil {
				return rows, fmt.Errorf("decoding Qualys VULN: %w", err)
			}
			rows++
			if err := fn(qualysRow(ip, dns, vuln)); err != nil {
				return rows, err
			}
		}
	}
}

func qualysRow(ip, dns string, vuln qualysVuln) map[string]string {
	return map[string]string{
		"IP":            ip,
		"DNS":           dns,
		"QID":           vuln.QID,
		"Title":         vuln.Title,
		"Severity":      vuln.Severity,
		"Port":          vuln.Port,
		"Protocol":      vuln.Protocol,
		"Diagnosis":     vuln.Diagnosis,
		"Solution":      vuln.Solution,
		"Results":       vuln.Result,
		"Last Detected": vuln.LastUpdate,
		"CVSS Base":     vuln.CVSSBase,
		"Vuln Status":   vuln.VulnStatus,
		"CVE ID":        strings.Join(vuln.CVEList.IDs, ", "),
	}
}

func xmlAttr(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
