package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// DefaultMinSignatureMatches is how many of a format's signature columns a
// CSV header must carry before the file is attributed to that scanner.
const DefaultMinSignatureMatches = 3

// xmlRoots maps recognized XML root elements to scanner formats.
var xmlRoots = map[string]domain.ScannerFormat{
	"NessusClientData_v2": domain.FormatNessus,
	"ASSET_DATA_REPORT":   domain.FormatQualys,
	"SCAN":                domain.FormatQualys,
}

// csvSignatures lists the header columns characteristic of each CSV format.
// Matching is case-insensitive; the format with the most hits wins.
var csvSignatures = map[domain.ScannerFormat][]string{
	domain.FormatNessus: {
		"Plugin ID", "CVE", "CVSS", "Risk", "Host", "Protocol", "Port",
		"Name", "Synopsis", "Description", "Solution", "See Also", "Plugin Output",
	},
	domain.FormatQualys: {
		"QID", "Title", "Severity", "IP", "DNS", "Protocol", "Port",
		"Diagnosis", "Solution", "CVE ID", "Vuln Status", "CVSS Base", "Results", "Last Detected",
	},
	domain.FormatUnified: {
		"Host Findings ID", "VRR Score", "Scanner Name", "Scanner plugin ID",
		"Scanner Reported Severity", "Normalized Severity", "Attack Complexity", "CVE IDs",
	},
}

// jsonSignatures lists top-level object keys characteristic of each JSON
// format. An array input is probed through its first element.
var jsonSignatures = map[domain.ScannerFormat][]string{
	domain.FormatXForce: {"xfdbid", "risk_level", "remedy", "ibm_attack_complexity"},
}

// Detector classifies uploads by container and scanner format.
type Detector struct {
	// MinSignatureMatches overrides DefaultMinSignatureMatches when > 0.
	MinSignatureMatches int
}

func NewDetector() *Detector {
	return &Detector{MinSignatureMatches: DefaultMinSignatureMatches}
}

func (d *Detector) minMatches() int {
	if d.MinSignatureMatches > 0 {
		return d.MinSignatureMatches
	}
	return DefaultMinSignatureMatches
}

// Detect classifies the input. Detection order: XML root element, CSV header
// signature, JSON shape, then container inference from the leading bytes.
// Container detection takes precedence over content heuristics: an XML file
// with an unrecognized root never falls back to CSV matching.
func (d *Detector) Detect(prefix []byte, filename string) (domain.Detection, error) {
	trimmed := bytes.TrimLeft(prefix, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 {
		return domain.Detection{}, fmt.Errorf("%w: empty input", domain.ErrUnsupportedFormat)
	}
	if !utf8.Valid(trimmed) {
		return domain.Detection{}, fmt.Errorf("%w: binary input", domain.ErrUnsupportedFormat)
	}

	ext := strings.ToLower(filepath.Ext(filename))

	// XML container: classify by root element or reject. Generic row
	// extraction from arbitrary XML is not possible, so an unknown root is
	// a hard stop rather than a generic-mapper fallback.
	if trimmed[0] == '<' || ext == ".xml" || ext == ".nessus" {
		root, err := xmlRootElement(trimmed)
		if err != nil {
			return domain.Detection{}, fmt.Errorf("%w: malformed XML: %v", domain.ErrUnsupportedFormat, err)
		}
		if format, ok := xmlRoots[root]; ok {
			return domain.Detection{Format: format, Container: domain.ContainerXML}, nil
		}
		return domain.Detection{}, fmt.Errorf("%w: unrecognized XML root element %q", domain.ErrUnsupportedFormat, root)
	}

	// JSON container.
	if trimmed[0] == '{' || trimmed[0] == '[' {
		format := d.classifyJSON(trimmed)
		return domain.Detection{Format: format, Container: domain.ContainerJSON}, nil
	}

	// CSV container: needs a plausible header row.
	if header, ok := csvHeader(trimmed); ok {
		return domain.Detection{Format: d.classifyCSVHeader(header), Container: domain.ContainerCSV}, nil
	}

	return domain.Detection{}, fmt.Errorf("%w: container could not be inferred", domain.ErrUnsupportedFormat)
}

// classifyCSVHeader attributes a header row to the scanner with the most
// signature column hits, requiring at least minMatches of them.
func (d *Detector) classifyCSVHeader(header []string) domain.ScannerFormat {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.ToLower(strings.TrimSpace(col))] = true
	}

	best := domain.FormatUnknown
	bestScore := 0
	for format, signature := range csvSignatures {
		score := 0
		for _, col := range signature {
			if present[strings.ToLower(col)] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = format, score
		}
	}

	if bestScore < d.minMatches() {
		return domain.FormatUnknown
	}
	return best
}

// classifyJSON probes the top-level shape for recognized keys.
func (d *Detector) classifyJSON(prefix []byte) domain.ScannerFormat {
	keys := jsonProbeKeys(prefix)
	if len(keys) == 0 {
		return domain.FormatUnknown
	}
	for format, signature := range jsonSignatures {
		for _, sig := range signature {
			if keys[sig] {
				return format
			}
		}
	}
	return domain.FormatUnknown
}

// xmlRootElement returns the name of the first start element.
func xmlRootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("no root element")
		}
		if err != nil {
			// A truncated prefix is fine as long as the root start
			// element was already seen; anything before it is not.
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// csvHeader parses the first line as a CSV header. A single column with no
// comma anywhere in the prefix is not row-structured enough to count as CSV.
func csvHeader(data []byte) ([]string, bool) {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if !bytes.ContainsRune(line, ',') {
		return nil, false
	}
	reader := csv.NewReader(bytes.NewReader(line))
	header, err := reader.Read()
	if err != nil || len(header) < 2 {
		return nil, false
	}
	return header, true
}

// jsonProbeKeys returns the top-level key set of the first object in the
// prefix (the value itself, or the first element of an array). Token walking
// tolerates a truncated prefix; nested values are skipped whole.
func jsonProbeKeys(prefix []byte) map[string]bool {
	dec := json.NewDecoder(bytes.NewReader(prefix))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	if delim == '[' {
		tok, err = dec.Token()
		if err != nil {
			return nil
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil
		}
	} else if delim != '{' {
		return nil
	}

	keys := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		key, ok := tok.(string)
		if !ok {
			break
		}
		keys[strings.ToLower(key)] = true
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			break
		}
	}
	return keys
}
