package domain

// Canonical field keys produced by the field mappers. The normalizer only
// ever reads these keys; everything else a source row carried travels in
// MappedRecord.Extensions.
const (
	FieldCVE             = "cve_id"
	FieldScanner         = "scanner_name"
	FieldHost            = "host"
	FieldIPAddress       = "ip_address"
	FieldPort            = "port"
	FieldProtocol        = "protocol"
	FieldPluginID        = "scanner_plugin_id"
	FieldName            = "vulnerability_name"
	FieldDescription     = "description"
	FieldSeverity        = "scanner_reported_severity"
	FieldScannerSeverity = "scanner_severity"
	FieldStatus          = "status"
	FieldUpdated         = "date_updated"
	FieldSolution        = "solution"
	FieldPatch           = "patch"
	FieldWeakness        = "cwe"
	FieldPluginOutput    = "plugin_output"
)

// CanonicalFields lists every key a mapping table may claim.
var CanonicalFields = []string{
	FieldCVE, FieldScanner, FieldHost, FieldIPAddress, FieldPort, FieldProtocol,
	FieldPluginID, FieldName, FieldDescription, FieldSeverity,
	FieldScannerSeverity, FieldStatus, FieldUpdated, FieldSolution,
	FieldPatch, FieldWeakness, FieldPluginOutput,
}

// Detection is the outcome of format sniffing on an uploaded file.
type Detection struct {
	Format    ScannerFormat `json:"format"`
	Container Container     `json:"container"`
}

// MappedRecord is one loosely-typed source row after field mapping:
// canonical keys in Fields, unclaimed source keys verbatim in Extensions.
type MappedRecord struct {
	Fields     map[string]string
	Extensions map[string]string
}

// NewMappedRecord returns a record with both maps allocated.
func NewMappedRecord() MappedRecord {
	return MappedRecord{
		Fields:     make(map[string]string),
		Extensions: make(map[string]string),
	}
}
