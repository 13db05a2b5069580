package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// Reader implements ports.SourceReader: detection, container parsing and
// field mapping for uploaded scanner exports.
type Reader struct {
	detector *Detector
	mapper   *Mapper
}

// NewReader builds a Reader. minSignatureMatches <= 0 keeps the default.
func NewReader(minSignatureMatches int) *Reader {
	det := NewDetector()
	if minSignatureMatches > 0 {
		det.MinSignatureMatches = minSignatureMatches
	}
	return &Reader{detector: det, mapper: NewMapper()}
}

// Detect classifies the upload from its leading bytes and filename hint.
func (rd *Reader) Detect(prefix []byte, filename string) (domain.Detection, error) {
	return rd.detector.Detect(prefix, filename)
}

// Read streams mapped records from the container to fn.
func (rd *Reader) Read(ctx context.Context, det domain.Detection, r io.Reader, fn func(domain.MappedRecord) error) (int, error) {
	emit := func(row map[string]string) error {
		telemetry.RowsParsed.WithLabelValues(string(det.Format)).Inc()
		return fn(rd.mapper.Map(det.Format, row))
	}

	switch det.Container {
	case domain.ContainerCSV:
		return readCSV(ctx, r, emit)
	case domain.ContainerXML:
		return readXML(ctx, det.Format, r, emit)
	case domain.ContainerJSON:
		return readJSON(ctx, r, emit)
	default:
		return 0, fmt.Errorf("%w: container %q", domain.ErrUnsupportedFormat, det.Container)
	}
}
