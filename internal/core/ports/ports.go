package ports

import (
	"context"
	"io"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

// Pipeline runs uploaded scanner exports through detection, mapping,
// normalization, scoring and merging, and publishes unified datasets.
type Pipeline interface {
	// Process ingests one file and merges it into the current dataset.
	// Row-level problems are recovered in place; only an uninferrable
	// container aborts the file (domain.ErrUnsupportedFormat).
	Process(ctx context.Context, filename string, r io.Reader) (domain.ProcessResult, error)

	// Current returns the last published dataset, or nil before the first
	// successful upload.
	Current() *domain.Dataset
}

// SourceReader turns raw scanner exports into mapped records.
type SourceReader interface {
	// Detect classifies the scanner format and container from a prefix of
	// the file plus the filename hint. Only an uninferrable container is an
	// error; an unknown scanner with a known container is a normal result.
	Detect(prefix []byte, filename string) (domain.Detection, error)

	// Read streams mapped records to fn, one per finding row. It returns
	// the number of source rows read. fn returning an error aborts the read.
	Read(ctx context.Context, det domain.Detection, r io.Reader, fn func(domain.MappedRecord) error) (int, error)
}

// Storage persists published datasets and their findings.
type Storage interface {
	SaveDataset(ctx context.Context, ds domain.Dataset) error
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)
	Close() error
}

// DatasetNotifier receives the new dataset after each atomic publish.
// Implementations must not block the pipeline.
type DatasetNotifier interface {
	DatasetPublished(ds domain.Dataset)
}
