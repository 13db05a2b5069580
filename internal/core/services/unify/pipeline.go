package unify

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
	"github.com/lcalzada-xor/vmap/internal/core/services/merge"
	"github.com/lcalzada-xor/vmap/internal/core/services/normalize"
	"github.com/lcalzada-xor/vmap/internal/core/services/scoring"
	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// detectPrefixSize bounds how much of the upload the detector inspects.
// 64 KiB covers any realistic header row or XML prolog.
const detectPrefixSize = 64 * 1024

// Pipeline is the end-to-end upload flow: detect, map, normalize, score,
// merge, publish. One Pipeline owns the current dataset; Process calls are
// serialized so concurrent uploads always merge against a consistent base.
type Pipeline struct {
	reader     ports.SourceReader
	normalizer *normalize.Normalizer
	scorer     *scoring.Scorer
	merger     *merge.Merger
	storage    ports.Storage
	notifier   ports.DatasetNotifier
	logger     *slog.Logger

	mu      sync.Mutex
	current *domain.Dataset
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithStorage persists each published dataset.
func WithStorage(s ports.Storage) Option {
	return func(p *Pipeline) { p.storage = s }
}

// WithNotifier broadcasts each published dataset.
func WithNotifier(n ports.DatasetNotifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline wires the upload flow. The scorer has already validated its
// weight profile.
func NewPipeline(reader ports.SourceReader, scorer *scoring.Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		reader:     reader,
		normalizer: normalize.New(),
		scorer:     scorer,
		merger:     merge.NewMerger(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the last published dataset, or nil before the first upload.
// The returned dataset is immutable; callers must not modify it.
func (p *Pipeline) Current() *domain.Dataset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Process ingests one uploaded file and merges it into the current dataset.
// An empty file publishes an empty batch (no error); an uninferrable
// container aborts with domain.ErrUnsupportedFormat and leaves the current
// dataset untouched.
func (p *Pipeline) Process(ctx context.Context, filename string, r io.Reader) (domain.ProcessResult, error) {
	ctx, span := otel.Tracer("vmap/pipeline").Start(ctx, "pipeline.Process")
	defer span.End()
	span.SetAttributes(attribute.String("upload.filename", filename))

	buffered := bufio.NewReaderSize(r, detectPrefixSize)
	prefix, err := buffered.Peek(detectPrefixSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		telemetry.UploadsRejected.WithLabelValues("read").Inc()
		return errorResult(err), err
	}

	// An empty upload is a valid no-op batch, not a malformed one.
	if len(prefix) == 0 {
		p.logger.Info("empty upload, publishing no-op batch", "filename", filename)
		return p.mergeAndPublish(ctx, filename, domain.Detection{
			Format:    domain.FormatUnknown,
			Container: domain.ContainerUnknown,
		}, nil, 0)
	}

	det, err := p.reader.Detect(prefix, filename)
	if err != nil {
		telemetry.UploadsRejected.WithLabelValues("format").Inc()
		p.logger.Warn("upload rejected", "filename", filename, "error", err)
		return errorResult(err), err
	}
	span.SetAttributes(
		attribute.String("upload.format", string(det.Format)),
		attribute.String("upload.container", string(det.Container)),
	)

	var batch []domain.Finding
	rows, err := p.reader.Read(ctx, det, buffered, func(rec domain.MappedRecord) error {
		f := p.normalizer.Normalize(det.Format, rec)
		p.scorer.Score(&f)
		batch = append(batch, f)
		return nil
	})
	if err != nil {
		telemetry.UploadsRejected.WithLabelValues("parse").Inc()
		return errorResult(err), err
	}

	return p.mergeAndPublish(ctx, filename, det, batch, rows)
}

// mergeAndPublish folds the batch into the current dataset under the pipeline
// lock and publishes the result atomically: storage write and the in-memory
// swap happen before the lock is released, so no reader ever observes a
// half-merged dataset. The notifier sees the immutable snapshot after the
// lock drops; a slow websocket client must not stall uploads or Current().
func (p *Pipeline) mergeAndPublish(ctx context.Context, filename string, det domain.Detection, batch []domain.Finding, rows int) (domain.ProcessResult, error) {
	// Duplicate identities inside the batch collapse first, so cross-batch
	// merging sees one record per identity key.
	deduped := p.merger.MergeAll(nil, batch)

	p.mu.Lock()

	var prior []domain.Finding
	prov := domain.Provenance{GeneratedAt: time.Now().UTC()}
	if p.current != nil {
		prior = p.current.Findings
		prov.SourceFiles = append(prov.SourceFiles, p.current.Provenance.SourceFiles...)
		prov.Formats = append(prov.Formats, p.current.Provenance.Formats...)
		prov.RowsRead = p.current.Provenance.RowsRead
	}
	prov.SourceFiles = appendLimited(prov.SourceFiles, filename)
	prov.Formats = appendUniqueString(prov.Formats, string(det.Format))
	prov.RowsRead += rows
	prov.RecordsBefore = len(prior) + len(batch)

	merged := p.merger.MergeAll(prior, deduped)
	ds := Build(merged, prov)

	if p.storage != nil {
		if err := p.storage.SaveDataset(ctx, ds); err != nil {
			// Persistence is best effort; the in-memory dataset is the
			// source of truth for the running process.
			p.logger.Error("dataset persistence failed", "dataset_id", ds.ID, "error", err)
		}
	}

	p.current = &ds
	telemetry.FilesProcessed.WithLabelValues(string(det.Format)).Inc()
	telemetry.DatasetsPublished.Inc()
	telemetry.FindingsCurrent.Set(float64(len(ds.Findings)))

	p.mu.Unlock()

	if p.notifier != nil {
		p.notifier.DatasetPublished(ds)
	}

	csvOut, err := CSVString(ds.Findings)
	if err != nil {
		return errorResult(err), err
	}

	summary := summarize(ds.Findings, batch, rows, prov.RecordsBefore)
	p.logger.Info("dataset published",
		"dataset_id", ds.ID,
		"filename", filename,
		"format", det.Format,
		"rows_read", rows,
		"findings", len(ds.Findings))

	return domain.ProcessResult{
		Data:    ds.Findings,
		CSV:     csvOut,
		Scanner: string(det.Format),
		Count:   len(ds.Findings),
		Summary: summary,
	}, nil
}

// summarize computes the post-upload counters the dashboard shows.
// RecordsMerged is how many input records collapsed into an existing
// identity instead of creating a new finding.
func summarize(all, batch []domain.Finding, rows, recordsBefore int) domain.UploadSummary {
	cves := make(map[string]bool)
	warnings := 0
	for i := range all {
		for _, cve := range all[i].CVEs {
			cves[cve] = true
		}
	}
	for i := range batch {
		for _, key := range []string{"date_parse_warning", "partial_field_loss"} {
			if _, ok := batch[i].Extensions[key]; ok {
				warnings++
			}
		}
	}
	merged := recordsBefore - len(all)
	if merged < 0 {
		merged = 0
	}
	return domain.UploadSummary{
		TotalInputRows:  rows,
		UniqueCVEsFound: len(cves),
		RecordsMerged:   merged,
		ParseWarnings:   warnings,
	}
}

func errorResult(err error) domain.ProcessResult {
	return domain.ProcessResult{Error: err.Error()}
}

// provenanceSourceLimit bounds the source-file history carried on every
// dataset; long-running deployments upload thousands of files.
const provenanceSourceLimit = 100

func appendLimited(list []string, v string) []string {
	list = append(list, v)
	if len(list) > provenanceSourceLimit {
		list = list[len(list)-provenanceSourceLimit:]
	}
	return list
}

func appendUniqueString(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
