package storage

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
)

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// DatasetModel is the GORM model for published datasets.
type DatasetModel struct {
	ID            string `gorm:"primaryKey"`
	GeneratedAt   time.Time
	SourceFiles   string // JSON encoded []string
	Formats       string // JSON encoded []string
	RowsRead      int
	RecordsBefore int
	RecordsAfter  int

	Findings []FindingModel `gorm:"foreignKey:DatasetID"`
}

// FindingModel is the GORM model for unified findings. Set-valued fields and
// extensions are JSON encoded; SQLite has no native array type.
type FindingModel struct {
	ID          uint   `gorm:"primaryKey"`
	DatasetID   string `gorm:"index"`
	IdentityKey string `gorm:"index"`

	Host              string
	IPAddress         string
	Port              string
	Protocol          string
	ScannerName       string
	ScannerPluginID   string
	VulnerabilityName string
	Description       string

	ReportedSeverity   string
	NormalizedSeverity string
	VRRScore           float64
	Complexity         string
	Status             string
	UpdatedDate        time.Time

	CVEs       string // JSON encoded []string
	Weaknesses string // JSON encoded []string
	Patches    string // JSON encoded []string
	Solutions  string // JSON encoded []string
	Extensions string // JSON encoded map[string]string
}

// NewSQLiteAdapter initializes the database and migrates schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&DatasetModel{}, &FindingModel{}); err != nil {
		return nil, err
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_findings_severity ON finding_models(normalized_severity)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_findings_vrr ON finding_models(vrr_score)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_datasets_generated ON dataset_models(generated_at)")

	return &SQLiteAdapter{db: db}, nil
}

// SaveDataset persists a published dataset and its findings in one
// transaction. Re-saving the same ID replaces its findings.
func (a *SQLiteAdapter) SaveDataset(ctx context.Context, ds domain.Dataset) error {
	model, findings := toModel(ds)

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Where("dataset_id = ?", ds.ID).Delete(&FindingModel{}).Error; err != nil {
			return err
		}
		if len(findings) == 0 {
			return nil
		}
		return tx.CreateInBatches(findings, 100).Error
	})
}

// GetDataset retrieves one dataset with its findings, ordered as published.
func (a *SQLiteAdapter) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	var model DatasetModel
	err := a.db.WithContext(ctx).
		Preload("Findings", func(db *gorm.DB) *gorm.DB {
			return db.Order("vrr_score DESC, identity_key ASC")
		}).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	ds := toDomain(model)
	return &ds, nil
}

// ListDatasets returns dataset headers (no findings), newest first.
func (a *SQLiteAdapter) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	var models []DatasetModel
	if err := a.db.WithContext(ctx).Order("generated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	datasets := make([]domain.Dataset, len(models))
	for i, m := range models {
		datasets[i] = toDomain(m)
	}
	return datasets, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ ports.Storage = (*SQLiteAdapter)(nil)
