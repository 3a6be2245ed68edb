package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"social-scraper/pkg/models"
)

// Stats summarizes the stored history
type Stats struct {
	TotalRuns    int64                     `json:"total_runs"`
	TotalRecords int64                     `json:"total_records"`
	ByPlatform   map[models.Platform]int64 `json:"by_platform"`
	LastRunAt    *time.Time                `json:"last_run_at,omitempty"`
}

// SQLite implements the Storage interface using SQLite
type SQLite struct {
	db *gorm.DB
}

// NewSQLite creates a new SQLite storage
func NewSQLite(path string) (*SQLite, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	// Connect to database
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.ScrapeRun{},
		&models.StoredRecord{},
	); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveRun saves a run and upserts its records. A record already stored for
// the same source and item URL is overwritten with the newer values.
func (s *SQLite) SaveRun(run *models.ScrapeRun, table *models.Table) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(run).Error; err != nil {
			return fmt.Errorf("error saving run: %w", err)
		}
		if table == nil || table.Len() == 0 {
			return nil
		}

		// One statement cannot upsert the same row twice
		index := make(map[[2]string]int, table.Len())
		stored := make([]*models.StoredRecord, 0, table.Len())
		for _, rec := range table.Records {
			sr, err := toStored(run, rec)
			if err != nil {
				return err
			}
			k := [2]string{sr.SourceURL, sr.URL}
			if i, ok := index[k]; ok {
				stored[i] = sr
				continue
			}
			index[k] = len(stored)
			stored = append(stored, sr)
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_url"}, {Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"run_id", "platform", "kind", "record_values", "extra", "updated_at"}),
		}).Create(&stored).Error
		if err != nil {
			return fmt.Errorf("error saving records: %w", err)
		}
		return nil
	})
}

func toStored(run *models.ScrapeRun, rec *models.Record) (*models.StoredRecord, error) {
	values, err := json.Marshal(rec.Values)
	if err != nil {
		return nil, fmt.Errorf("error encoding record values: %w", err)
	}
	extra, err := json.Marshal(rec.Extra)
	if err != nil {
		return nil, fmt.Errorf("error encoding record extra: %w", err)
	}

	return &models.StoredRecord{
		RunID:     run.ID,
		Platform:  models.Platform(rec.Get(models.ColPlatform)),
		Kind:      models.Kind(rec.Get(models.ColKind)),
		SourceURL: rec.Get(models.ColSourceURL),
		URL:       rec.Get(models.ColURL),
		Values:    string(values),
		Extra:     string(extra),
	}, nil
}

// GetRun retrieves a run. A missing run is returned as nil without error.
func (s *SQLite) GetRun(id string) (*models.ScrapeRun, error) {
	var run models.ScrapeRun
	if err := s.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns lists the most recent runs first
func (s *SQLite) ListRuns(limit int) ([]*models.ScrapeRun, error) {
	var runs []*models.ScrapeRun
	query := s.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ListRecords lists records with filters
func (s *SQLite) ListRecords(filter models.RecordFilter) ([]*models.StoredRecord, error) {
	var records []*models.StoredRecord
	query := s.db.Model(&models.StoredRecord{})

	// Apply filters
	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	if filter.SourceURL != "" {
		query = query.Where("source_url = ?", filter.SourceURL)
	}

	query = query.Order("updated_at DESC, id DESC")

	// Apply pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// CountRecords counts stored records
func (s *SQLite) CountRecords() (int64, error) {
	var count int64
	if err := s.db.Model(&models.StoredRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetStats returns database statistics
func (s *SQLite) GetStats() (*Stats, error) {
	stats := &Stats{ByPlatform: make(map[models.Platform]int64)}

	if err := s.db.Model(&models.ScrapeRun{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.StoredRecord{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Platform models.Platform
		Count    int64
	}
	if err := s.db.Model(&models.StoredRecord{}).
		Select("platform, COUNT(*) AS count").
		Group("platform").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByPlatform[r.Platform] = r.Count
	}

	if stats.TotalRuns > 0 {
		var last models.ScrapeRun
		if err := s.db.Order("created_at DESC").First(&last).Error; err != nil {
			return nil, err
		}
		stats.LastRunAt = &last.CreatedAt
	}

	return stats, nil
}

// CleanupOldRuns removes runs and records older than the given age and
// returns the number of runs removed
func (s *SQLite) CleanupOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var removed int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("updated_at < ?", cutoff).Delete(&models.StoredRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("created_at < ?", cutoff).Delete(&models.ScrapeRun{})
		removed = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Close closes the storage connection
func (s *SQLite) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// ToTable rebuilds a table from stored records. Columns absent from a
// stored record are filled with placeholder.
func ToTable(columns []string, placeholder string, stored []*models.StoredRecord) (*models.Table, error) {
	table := models.NewTable(columns)
	for _, sr := range stored {
		var values map[string]string
		if err := json.Unmarshal([]byte(sr.Values), &values); err != nil {
			return nil, fmt.Errorf("error decoding record %d: %w", sr.ID, err)
		}
		var extra map[string]string
		if sr.Extra != "" {
			if err := json.Unmarshal([]byte(sr.Extra), &extra); err != nil {
				return nil, fmt.Errorf("error decoding record %d extra: %w", sr.ID, err)
			}
		}

		rec := &models.Record{Values: make(map[string]string, len(columns)), Extra: extra}
		for _, col := range columns {
			v, ok := values[col]
			if !ok {
				v = placeholder
			}
			rec.Values[col] = v
		}
		if err := table.Append(rec); err != nil {
			return nil, err
		}
	}
	return table, nil
}
