// Package store persists JobRecords to a sqlite database via gorm,
// grounded on viewra's internal/database.TranscodeSession row shape
// and internal/modules/transcodingmodule/core/session.SessionStore{db,
// logger} wrapper.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/transcodecore/internal/core/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// jobRow is the gorm-mapped persisted form of a model.JobRecord. Config,
// Progress and Error are stored as JSON text, matching viewra's
// TranscodeSession.Request/Progress/Result columns, because JobConfig's
// EncoderParams.ExtraOpts map doesn't have a natural relational shape.
type jobRow struct {
	gorm.Model
	JobID      string `gorm:"column:job_id;uniqueIndex;type:varchar(64);not null"`
	State      string `gorm:"type:varchar(32);not null;index"`
	ConfigJSON string `gorm:"column:config_json;type:text"`
	ProgressJSON string `gorm:"column:progress_json;type:text"`
	ErrorJSON  string `gorm:"column:error_json;type:text"`
	StartedAt  *time.Time
	EndedAt    *time.Time
}

func (jobRow) TableName() string { return "jobs" }

func (r *jobRow) toRecord() (model.JobRecord, error) {
	rec := model.JobRecord{
		ID:        r.JobID,
		State:     model.JobState(r.State),
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		CreatedAt: r.CreatedAt,
	}
	if r.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(r.ConfigJSON), &rec.Config); err != nil {
			return model.JobRecord{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if r.ProgressJSON != "" {
		if err := json.Unmarshal([]byte(r.ProgressJSON), &rec.Progress); err != nil {
			return model.JobRecord{}, fmt.Errorf("unmarshal progress: %w", err)
		}
	}
	if r.ErrorJSON != "" {
		var e model.Error
		if err := json.Unmarshal([]byte(r.ErrorJSON), &e); err != nil {
			return model.JobRecord{}, fmt.Errorf("unmarshal error: %w", err)
		}
		rec.Error = &e
	}
	return rec, nil
}

// Store is the job persistence layer: one row per job, keyed by JobID.
type Store struct {
	db     *gorm.DB
	logger hclog.Logger
}

// Open runs the gorm AutoMigrate viewra's modules run at startup and
// returns a ready Store.
func Open(path string, logger hclog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&jobRow{}); err != nil {
		return nil, fmt.Errorf("migrate jobs table: %w", err)
	}
	return &Store{db: db, logger: logger.Named("job-store")}, nil
}

// NewWithDB builds a Store over an already-open, already-migrated *gorm.DB —
// used by tests and by callers sharing one database handle across stores.
func NewWithDB(db *gorm.DB, logger hclog.Logger) *Store {
	return &Store{db: db, logger: logger.Named("job-store")}
}

// Create inserts a new Prepared job row.
func (s *Store) Create(rec model.JobRecord) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	row := &jobRow{
		JobID:      rec.ID,
		State:      string(rec.State),
		ConfigJSON: string(configJSON),
	}
	if err := s.db.Create(row).Error; err != nil {
		return fmt.Errorf("insert job %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateProgress overwrites a job's progress snapshot; called at most once
// per scheduler burst.
func (s *Store) UpdateProgress(jobID string, p model.Progress) error {
	progressJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.db.Model(&jobRow{}).Where("job_id = ?", jobID).
		Update("progress_json", string(progressJSON)).Error
}

// UpdateState transitions a job's persisted state, stamping StartedAt on
// entry to Running and EndedAt on any terminal state. jobErr is stored
// whenever it is non-nil; Failed and Cancelled transitions both pass one.
func (s *Store) UpdateState(jobID string, state model.JobState, jobErr *model.Error) error {
	updates := map[string]interface{}{"state": string(state)}
	now := time.Now()
	switch state {
	case model.JobStateRunning:
		updates["started_at"] = now
	case model.JobStateCompleted, model.JobStateFailed, model.JobStateCancelled:
		updates["ended_at"] = now
	}
	if jobErr != nil {
		errJSON, err := json.Marshal(jobErr)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		updates["error_json"] = string(errJSON)
	}
	if err := s.db.Model(&jobRow{}).Where("job_id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update job %s state: %w", jobID, err)
	}
	return nil
}

// Get returns one job's persisted record.
func (s *Store) Get(jobID string) (model.JobRecord, error) {
	var row jobRow
	if err := s.db.Where("job_id = ?", jobID).First(&row).Error; err != nil {
		return model.JobRecord{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return row.toRecord()
}

// List returns every persisted job, most recently created first.
func (s *Store) List() ([]model.JobRecord, error) {
	var rows []jobRow
	if err := s.db.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]model.JobRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
