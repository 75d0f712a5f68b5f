package relica

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// JobRepository implements notify.JobRepository using Relica.
type JobRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewJobRepository creates a new JobRepository with default table prefix.
func NewJobRepository(sqlDB *sql.DB, driverName string) *JobRepository {
	return NewJobRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewJobRepositoryWithPrefix creates a new JobRepository with custom table prefix.
func NewJobRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *JobRepository {
	return &JobRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *JobRepository) tableName() string {
	return r.tablePrefix + "digest_job"
}

// Load retrieves a job by ID.
func (r *JobRepository) Load(ctx context.Context, id int64) (model.DigestJob, error) {
	var job model.DigestJob
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&job)
	if err != nil {
		return job, loadErr(err, "failed to load digest job")
	}
	return job, nil
}

// Save creates a new job. Jobs are never updated.
func (r *JobRepository) Save(ctx context.Context, m model.DigestJob) (model.DigestJob, error) {
	if m.ID != 0 {
		return m, notify.NewError(notify.ErrCodeValidation, "digest jobs are immutable")
	}
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
		return m, insertErr(err, "failed to insert digest job")
	}
	return m, nil
}

// Delete removes a job.
func (r *JobRepository) Delete(ctx context.Context, m model.DigestJob) error {
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Delete(); err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to delete digest job", err)
	}
	return nil
}

// FindOutdatedJobs finds jobs created more than days ago, oldest first.
// The cutoff is computed here so the query stays portable across drivers.
func (r *JobRepository) FindOutdatedJobs(ctx context.Context, days int) ([]model.DigestJob, error) {
	var jobs []model.DigestJob
	cutoff := time.Now().AddDate(0, 0, -days)
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("created_at < ?", cutoff).
		OrderBy("created_at ASC").
		WithContext(ctx).
		All(&jobs)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find outdated jobs", err)
	}
	if len(jobs) == 0 {
		return nil, notify.ErrNoData
	}
	return jobs, nil
}
