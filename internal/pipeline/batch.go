package pipeline

import (
	"context"
	"fmt"
	"time"

	"social-scraper/pkg/models"
)

// JobStatus represents the status of a batch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusPartial   JobStatus = "partial"
)

// BatchItem is one link of a batch
type BatchItem struct {
	URL      string
	Platform models.Platform
}

// BatchProgress tracks progress of a batch job
type BatchProgress struct {
	Total      int
	Completed  int
	Failed     int
	Skipped    int
	Percentage float64
}

// BatchResult represents the result of a single link in a batch
type BatchResult struct {
	URL       string
	RunID     string
	Status    string
	Records   int
	Error     error
	ErrorKind string
	Duration  time.Duration
}

// BatchJob is a list of links scraped one after another into one table
type BatchJob struct {
	ID          string
	Items       []BatchItem
	Status      JobStatus
	Progress    BatchProgress
	Results     []BatchResult
	Table       *models.Table
	StartedAt   time.Time
	CompletedAt *time.Time
}

// ProgressFunc is called after every link of a batch
type ProgressFunc func(job *BatchJob, result BatchResult)

// RunBatch scrapes every item in order, holding the pipeline for the whole
// batch. A failing link is recorded and the batch continues; cancelling ctx
// skips the remaining links.
func (p *Pipeline) RunBatch(ctx context.Context, items []BatchItem, maxItems int, progress ProgressFunc) (*BatchJob, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no links to scrape")
	}

	job := &BatchJob{
		ID:        fmt.Sprintf("batch_%d", time.Now().UnixNano()),
		Items:     items,
		Status:    JobStatusPending,
		Progress:  BatchProgress{Total: len(items)},
		Table:     models.NewTable(p.normalizer.Columns()),
		StartedAt: time.Now(),
	}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slot }()

	logger := p.logger.With().Str("job_id", job.ID).Logger()
	logger.Info().Int("links", len(items)).Msg("Starting batch job")
	job.Status = JobStatusRunning

	for _, item := range items {
		result := BatchResult{URL: item.URL}

		if err := ctx.Err(); err != nil {
			result.Status = "skipped"
			result.Error = err
			job.Progress.Skipped++
		} else {
			start := time.Now()
			res, err := p.run(ctx, item.URL, item.Platform, maxItems)
			result.Duration = time.Since(start)

			if err == nil {
				err = job.Table.Merge(res.Table)
			}
			if err != nil {
				result.Status = "failed"
				result.Error = err
				result.ErrorKind = models.ErrorKind(err)
				job.Progress.Failed++
			} else {
				result.Status = "completed"
				result.RunID = res.RunID
				result.Records = res.Table.Len()
				job.Progress.Completed++
			}
		}

		job.Results = append(job.Results, result)
		updateProgress(job)
		if progress != nil {
			progress(job, result)
		}
	}

	now := time.Now()
	job.CompletedAt = &now
	updateJobStatus(job, ctx.Err() != nil)

	logger.Info().
		Str("status", string(job.Status)).
		Int("completed", job.Progress.Completed).
		Int("failed", job.Progress.Failed).
		Int("records", job.Table.Len()).
		Msg("Batch job completed")
	return job, nil
}

// updateProgress updates job progress
func updateProgress(job *BatchJob) {
	total := float64(job.Progress.Total)
	if total > 0 {
		job.Progress.Percentage = float64(job.Progress.Completed+job.Progress.Failed+job.Progress.Skipped) / total * 100
	}
}

// updateJobStatus updates the final job status
func updateJobStatus(job *BatchJob, cancelled bool) {
	switch {
	case cancelled:
		job.Status = JobStatusCancelled
	case job.Progress.Failed > 0 && job.Progress.Completed > 0:
		job.Status = JobStatusPartial
	case job.Progress.Failed == job.Progress.Total:
		job.Status = JobStatusFailed
	default:
		job.Status = JobStatusCompleted
	}
}
