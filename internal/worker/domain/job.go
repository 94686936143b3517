package domain

import "time"

// Job status constants. Terminal states (completed, failed) are sticky:
// no update may move a job out of them.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ExtractionJob is the persisted status row for one extraction attempt.
// It is created by the API service at submission time and mutated only by
// the worker goroutine that owns the job.
type ExtractionJob struct {
	JobID         string  `db:"job_id"`
	RecordID      string  `db:"record_id"`
	OwnerID       string  `db:"owner_id"`
	SourceURL     string  `db:"source_url"`
	AdminScope    bool    `db:"admin_scope"`
	ProviderJobID *string `db:"provider_job_id"`
	Status        string  `db:"status"`
	Progress      int     `db:"progress"`
	Message       string  `db:"message"`
	ErrorMessage  *string `db:"error_message"`

	// Optional insertion target. When set, the worker splices the extracted
	// blocks into this section at InsertionIndex once materialization is done.
	SectionID          *string `db:"section_id"`
	PlaceholderBlockID *string `db:"placeholder_block_id"`
	InsertionIndex     *int    `db:"insertion_index"`

	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *ExtractionJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// InsertionRequested reports whether the job carries a content-insertion target.
func (j *ExtractionJob) InsertionRequested() bool {
	return j.SectionID != nil && *j.SectionID != ""
}

// JobMessage is the dispatch message published by the API service and
// consumed by the worker service.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
