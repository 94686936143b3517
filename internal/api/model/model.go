package model

import (
	"errors"
	"time"
)

var (
	// ErrJobNotFound is returned when an extraction job does not exist.
	ErrJobNotFound = errors.New("extraction job not found")

	// ErrSectionNotFound is returned when a document section does not exist.
	ErrSectionNotFound = errors.New("document section not found")
)

// ExtractionJob is the API-side view of a job record.
type ExtractionJob struct {
	JobID              string     `db:"job_id"`
	RecordID           string     `db:"record_id"`
	OwnerID            string     `db:"owner_id"`
	SourceURL          string     `db:"source_url"`
	AdminScope         bool       `db:"admin_scope"`
	ProviderJobID      *string    `db:"provider_job_id"`
	Status             string     `db:"status"`
	Progress           int        `db:"progress"`
	Message            string     `db:"message"`
	ErrorMessage       *string    `db:"error_message"`
	SectionID          *string    `db:"section_id"`
	PlaceholderBlockID *string    `db:"placeholder_block_id"`
	InsertionIndex     *int       `db:"insertion_index"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	CompletedAt        *time.Time `db:"completed_at"`
}

// Block mirrors the content block shape stored in document sections. The API
// service only touches it to allocate and remove placeholder blocks.
type Block struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Level int      `json:"level,omitempty"`
	Items []string `json:"items,omitempty"`
	URL   string   `json:"url,omitempty"`
}

// BlockTypePlaceholder marks an in-flight extraction at an insertion point.
const BlockTypePlaceholder = "placeholder"
