package dto

// InsertionTarget asks the worker to splice extracted blocks into a section
// once the extraction completes.
type InsertionTarget struct {
	SectionID      string `json:"section_id" binding:"required"`
	InsertionIndex int    `json:"insertion_index"`
}

type CreateExtractionRequest struct {
	RecordID   string           `json:"record_id" binding:"required"`
	OwnerID    string           `json:"owner_id" binding:"required"`
	SourceURL  string           `json:"source_url" binding:"required,url"`
	AdminScope bool             `json:"admin_scope"`
	Insertion  *InsertionTarget `json:"insertion,omitempty"`
}

type CreateExtractionResponse struct {
	JobID              string `json:"job_id"`
	RecordID           string `json:"record_id"`
	Status             string `json:"status"`
	Progress           int    `json:"progress"`
	PlaceholderBlockID string `json:"placeholder_block_id,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type ExtractionStatusResponse struct {
	JobID       string `json:"job_id"`
	RecordID    string `json:"record_id"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// ConfirmSessionRequest optionally selects a subset of the session's pending
// blocks by id. An empty list confirms all of them.
type ConfirmSessionRequest struct {
	BlockIDs []string `json:"block_ids"`
}
