package handler

import (
	"context"
	"log/slog"

	"github.com/thanhldev/extraction-be/internal/api/model"
	"github.com/thanhldev/extraction-be/internal/worker/domain"
	"github.com/thanhldev/extraction-be/shared/postgresql"
	"github.com/thanhldev/extraction-be/shared/rabbitmq"
)

// ExtractionStore covers the job and section operations the API service
// performs synchronously.
type ExtractionStore interface {
	CreateJob(ctx context.Context, job *model.ExtractionJob) error
	GetJobByID(ctx context.Context, jobID string) (*model.ExtractionJob, error)
	AllocatePlaceholder(ctx context.Context, sectionID, placeholderID string, index int) error
	ReleasePlaceholder(ctx context.Context, sectionID, placeholderID string) error
}

// Publisher dispatches job messages to the worker service.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// SessionEngine applies or drops pending parse session output.
type SessionEngine interface {
	ConfirmSession(ctx context.Context, sessionID string, blockIDs []string) error
	DiscardSession(ctx context.Context, sessionID string) error
}

// AttachmentReader exposes the attachment maps the worker materializes.
type AttachmentReader interface {
	GetAttachments(ctx context.Context, recordID string) (domain.AttachmentMap, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Storage      ExtractionStore
	Publisher    Publisher
	Sessions     SessionEngine
	Attachments  AttachmentReader
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// ExtractionHandler handles extraction-related HTTP requests
type ExtractionHandler struct {
	logger      *slog.Logger
	storage     ExtractionStore
	publisher   Publisher
	sessions    SessionEngine
	attachments AttachmentReader
}

// NewExtractionHandler creates a new ExtractionHandler instance
func NewExtractionHandler(deps *Dependencies) *ExtractionHandler {
	return &ExtractionHandler{
		logger:      deps.Logger,
		storage:     deps.Storage,
		publisher:   deps.Publisher,
		sessions:    deps.Sessions,
		attachments: deps.Attachments,
	}
}
