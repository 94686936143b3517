package domain

import "time"

// Attachment kinds produced by materialization.
const (
	AttachmentKindPDF            = "pdf"
	AttachmentKindStructuredText = "structuredText"
	AttachmentKindLayout         = "layout"
	AttachmentKindContentList    = "contentList"
	AttachmentKindModel          = "model"
)

// Attachment describes one stored derived artifact.
type Attachment struct {
	URL        string    `json:"url"`
	StorageKey string    `json:"storage_key"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// AttachmentMap maps artifact kind to its stored artifact. Keys are only
// ever added or replaced wholesale; absence of a key means the artifact has
// not been produced yet.
type AttachmentMap map[string]Attachment
