package domain

// Block types for document section content.
const (
	BlockTypeHeading   = "heading"
	BlockTypeParagraph = "paragraph"
	BlockTypeFigure    = "figure"
	BlockTypeTable     = "table"
	BlockTypeList      = "list"
	BlockTypeQuote     = "quote"

	// BlockTypePlaceholder marks an in-flight extraction at a specific
	// insertion point. At most one placeholder exists per insertion request,
	// and its id is referenced by exactly one in-flight extraction job.
	BlockTypePlaceholder = "placeholder"
)

// Block is one typed content block inside a document section.
type Block struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Level int      `json:"level,omitempty"`
	Items []string `json:"items,omitempty"`
	URL   string   `json:"url,omitempty"`
}

// DocumentSection owns an ordered sequence of typed content blocks.
type DocumentSection struct {
	SectionID string  `json:"section_id"`
	RecordID  string  `json:"record_id"`
	Blocks    []Block `json:"blocks"`
}

// ParseSession holds block output produced for a section that has not been
// confirmed or discarded yet. Consumed is a one-way flag: once set, neither
// confirm nor discard may be applied again.
type ParseSession struct {
	SessionID          string  `db:"session_id"`
	RecordID           string  `db:"record_id"`
	SectionID          string  `db:"section_id"`
	PlaceholderBlockID string  `db:"placeholder_block_id"`
	InsertionIndex     int     `db:"insertion_index"`
	Blocks             []Block `db:"-"`
	Consumed           bool    `db:"consumed"`
}
