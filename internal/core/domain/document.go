package domain

// Document types stored in the knowledge index.
const (
	TypeNotionPage          = "notion-page"
	TypeNotionDatabase      = "notion-database"
	TypeNotionDatabaseEntry = "notion-database-entry"
	TypeSlackMessage        = "slack-message"
	TypeWebsitePage         = "website-page"
)

// Well-known metadata keys.
const (
	MetaType      = "type"
	MetaSourceID  = "sourceId"
	MetaTargetID  = "targetId"
	MetaSignal    = "changeSignal"
	MetaTitle     = "title"
	MetaChannel   = "channel"
	MetaPermalink = "permalink"
	MetaURL       = "url"
	MetaPage      = "page"
	MetaChunk     = "chunk"
	MetaAuthor    = "author"
	MetaTimestamp = "timestamp"
)

// Document is the unit of knowledge stored in the vector index.
// It is the canonical representation after normalisation: a front-matter
// header block followed by the body text, plus string-keyed metadata.
//
// Documents are never mutated in place. A changed unit is represented as a
// brand-new Document with the same ID that replaces the old one wholesale.
type Document struct {
	// ID is the stable key, unique per logical unit: a Notion page id, a
	// UUID-shaped hash of channel+timestamp, or a website path plus chunk
	// position.
	ID string

	// Content is the text body, prefixed with a front-matter header.
	Content string

	// Metadata carries the type, sourceId and changeSignal fields used by
	// the reconciler, plus source-specific fields (channel, permalink,
	// url, title).
	Metadata map[string]string
}

// Type returns the document type, one of the Type* constants.
func (d *Document) Type() string {
	return d.Metadata[MetaType]
}

// SourceID returns the parent unit this document belongs to.
// All documents sharing a SourceID are deleted together when the parent
// unit disappears.
func (d *Document) SourceID() string {
	return d.Metadata[MetaSourceID]
}

// Signal returns the change-detection signal: an RFC3339 edit timestamp
// for Notion units, a content hash for website pages.
func (d *Document) Signal() string {
	return d.Metadata[MetaSignal]
}

// Title returns the human-readable title, if any.
func (d *Document) Title() string {
	return d.Metadata[MetaTitle]
}
