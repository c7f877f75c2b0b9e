package domain

// TargetKind identifies the kind of root unit a sync run processes.
type TargetKind string

const (
	// TargetNotionPage is a Notion page indexed with its child pages.
	TargetNotionPage TargetKind = "page"

	// TargetNotionDatabase is a Notion database indexed row by row.
	TargetNotionDatabase TargetKind = "database"

	// TargetWebsitePage is a path under the public website base URL.
	TargetWebsitePage TargetKind = "website"

	// TargetSlackChannel is a public Slack channel indexed by message.
	TargetSlackChannel TargetKind = "channel"
)

// SyncTarget is one root unit the orchestrator must fully process.
// Targets are declared externally (the assistant index database, the
// configured website paths, the feature-flag channel list) and enumerated
// fresh on every run; they are never persisted by the sync engine itself.
type SyncTarget struct {
	// Kind is the target kind.
	Kind TargetKind

	// ID is the root identity: a Notion page/database id, a website path,
	// or a Slack channel name.
	ID string

	// Title is the display name, when known at enumeration time.
	Title string
}

// DocumentTypes returns the document types a target kind produces, used to
// scope vector-store snapshot queries.
func (k TargetKind) DocumentTypes() []string {
	switch k {
	case TargetNotionPage:
		return []string{TypeNotionPage}
	case TargetNotionDatabase:
		return []string{TypeNotionDatabase, TypeNotionDatabaseEntry}
	case TargetWebsitePage:
		return []string{TypeWebsitePage}
	case TargetSlackChannel:
		return []string{TypeSlackMessage}
	default:
		return nil
	}
}

// KindForDocumentType is the inverse of DocumentTypes: the target kind
// that produces rows of the given document type.
func KindForDocumentType(docType string) TargetKind {
	switch docType {
	case TypeNotionPage:
		return TargetNotionPage
	case TypeNotionDatabase, TypeNotionDatabaseEntry:
		return TargetNotionDatabase
	case TypeWebsitePage:
		return TargetWebsitePage
	case TypeSlackMessage:
		return TargetSlackChannel
	default:
		return ""
	}
}
