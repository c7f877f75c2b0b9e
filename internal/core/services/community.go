package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
	nclient "github.com/communitykit/communitybot/internal/notion"
)

// NotionStore is the slice of the Notion client the community services use.
// Notion is the system of record for all community databases; these
// services are request/response glue over it.
type NotionStore interface {
	GetPage(ctx context.Context, id string) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, id string, visit func(page notionapi.Page) error) error
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, id string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// memberCacheTTL bounds how long a Slack-id to profile-id mapping is
// reused. Profiles change rarely.
const memberCacheTTL = time.Hour

// MemberDirectory resolves Slack user ids to member profile pages in the
// members database. Lookups are cached.
type MemberDirectory struct {
	notion     NotionStore
	cache      driven.Cache
	databaseID string
}

// NewMemberDirectory creates a member directory over the given database.
func NewMemberDirectory(notion NotionStore, cache driven.Cache, databaseID string) *MemberDirectory {
	return &MemberDirectory{notion: notion, cache: cache, databaseID: databaseID}
}

// ProfileID returns the profile page id for a Slack user, or
// domain.ErrNotFound when the user has no profile row.
func (d *MemberDirectory) ProfileID(ctx context.Context, slackUserID string) (string, error) {
	if slackUserID == "" {
		return "", domain.ErrInvalidInput
	}

	key := "member:" + slackUserID
	if id, err := d.cache.Get(ctx, key); err == nil {
		return id, nil
	}

	profileID := ""
	err := d.notion.QueryDatabase(ctx, d.databaseID, func(page notionapi.Page) error {
		if pageRichText(page, "Slack ID") == slackUserID {
			profileID = string(page.ID)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("query members: %w", err)
	}
	if profileID == "" {
		return "", fmt.Errorf("%w: no profile for %s", domain.ErrNotFound, slackUserID)
	}

	if err := d.cache.Set(ctx, key, profileID, memberCacheTTL); err != nil {
		return profileID, nil // the lookup succeeded; a cold cache next time is fine
	}
	return profileID, nil
}

// Property readers over the raw Notion page shapes. Missing or
// differently-typed properties read as zero values.

func pageRichText(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name].(*notionapi.RichTextProperty); ok {
		return nclient.RichTextString(prop.RichText)
	}
	return ""
}

func pageNumber(page notionapi.Page, name string) float64 {
	if prop, ok := page.Properties[name].(*notionapi.NumberProperty); ok {
		return prop.Number
	}
	return 0
}

func pageSelect(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name].(*notionapi.SelectProperty); ok {
		return prop.Select.Name
	}
	return ""
}

func pageURLProp(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name].(*notionapi.URLProperty); ok {
		return prop.URL
	}
	return ""
}

func pageRelationIDs(page notionapi.Page, name string) []string {
	prop, ok := page.Properties[name].(*notionapi.RelationProperty)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(prop.Relation))
	for _, rel := range prop.Relation {
		ids = append(ids, string(rel.ID))
	}
	return ids
}

// Property writers.

func titleValue(text string) *notionapi.TitleProperty {
	return &notionapi.TitleProperty{
		Title: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

func richTextValue(text string) *notionapi.RichTextProperty {
	return &notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

func numberValue(n float64) *notionapi.NumberProperty {
	return &notionapi.NumberProperty{Number: n}
}

func selectValue(name string) *notionapi.SelectProperty {
	return &notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

func urlValue(url string) *notionapi.URLProperty {
	return &notionapi.URLProperty{URL: url}
}

func relationValue(ids []string) *notionapi.RelationProperty {
	relations := make([]notionapi.Relation, 0, len(ids))
	for _, id := range ids {
		relations = append(relations, notionapi.Relation{ID: notionapi.PageID(id)})
	}
	return &notionapi.RelationProperty{Relation: relations}
}

// Cached summaries are stored as JSON strings in the key/value cache.

func marshalCached(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalCached(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}

func databaseParent(databaseID string) notionapi.Parent {
	return notionapi.Parent{
		Type:       notionapi.ParentTypeDatabaseID,
		DatabaseID: notionapi.DatabaseID(databaseID),
	}
}
