package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitykit/communitybot/internal/adapters/driven/vectorstore/memory"
	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/identity"
)

var notionNotFound = &notionapi.Error{Status: 404, Code: "object_not_found"}

var edited = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// fakeNotion serves both the index database enumeration and the target
// loads.
type fakeNotion struct {
	mu     sync.Mutex
	pages  map[string]*notionapi.Page
	blocks map[string][]notionapi.Block
	rows   map[string][]notionapi.Page
	broken map[string]bool
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{
		pages:  make(map[string]*notionapi.Page),
		blocks: make(map[string][]notionapi.Block),
		rows:   make(map[string][]notionapi.Page),
		broken: make(map[string]bool),
	}
}

func (f *fakeNotion) GetPage(_ context.Context, id string) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[id] {
		return nil, fmt.Errorf("boom")
	}
	page, ok := f.pages[id]
	if !ok {
		return nil, notionNotFound
	}
	return page, nil
}

func (f *fakeNotion) GetDatabase(_ context.Context, id string) (*notionapi.Database, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[id] {
		return nil, fmt.Errorf("boom")
	}
	return nil, notionNotFound
}

func (f *fakeNotion) QueryDatabase(_ context.Context, id string, visit func(page notionapi.Page) error) error {
	f.mu.Lock()
	rows, ok := f.rows[id]
	f.mu.Unlock()
	if !ok {
		return notionNotFound
	}
	for _, row := range rows {
		if err := visit(row); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeNotion) BlockChildren(_ context.Context, id string) ([]notionapi.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[id], nil
}

func (f *fakeNotion) setIndexRow(targetPageIDs ...string) {
	parts := make([]notionapi.RichText, 0, len(targetPageIDs))
	for _, id := range targetPageIDs {
		parts = append(parts, notionapi.RichText{
			PlainText: "Target " + id,
			Mention:   &notionapi.Mention{Page: &notionapi.PageMention{ID: notionapi.ObjectID(id)}},
		})
	}
	row := notionapi.Page{
		ID: "idx-row-1",
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{Title: parts},
		},
	}
	f.mu.Lock()
	f.rows["idx"] = []notionapi.Page{row}
	f.mu.Unlock()
}

func (f *fakeNotion) addPage(id, title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[id] = &notionapi.Page{
		ID:             notionapi.ObjectID(id),
		LastEditedTime: edited,
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: title}},
			},
		},
	}
	f.blocks[id] = []notionapi.Block{
		&notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{ID: notionapi.BlockID(id + "-b1"), Type: "paragraph"},
			Paragraph: notionapi.Paragraph{
				RichText: []notionapi.RichText{{PlainText: body}},
			},
		},
	}
}

type fakeFlags struct {
	tags map[string]string
}

func (f *fakeFlags) Enabled(_ context.Context, flag string) (bool, error) {
	_, ok := f.tags[flag]
	return ok, nil
}

func (f *fakeFlags) Tag(_ context.Context, flag, tag string) (string, error) {
	value, ok := f.tags[flag+"/"+tag]
	if !ok {
		return "", domain.ErrFlagUnset
	}
	return value, nil
}

type fakeSlackAPI struct {
	messages map[string][]slack.Message
}

func (f *fakeSlackAPI) GetConversationHistoryContext(_ context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	return &slack.GetConversationHistoryResponse{
		Messages: f.messages[params.ChannelID],
	}, nil
}

func (f *fakeSlackAPI) GetPermalinkContext(_ context.Context, params *slack.PermalinkParameters) (string, error) {
	return "https://example.slack.com/archives/" + params.Channel + "/p" + params.Ts, nil
}

func (f *fakeSlackAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	return &slack.User{ID: user, RealName: "Real " + user}, nil
}

func (f *fakeSlackAPI) GetConversationInfoContext(_ context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	channel := &slack.Channel{}
	channel.ID = input.ChannelID
	channel.Name = "name-" + input.ChannelID
	return channel, nil
}

type fakeWebsite struct {
	pages map[string]string
}

func (f *fakeWebsite) Fetch(_ context.Context, url string) (string, error) {
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, url)
	}
	return page, nil
}

type progressRecorder struct {
	reports []domain.Report
}

func (p *progressRecorder) fn() domain.ProgressFunc {
	return func(r domain.Report) {
		p.reports = append(p.reports, r)
	}
}

func (p *progressRecorder) byKind(kind domain.ReportKind) []domain.Report {
	var out []domain.Report
	for _, r := range p.reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func testOrchestrator(store *memory.Store, notion *fakeNotion, flags *fakeFlags, slackAPI SlackClient, web *fakeWebsite, cfg SyncConfig) *SyncOrchestrator {
	cfg.NotionRPS = 10000
	if cfg.IndexDatabaseID == "" {
		cfg.IndexDatabaseID = "idx"
	}
	return NewSyncOrchestrator(store, flags, notion, slackAPI, web, cfg)
}

func TestSyncOrchestrator_SyncNotion_AddsAndSweeps(t *testing.T) {
	store := memory.New(nil)
	notion := newFakeNotion()
	notion.addPage("page-1", "Handbook", "Welcome.")
	notion.addPage("page-2", "Archive", "Old stuff.")
	notion.setIndexRow("page-1", "page-2")

	o := testOrchestrator(store, notion, &fakeFlags{}, nil, nil, SyncConfig{})
	progress := &progressRecorder{}

	require.NoError(t, o.SyncNotion(context.Background(), progress.fn()))

	updates := progress.byKind(domain.ReportUpdate)
	require.Len(t, updates, 2)
	assert.Equal(t, 2, store.Len())

	// The second target is removed from the index database; its unit must
	// be swept on the next run.
	notion.setIndexRow("page-1")
	progress = &progressRecorder{}

	require.NoError(t, o.SyncNotion(context.Background(), progress.fn()))

	removed := progress.byKind(domain.ReportRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "page-2", removed[0].ID)
	assert.Equal(t, 1, removed[0].Amount)
	assert.Equal(t, 1, store.Len())

	// The surviving page was unchanged and skipped.
	updates = progress.byKind(domain.ReportUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, []string{"page-1"}, updates[0].Stats.Skipped)
}

func TestSyncOrchestrator_SyncNotion_ReportsWithinTargetRemovals(t *testing.T) {
	store := memory.New(nil)
	notion := newFakeNotion()
	notion.addPage("page-1", "Handbook", "Welcome.")
	notion.addPage("page-2", "Onboarding", "Start here.")
	notion.mu.Lock()
	notion.blocks["page-1"] = append(notion.blocks["page-1"], childPage("page-2"))
	notion.mu.Unlock()
	notion.setIndexRow("page-1")

	o := testOrchestrator(store, notion, &fakeFlags{}, nil, nil, SyncConfig{RecursiveChildPages: true})
	require.NoError(t, o.SyncNotion(context.Background(), nil))
	require.Equal(t, 2, store.Len())

	// The child page is detached from its parent. The target itself stays
	// declared, so only the child unit leaves the index, and its removal is
	// reported with the row count the delete cascaded through.
	notion.mu.Lock()
	notion.blocks["page-1"] = notion.blocks["page-1"][:1]
	notion.pages["page-1"].LastEditedTime = edited.Add(time.Hour)
	notion.mu.Unlock()
	progress := &progressRecorder{}

	require.NoError(t, o.SyncNotion(context.Background(), progress.fn()))

	removed := progress.byKind(domain.ReportRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "page-2", removed[0].ID)
	assert.Equal(t, domain.TargetNotionPage, removed[0].Target)
	assert.Equal(t, 1, removed[0].Amount)
	assert.Equal(t, 1, store.Len())

	updates := progress.byKind(domain.ReportUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, []string{"page-1"}, updates[0].Stats.Updated)
	assert.Equal(t, []string{"page-2"}, updates[0].Stats.Removed)
}

func TestSyncOrchestrator_SyncNotion_SweepLabelsDatabaseOrphans(t *testing.T) {
	store := memory.New(nil)

	// A database target indexed by an earlier run but no longer declared.
	seed := []domain.Document{{
		ID:      "row-1",
		Content: "Legacy row.",
		Metadata: map[string]string{
			domain.MetaType:     domain.TypeNotionDatabaseEntry,
			domain.MetaSourceID: "row-1",
			domain.MetaTargetID: "db-1",
			domain.MetaSignal:   "2026-03-01T00:00:00Z",
		},
	}}
	require.NoError(t, store.Upsert(context.Background(), seed))

	notion := newFakeNotion()
	notion.addPage("page-1", "Handbook", "Welcome.")
	notion.setIndexRow("page-1")

	o := testOrchestrator(store, notion, &fakeFlags{}, nil, nil, SyncConfig{})
	progress := &progressRecorder{}

	require.NoError(t, o.SyncNotion(context.Background(), progress.fn()))

	removed := progress.byKind(domain.ReportRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "row-1", removed[0].ID)
	assert.Equal(t, domain.TargetNotionDatabase, removed[0].Target)
	assert.Equal(t, 1, store.Len())
}

func TestSyncOrchestrator_SyncNotion_FailedTargetReportedNotSwept(t *testing.T) {
	store := memory.New(nil)
	notion := newFakeNotion()
	notion.addPage("page-1", "Handbook", "Welcome.")
	notion.setIndexRow("page-1")

	o := testOrchestrator(store, notion, &fakeFlags{}, nil, nil, SyncConfig{})
	require.NoError(t, o.SyncNotion(context.Background(), nil))
	require.Equal(t, 1, store.Len())

	// The target starts failing with a non-404 error.
	notion.mu.Lock()
	notion.broken["page-1"] = true
	notion.mu.Unlock()
	progress := &progressRecorder{}

	require.NoError(t, o.SyncNotion(context.Background(), progress.fn()))

	errs := progress.byKind(domain.ReportError)
	require.Len(t, errs, 1)
	assert.Equal(t, "page-1", errs[0].ID)

	// A failing fetch never deletes index state.
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, progress.byKind(domain.ReportRemoved))
}

func TestSyncOrchestrator_SyncNotion_EnumerationFailureIsFatal(t *testing.T) {
	store := memory.New(nil)
	notion := newFakeNotion() // no index database at all

	o := testOrchestrator(store, notion, &fakeFlags{}, nil, nil, SyncConfig{})
	progress := &progressRecorder{}

	err := o.SyncNotion(context.Background(), progress.fn())

	require.Error(t, err)
	require.Len(t, progress.byKind(domain.ReportError), 1)
}

func TestSyncOrchestrator_SyncWebsite_AddsAndSweeps(t *testing.T) {
	store := memory.New(nil)
	web := &fakeWebsite{pages: map[string]string{
		"https://example.org/about":   "<html><head><title>About</title></head><body><main><p>We are a community.</p></main></body></html>",
		"https://example.org/pricing": "<html><head><title>Pricing</title></head><body><main><p>Ten dollars.</p></main></body></html>",
	}}
	cfg := SyncConfig{
		WebsiteBaseURL: "https://example.org",
		WebsitePaths:   []string{"/about", "/pricing"},
	}

	o := testOrchestrator(store, newFakeNotion(), &fakeFlags{}, nil, web, cfg)
	require.NoError(t, o.SyncWebsite(context.Background(), nil))
	assert.Equal(t, 2, store.Len())

	// Re-running with unchanged content writes nothing new.
	progress := &progressRecorder{}
	require.NoError(t, o.SyncWebsite(context.Background(), progress.fn()))
	updates := progress.byKind(domain.ReportUpdate)
	require.Len(t, updates, 2)
	for _, r := range updates {
		assert.Len(t, r.Stats.Skipped, 1)
	}

	// Dropping a path from configuration sweeps its unit.
	o2 := testOrchestrator(store, newFakeNotion(), &fakeFlags{}, nil, web, SyncConfig{
		WebsiteBaseURL: "https://example.org",
		WebsitePaths:   []string{"/about"},
	})
	progress = &progressRecorder{}
	require.NoError(t, o2.SyncWebsite(context.Background(), progress.fn()))

	removed := progress.byKind(domain.ReportRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "/pricing", removed[0].ID)
	assert.Equal(t, 1, store.Len())
}

func TestSyncOrchestrator_SyncSlack_FlagUnset(t *testing.T) {
	store := memory.New(nil)
	o := testOrchestrator(store, newFakeNotion(), &fakeFlags{}, &fakeSlackAPI{}, nil, SyncConfig{})

	require.NoError(t, o.SyncSlack(context.Background(), nil))
	assert.Equal(t, 0, store.Len())
}

func TestSyncOrchestrator_SyncSlack_IndexesFlaggedChannels(t *testing.T) {
	store := memory.New(nil)
	slackAPI := &fakeSlackAPI{messages: map[string][]slack.Message{
		"C1": {slackMessage("U1", "1700000100.000100", "Deploys happen on Fridays.")},
		"C2": {slackMessage("U2", "1700000200.000100", "Office door code is 4242.")},
	}}
	flags := &fakeFlags{tags: map[string]string{
		ChannelsFlag + "/" + ChannelsTag: "C1; C2",
	}}

	o := testOrchestrator(store, newFakeNotion(), flags, slackAPI, nil, SyncConfig{})
	progress := &progressRecorder{}

	require.NoError(t, o.SyncSlack(context.Background(), progress.fn()))

	assert.Equal(t, 2, store.Len())
	updates := progress.byKind(domain.ReportUpdate)
	require.Len(t, updates, 2)

	// Messages that age out of the window are not removals.
	slackAPI.messages = map[string][]slack.Message{}
	require.NoError(t, o.SyncSlack(context.Background(), nil))
	assert.Equal(t, 2, store.Len())
}

func TestSyncOrchestrator_SyncSlack_SkipsKnownMessages(t *testing.T) {
	store := memory.New(nil)
	slackAPI := &fakeSlackAPI{messages: map[string][]slack.Message{
		"C1": {slackMessage("U1", "1700000100.000100", "Deploys happen on Fridays.")},
	}}
	flags := &fakeFlags{tags: map[string]string{
		ChannelsFlag + "/" + ChannelsTag: "C1",
	}}

	o := testOrchestrator(store, newFakeNotion(), flags, slackAPI, nil, SyncConfig{})
	require.NoError(t, o.SyncSlack(context.Background(), nil))

	progress := &progressRecorder{}
	require.NoError(t, o.SyncSlack(context.Background(), progress.fn()))

	updates := progress.byKind(domain.ReportUpdate)
	require.Len(t, updates, 1)
	id := identity.MessageDocumentID("C1", "1700000100.000100")
	assert.Equal(t, []string{id}, updates[0].Stats.Skipped)
	assert.Equal(t, 1, store.Len())
}

func TestSyncOrchestrator_RunsNeverOverlap(t *testing.T) {
	o := testOrchestrator(memory.New(nil), newFakeNotion(), &fakeFlags{}, nil, nil, SyncConfig{})

	release, err := o.acquire()
	require.NoError(t, err)
	defer release()

	assert.ErrorIs(t, o.SyncNotion(context.Background(), nil), ErrSyncInProgress)
	assert.ErrorIs(t, o.SyncAll(context.Background(), nil), ErrSyncInProgress)
}

func childPage(id string) notionapi.Block {
	return &notionapi.ChildPageBlock{
		BasicBlock: notionapi.BasicBlock{
			ID:   notionapi.BlockID(id),
			Type: "child_page",
		},
	}
}

func slackMessage(user, ts, text string) slack.Message {
	msg := slack.Message{}
	msg.User = user
	msg.Timestamp = ts
	msg.Text = text
	return msg
}
