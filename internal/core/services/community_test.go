package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitykit/communitybot/internal/core/domain"
)

// fakeStore backs the community services with in-memory Notion databases.
type fakeStore struct {
	mu      sync.Mutex
	pages   map[string]*notionapi.Page
	rows    map[string][]notionapi.Page
	broken  map[string]bool
	queries map[string]int
	created []*notionapi.PageCreateRequest
	updates map[string]*notionapi.PageUpdateRequest
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages:   make(map[string]*notionapi.Page),
		rows:    make(map[string][]notionapi.Page),
		broken:  make(map[string]bool),
		queries: make(map[string]int),
		updates: make(map[string]*notionapi.PageUpdateRequest),
	}
}

func (f *fakeStore) GetPage(_ context.Context, id string) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return nil, notionNotFound
	}
	return page, nil
}

func (f *fakeStore) QueryDatabase(_ context.Context, id string, visit func(page notionapi.Page) error) error {
	f.mu.Lock()
	f.queries[id]++
	if f.broken[id] {
		f.mu.Unlock()
		return fmt.Errorf("boom")
	}
	rows := f.rows[id]
	f.mu.Unlock()
	for _, row := range rows {
		if err := visit(row); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, req)
	page := &notionapi.Page{
		ID:          notionapi.ObjectID(fmt.Sprintf("created-%d", f.nextID)),
		CreatedTime: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		Properties:  req.Properties,
	}
	f.pages[string(page.ID)] = page
	return page, nil
}

func (f *fakeStore) UpdatePage(_ context.Context, id string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return nil, notionNotFound
	}
	f.updates[id] = req
	return page, nil
}

func (f *fakeStore) addRow(databaseID string, page notionapi.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[databaseID] = append(f.rows[databaseID], page)
	copied := page
	f.pages[string(page.ID)] = &copied
}

// fakeKV is a map-backed cache that records invalidations.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	deletes []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return value, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	f.deletes = append(f.deletes, key)
	return nil
}

// Page fixtures.

func titledPage(id, title string, extra notionapi.Properties) notionapi.Page {
	props := notionapi.Properties{
		"Name": &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: title}}},
	}
	for name, prop := range extra {
		props[name] = prop
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func richText(text string) *notionapi.RichTextProperty {
	return &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: text}}}
}

func relation(ids ...string) *notionapi.RelationProperty {
	rels := make([]notionapi.Relation, 0, len(ids))
	for _, id := range ids {
		rels = append(rels, notionapi.Relation{ID: notionapi.PageID(id)})
	}
	return &notionapi.RelationProperty{Relation: rels}
}

func memberRow(id, slackID string) notionapi.Page {
	return titledPage(id, "Member "+slackID, notionapi.Properties{
		"Slack ID": richText(slackID),
	})
}

func relationIDs(t *testing.T, props notionapi.Properties, name string) []string {
	t.Helper()
	prop, ok := props[name].(*notionapi.RelationProperty)
	require.True(t, ok, "property %s is not a relation", name)
	var ids []string
	for _, rel := range prop.Relation {
		ids = append(ids, string(rel.ID))
	}
	return ids
}

func TestMemberDirectory_ProfileID_ResolvesAndCaches(t *testing.T) {
	store := newFakeStore()
	store.addRow("members", memberRow("prof-1", "U1"))
	store.addRow("members", memberRow("prof-2", "U2"))
	cache := newFakeKV()
	dir := NewMemberDirectory(store, cache, "members")

	id, err := dir.ProfileID(context.Background(), "U2")
	require.NoError(t, err)
	assert.Equal(t, "prof-2", id)

	// The second lookup is served from cache even when the database
	// becomes unreachable.
	store.broken["members"] = true
	id, err = dir.ProfileID(context.Background(), "U2")
	require.NoError(t, err)
	assert.Equal(t, "prof-2", id)
	assert.Equal(t, 1, store.queries["members"])
}

func TestMemberDirectory_ProfileID_UnknownUser(t *testing.T) {
	store := newFakeStore()
	store.rows["members"] = nil
	dir := NewMemberDirectory(store, newFakeKV(), "members")

	_, err := dir.ProfileID(context.Background(), "U-ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemberDirectory_ProfileID_EmptyInput(t *testing.T) {
	dir := NewMemberDirectory(newFakeStore(), newFakeKV(), "members")

	_, err := dir.ProfileID(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func wishlistFixture() (*fakeStore, *fakeKV, *WishlistService) {
	store := newFakeStore()
	store.addRow("members", memberRow("prof-1", "U1"))
	store.addRow("wishlist", titledPage("item-quiet", "Quiet room", notionapi.Properties{
		"Voters": relation("prof-9"),
	}))
	store.addRow("wishlist", titledPage("item-coffee", "Better coffee", notionapi.Properties{
		"Description": richText("The machine is from 2009."),
		"Author":      richText("U1"),
		"Voters":      relation("prof-1", "prof-2", "prof-3"),
	}))
	cache := newFakeKV()
	members := NewMemberDirectory(store, cache, "members")
	return store, cache, NewWishlistService(store, cache, members, "wishlist")
}

func TestWishlistService_List_SortsByVotes(t *testing.T) {
	_, _, svc := wishlistFixture()

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Better coffee", items[0].Title)
	assert.Equal(t, 3, items[0].Votes())
	assert.Equal(t, "The machine is from 2009.", items[0].Description)
	assert.Equal(t, "Quiet room", items[1].Title)
}

func TestWishlistService_ToggleVote_AddsVote(t *testing.T) {
	store, cache, svc := wishlistFixture()

	item, err := svc.ToggleVote(context.Background(), "item-quiet", "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"prof-9", "prof-1"}, item.VoterIDs)

	update := store.updates["item-quiet"]
	require.NotNil(t, update)
	assert.Equal(t, []string{"prof-9", "prof-1"}, relationIDs(t, update.Properties, "Voters"))
	assert.Contains(t, cache.deletes, wishlistSummaryKey)
}

func TestWishlistService_ToggleVote_WithdrawsVote(t *testing.T) {
	store, _, svc := wishlistFixture()

	item, err := svc.ToggleVote(context.Background(), "item-coffee", "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"prof-2", "prof-3"}, item.VoterIDs)
	assert.Equal(t, []string{"prof-2", "prof-3"}, relationIDs(t, store.updates["item-coffee"].Properties, "Voters"))
}

func TestWishlistService_ToggleVote_UnknownItem(t *testing.T) {
	_, _, svc := wishlistFixture()

	_, err := svc.ToggleVote(context.Background(), "item-missing", "U1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWishlistService_Add(t *testing.T) {
	store, cache, svc := wishlistFixture()

	item, err := svc.Add(context.Background(), "Standing desks", "For the back pain.", "U1")
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Standing desks", item.Title)
	assert.Zero(t, item.Votes())
	require.Len(t, store.created, 1)
	assert.Contains(t, cache.deletes, wishlistSummaryKey)

	_, err = svc.Add(context.Background(), "", "no title", "U1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWishlistService_Top_ServesFromCache(t *testing.T) {
	store, _, svc := wishlistFixture()

	items, err := svc.Top(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Better coffee", items[0].Title)

	// A second call must not hit the database again.
	store.broken["wishlist"] = true
	items, err = svc.Top(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Better coffee", items[0].Title)
	assert.Equal(t, 1, store.queries["wishlist"])
}

func TestWishlistService_Top_TruncatesToTopN(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < wishlistTopN+3; i++ {
		id := fmt.Sprintf("item-%d", i)
		store.addRow("wishlist", titledPage(id, "Item "+id, nil))
	}
	cache := newFakeKV()
	svc := NewWishlistService(store, cache, NewMemberDirectory(store, cache, "members"), "wishlist")

	items, err := svc.Top(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, wishlistTopN)
}

func creditRow(id, member, memberName string, amount float64, reason string, granted time.Time) notionapi.Page {
	page := titledPage(id, reason, notionapi.Properties{
		"Member":      richText(member),
		"Member Name": richText(memberName),
		"Amount":      &notionapi.NumberProperty{Number: amount},
	})
	page.CreatedTime = granted
	return page
}

func TestCreditService_Entries(t *testing.T) {
	store := newFakeStore()
	granted := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	store.addRow("credits", creditRow("c1", "U1", "Ada", 5, "Helped with onboarding", granted))
	svc := NewCreditService(store, newFakeKV(), "credits")

	entries, err := svc.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.CreditEntry{
		ID:        "c1",
		UserID:    "U1",
		UserName:  "Ada",
		Amount:    5,
		Reason:    "Helped with onboarding",
		GrantedAt: granted,
	}, entries[0])
}

func TestCreditService_Grant(t *testing.T) {
	store := newFakeStore()
	cache := newFakeKV()
	svc := NewCreditService(store, cache, "credits")

	entry, err := svc.Grant(context.Background(), domain.CreditEntry{
		UserID: "U1", UserName: "Ada", Amount: 3, Reason: "Code review",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.GrantedAt.IsZero())
	require.Len(t, store.created, 1)
	assert.Contains(t, cache.deletes, leaderboardKey)

	_, err = svc.Grant(context.Background(), domain.CreditEntry{Amount: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Grant(context.Background(), domain.CreditEntry{UserID: "U1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreditService_Leaderboard_AggregatesAndCaches(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	store.addRow("credits", creditRow("c1", "U1", "", 2, "a", now))
	store.addRow("credits", creditRow("c2", "U2", "Grace", 5, "b", now))
	store.addRow("credits", creditRow("c3", "U1", "Ada", 4, "c", now))
	cache := newFakeKV()
	svc := NewCreditService(store, cache, "credits")

	rows, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.LeaderboardRow{UserID: "U1", UserName: "Ada", Total: 6}, rows[0])
	assert.Equal(t, domain.LeaderboardRow{UserID: "U2", UserName: "Grace", Total: 5}, rows[1])

	store.broken["credits"] = true
	rows, err = svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, store.queries["credits"])
}

func skillRow(id, member, name string, level float64) notionapi.Page {
	return titledPage(id, name, notionapi.Properties{
		"Member": richText(member),
		"Level":  &notionapi.NumberProperty{Number: level},
	})
}

func TestSkillService_Skills_FiltersByMember(t *testing.T) {
	store := newFakeStore()
	store.addRow("skills", skillRow("s1", "U1", "Go", 4))
	store.addRow("skills", skillRow("s2", "U2", "Rust", 3))
	svc := NewSkillService(store, "skills")

	skills, err := svc.Skills(context.Background(), "U1")
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, domain.Skill{ID: "s1", UserID: "U1", Name: "Go", Level: 4}, skills[0])

	_, err = svc.Skills(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSkillService_SetSkill_CreatesAndUpdates(t *testing.T) {
	store := newFakeStore()
	store.addRow("skills", skillRow("s1", "U1", "Go", 2))
	svc := NewSkillService(store, "skills")

	// Existing entries are updated in place.
	skill, err := svc.SetSkill(context.Background(), "U1", "Go", 5)
	require.NoError(t, err)
	assert.Equal(t, "s1", skill.ID)
	assert.Equal(t, 5, skill.Level)
	require.NotNil(t, store.updates["s1"])
	assert.Empty(t, store.created)

	// A new skill name creates a row.
	skill, err = svc.SetSkill(context.Background(), "U1", "SQL", 3)
	require.NoError(t, err)
	assert.NotEqual(t, "s1", skill.ID)
	assert.Equal(t, "SQL", skill.Name)
	require.Len(t, store.created, 1)
}

func TestSkillService_SetSkill_RejectsOutOfRangeLevel(t *testing.T) {
	svc := NewSkillService(newFakeStore(), "skills")

	for _, level := range []int{0, -1, 6} {
		_, err := svc.SetSkill(context.Background(), "U1", "Go", level)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "level %d", level)
	}
	_, err := svc.SetSkill(context.Background(), "U1", "", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func jobRow(id, title, company, status string, created time.Time) notionapi.Page {
	page := titledPage(id, title, notionapi.Properties{
		"Company": richText(company),
		"Status":  &notionapi.SelectProperty{Select: notionapi.Option{Name: status}},
	})
	page.CreatedTime = created
	return page
}

func TestJobBoardService_ListOpen(t *testing.T) {
	store := newFakeStore()
	day := 24 * time.Hour
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store.addRow("jobs", jobRow("j1", "Backend engineer", "Acme", "Open", base))
	store.addRow("jobs", jobRow("j2", "Designer", "Globex", "Closed", base.Add(day)))
	store.addRow("jobs", jobRow("j3", "SRE", "Initech", "Open", base.Add(2*day)))
	svc := NewJobBoardService(store, "jobs")

	postings, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, "SRE", postings[0].Title)
	assert.Equal(t, "Backend engineer", postings[1].Title)
	assert.Equal(t, "Acme", postings[1].Company)
}

func TestJobBoardService_Create(t *testing.T) {
	store := newFakeStore()
	svc := NewJobBoardService(store, "jobs")

	posting, err := svc.Create(context.Background(), domain.JobPosting{
		Title: "Platform engineer", Company: "Acme", Link: "https://acme.example/jobs/42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, posting.ID)
	require.Len(t, store.created, 1)
	status, ok := store.created[0].Properties["Status"].(*notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "Open", status.Select.Name)

	_, err = svc.Create(context.Background(), domain.JobPosting{Company: "Acme"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func ideaRow(id, title, author string, created time.Time) notionapi.Page {
	page := titledPage(id, title, notionapi.Properties{
		"Author": richText(author),
	})
	page.CreatedTime = created
	return page
}

func TestIdeaService_Recent_NewestFirstWithLimit(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("i%d", i)
		store.addRow("ideas", ideaRow(id, "Idea "+id, "U1", base.Add(time.Duration(i)*time.Hour)))
	}
	svc := NewIdeaService(store, "ideas")

	ideas, err := svc.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, ideas, 3)
	assert.Equal(t, "Idea i4", ideas[0].Title)
	assert.Equal(t, "Idea i2", ideas[2].Title)

	all, err := svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestIdeaService_Submit(t *testing.T) {
	store := newFakeStore()
	svc := NewIdeaService(store, "ideas")

	idea, err := svc.Submit(context.Background(), "Lightning talks", "Monthly, 5 minutes each.", "U1")
	require.NoError(t, err)
	assert.NotEmpty(t, idea.ID)
	assert.Equal(t, "U1", idea.AuthorID)
	require.Len(t, store.created, 1)

	_, err = svc.Submit(context.Background(), "", "desc", "U1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHomeService_Overview_SectionsDegradeIndependently(t *testing.T) {
	store := newFakeStore()
	store.addRow("wishlist", titledPage("item-1", "Quiet room", nil))
	store.addRow("credits", creditRow("c1", "U1", "Ada", 5, "Helping out", time.Now()))
	store.addRow("ideas", ideaRow("i1", "Lightning talks", "U1", time.Now()))
	store.addRow("jobs", jobRow("j1", "Backend engineer", "Acme", "Open", time.Now()))
	store.broken["jobs"] = true

	cache := newFakeKV()
	members := NewMemberDirectory(store, cache, "members")
	home := NewHomeService(
		NewWishlistService(store, cache, members, "wishlist"),
		NewCreditService(store, cache, "credits"),
		NewIdeaService(store, "ideas"),
		NewJobBoardService(store, "jobs"),
	)

	overview, err := home.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, overview.WishlistTop, 1)
	require.Len(t, overview.Leaderboard, 1)
	assert.Equal(t, 5, overview.Leaderboard[0].Total)
	require.Len(t, overview.RecentIdeas, 1)
	assert.Empty(t, overview.OpenJobs)
}
