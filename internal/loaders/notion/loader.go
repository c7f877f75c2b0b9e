// Package notion loads Notion pages and databases into normalized
// documents for the knowledge index.
//
// A target id may name either a page or a database; both shapes are probed
// and the loader adapts. Page targets produce one document per page,
// optionally following nested child pages and child databases. Database
// targets produce one document per row, either flat (properties only) or
// as full nested pages.
package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jomei/notionapi"

	"github.com/communitykit/communitybot/internal/chunker"
	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/frontmatter"
	"github.com/communitykit/communitybot/internal/logger"
	nclient "github.com/communitykit/communitybot/internal/notion"
)

// timeFormat matches the Notion API's millisecond timestamp rendering, so
// stored change signals round-trip byte-identical.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// API is the slice of the Notion client the loader needs.
// *notion.Client implements it; tests substitute a fake.
type API interface {
	GetPage(ctx context.Context, id string) (*notionapi.Page, error)
	GetDatabase(ctx context.Context, id string) (*notionapi.Database, error)
	QueryDatabase(ctx context.Context, id string, visit func(page notionapi.Page) error) error
	BlockChildren(ctx context.Context, id string) ([]notionapi.Block, error)
}

// Options configures one load run.
type Options struct {
	// Client is the Notion API capability.
	Client API

	// TargetID is the root page or database id.
	TargetID string

	// RowsAsPages loads database rows as full pages (block content
	// included) instead of flat property-only documents.
	RowsAsPages bool

	// RecursiveChildPages follows child pages and child databases nested
	// under a page target.
	RecursiveChildPages bool

	// PrevSignals maps unit id to the change signal stored during the
	// previous run. Units whose stored signal is still current are
	// skipped before any block content is fetched.
	PrevSignals map[string]string

	// Concurrency caps simultaneous API requests. Zero means the default.
	Concurrency int

	// RequestsPerSecond caps the request rate. Zero means the default.
	RequestsPerSecond float64
}

// Result is the outcome of one load run, constructed fresh per invocation.
// No state leaks between runs.
type Result struct {
	// Kind is the resolved target shape.
	Kind domain.TargetKind

	// RootTitle is the target's display title.
	RootTitle string

	// Documents holds the chunk-ready documents for added and updated
	// units. Skipped units contribute nothing here.
	Documents []domain.Document

	// Stats classifies every unit seen during the run.
	Stats domain.LoaderStats
}

// Load runs one synchronization pass over a Notion target.
//
// It returns domain.ErrSourceNotFound only when both the page-shaped and
// the database-shaped probe report not-found; any other failing
// combination is returned as-is and aborts the target.
func Load(ctx context.Context, opts Options) (*Result, error) {
	if opts.Client == nil || opts.TargetID == "" {
		return nil, domain.ErrInvalidInput
	}

	r := &run{
		api:    opts.Client,
		caller: newCaller(opts.Concurrency, opts.RequestsPerSecond),
		opts:   opts,
		res:    &Result{},
	}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r.res, nil
}

// run holds the collaborators and accumulators of a single Load call.
type run struct {
	api    API
	caller *caller
	opts   Options
	res    *Result

	mu sync.Mutex // guards res.Documents and res.Stats during fan-out
}

func (r *run) load(ctx context.Context) error {
	// An id may legitimately be either shape; probe both concurrently.
	var (
		page    *notionapi.Page
		pageErr error
		db      *notionapi.Database
		dbErr   error
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pageErr = r.caller.call(ctx, func() error {
			var err error
			page, err = r.api.GetPage(ctx, r.opts.TargetID)
			return err
		})
	}()
	go func() {
		defer wg.Done()
		dbErr = r.caller.call(ctx, func() error {
			var err error
			db, err = r.api.GetDatabase(ctx, r.opts.TargetID)
			return err
		})
	}()
	wg.Wait()

	switch {
	case dbErr == nil:
		return r.loadDatabaseTarget(ctx, db)
	case pageErr == nil:
		return r.loadPageTarget(ctx, page)
	case nclient.IsNotFound(pageErr) && nclient.IsNotFound(dbErr):
		return fmt.Errorf("%w: %s (share the page or database with the integration)",
			domain.ErrSourceNotFound, r.opts.TargetID)
	default:
		return errors.Join(pageErr, dbErr)
	}
}

// loadPageTarget processes a page target: the root page plus, when
// enabled, every nested child page, through an explicit worklist.
func (r *run) loadPageTarget(ctx context.Context, root *notionapi.Page) error {
	r.res.Kind = domain.TargetNotionPage
	r.res.RootTitle = nclient.PageTitle(root)
	if r.res.RootTitle == "" {
		r.res.RootTitle = r.opts.TargetID
	}

	r.drainWorklist(ctx, []string{string(root.ID)})
	return nil
}

// loadDatabaseTarget processes a database target: one document for the
// database itself plus one per row.
func (r *run) loadDatabaseTarget(ctx context.Context, db *notionapi.Database) error {
	r.res.Kind = domain.TargetNotionDatabase
	r.res.RootTitle = nclient.DatabaseTitle(db)
	if r.res.RootTitle == "" {
		r.res.RootTitle = r.opts.TargetID
	}

	r.loadDatabaseSelf(db)

	var rowIDs []string
	err := r.api.QueryDatabase(ctx, r.opts.TargetID, func(page notionapi.Page) error {
		if r.opts.RowsAsPages {
			rowIDs = append(rowIDs, string(page.ID))
		} else {
			r.loadRowFlat(page)
		}
		return nil
	})
	if err != nil {
		// Enumeration failed mid-way; rows not yet seen must not be
		// mistaken for removed ones.
		return fmt.Errorf("query database %s: %w", r.opts.TargetID, err)
	}

	if r.opts.RowsAsPages {
		r.drainWorklist(ctx, rowIDs)
	}
	return nil
}

// loadDatabaseSelf emits the database's own document from its description.
func (r *run) loadDatabaseSelf(db *notionapi.Database) {
	id := string(db.ID)
	signal := db.LastEditedTime.UTC().Format(timeFormat)
	if r.classify(id, signal) {
		return
	}

	header := frontmatter.NewHeader().
		Set("Type", "Notion Database").
		Set("Title", r.res.RootTitle)

	doc := domain.Document{
		ID:      id,
		Content: nclient.RichTextString(db.Description),
		Metadata: map[string]string{
			domain.MetaType:     domain.TypeNotionDatabase,
			domain.MetaSourceID: id,
			domain.MetaTargetID: r.opts.TargetID,
			domain.MetaSignal:   signal,
			domain.MetaTitle:    r.res.RootTitle,
			domain.MetaURL:      db.URL,
		},
	}
	r.append(chunker.SplitDocument(doc, header, nil)...)
}

// loadRowFlat emits a flat property-only document for one database row.
func (r *run) loadRowFlat(page notionapi.Page) {
	id := string(page.ID)
	signal := page.LastEditedTime.UTC().Format(timeFormat)
	if r.classify(id, signal) {
		return
	}

	title := nclient.PageTitle(&page)
	header := frontmatter.NewHeader().
		Set("Type", "Notion Database Entry").
		Set("Database", r.res.RootTitle)

	doc := domain.Document{
		ID:      id,
		Content: propertiesBlock(page.Properties).Prepend(""),
		Metadata: map[string]string{
			domain.MetaType:     domain.TypeNotionDatabaseEntry,
			domain.MetaSourceID: id,
			domain.MetaTargetID: r.opts.TargetID,
			domain.MetaSignal:   signal,
			domain.MetaTitle:    title,
			domain.MetaURL:      page.URL,
		},
	}
	r.append(chunker.SplitDocument(doc, header, nil)...)
}

// drainWorklist processes page ids until the worklist is empty. The
// worklist and visited set are locals of this call: the traversal holds no
// instance state and is restartable in isolation. A page already queued or
// completed is never processed twice.
func (r *run) drainWorklist(ctx context.Context, worklist []string) {
	visited := make(map[string]bool)
	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		discovered, err := r.loadPage(ctx, id)
		if err != nil {
			logger.Error("Failed to load notion page %s: %v", id, err)
			r.mu.Lock()
			r.res.Stats.Failed = append(r.res.Stats.Failed, id)
			r.mu.Unlock()
			continue
		}
		for _, child := range discovered {
			if !visited[child] {
				worklist = append(worklist, child)
			}
		}
	}
}

// loadPage loads one page: details first, then, unless the stored change
// signal is still current, the full block tree. The timestamp comparison
// deliberately gates the expensive block fetches.
// Returns ids of nested pages discovered for the worklist.
func (r *run) loadPage(ctx context.Context, id string) ([]string, error) {
	var page *notionapi.Page
	err := r.caller.call(ctx, func() error {
		var err error
		page, err = r.api.GetPage(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve page: %w", err)
	}

	signal := page.LastEditedTime.UTC().Format(timeFormat)
	if r.classify(id, signal) {
		return nil, nil
	}

	body, discovered, err := r.renderChildren(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	title := nclient.PageTitle(page)
	if title == "" {
		title = r.res.RootTitle
	}

	header := frontmatter.NewHeader().
		Set("Type", "Notion Page").
		Set("Title", title)

	doc := domain.Document{
		ID:      id,
		Content: propertiesBlock(page.Properties).Prepend(body),
		Metadata: map[string]string{
			domain.MetaType:     domain.TypeNotionPage,
			domain.MetaSourceID: id,
			domain.MetaTargetID: r.opts.TargetID,
			domain.MetaSignal:   signal,
			domain.MetaTitle:    title,
			domain.MetaURL:      page.URL,
		},
	}
	r.append(chunker.SplitDocument(doc, header, chunker.ForType(domain.TypeNotionPage))...)
	return discovered, nil
}

// blockResult carries one block's rendered subtree.
type blockResult struct {
	text       string
	discovered []string
	err        error
}

// renderChildren fetches and renders the children of a block or page.
// Subtrees are rendered with bounded parallelism through the caller; the
// assembled text preserves block order.
func (r *run) renderChildren(ctx context.Context, parentID string, depth int) (string, []string, error) {
	var blocks []notionapi.Block
	err := r.caller.call(ctx, func() error {
		var err error
		blocks, err = r.api.BlockChildren(ctx, parentID)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	results := make([]blockResult, len(blocks))
	var wg sync.WaitGroup
	for i, block := range blocks {
		wg.Add(1)
		go func(i int, block notionapi.Block) {
			defer wg.Done()
			results[i] = r.renderBlock(ctx, block, depth)
		}(i, block)
	}
	wg.Wait()

	var lines []string
	var discovered []string
	for _, res := range results {
		if res.err != nil {
			return "", nil, res.err
		}
		if res.text != "" {
			lines = append(lines, res.text)
		}
		discovered = append(discovered, res.discovered...)
	}
	return strings.Join(lines, "\n"), discovered, nil
}

// renderBlock renders one block and its subtree. Child pages and child
// databases are queued for the worklist instead of being rendered inline.
func (r *run) renderBlock(ctx context.Context, block notionapi.Block, depth int) blockResult {
	switch block.GetType() {
	case nclient.BlockTypeChildPage:
		if r.opts.RecursiveChildPages {
			return blockResult{discovered: []string{string(block.GetID())}}
		}
		return blockResult{}

	case nclient.BlockTypeChildDatabase:
		if !r.opts.RecursiveChildPages {
			return blockResult{}
		}
		var ids []string
		err := r.api.QueryDatabase(ctx, string(block.GetID()), func(page notionapi.Page) error {
			ids = append(ids, string(page.ID))
			return nil
		})
		if err != nil {
			// A nested database that fails to enumerate is logged and
			// dropped; the surrounding page still loads.
			logger.Warn("Failed to enumerate child database %s: %v", block.GetID(), err)
			return blockResult{}
		}
		return blockResult{discovered: ids}
	}

	text := nclient.BlockText(block)
	if !block.GetHasChildren() {
		return blockResult{text: text}
	}

	// A block's children are fetched only after the block itself is
	// confirmed to have children.
	childText, discovered, err := r.renderChildren(ctx, nclient.ChildrenSourceID(block), depth+1)
	if err != nil {
		return blockResult{err: err}
	}
	if childText != "" {
		if text != "" {
			text += "\n"
		}
		text += indent(childText, "  ")
	}
	return blockResult{text: text, discovered: discovered}
}

// classify records the unit's classification against the previous run.
// Returns true when the unit is unchanged and must be skipped without
// further fetching or any store write.
func (r *run) classify(id, signal string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, known := r.opts.PrevSignals[id]
	if !known {
		r.res.Stats.Added = append(r.res.Stats.Added, id)
		return false
	}
	if domain.SignalUnchanged(prev, signal) {
		r.res.Stats.Skipped = append(r.res.Stats.Skipped, id)
		return true
	}
	r.res.Stats.Updated = append(r.res.Stats.Updated, id)
	return false
}

func (r *run) append(docs ...domain.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.res.Documents = append(r.res.Documents, docs...)
}

// propertiesBlock renders page properties as an ordered front-matter
// header: title property first, the rest sorted for determinism.
func propertiesBlock(props notionapi.Properties) *frontmatter.Header {
	header := frontmatter.NewHeader()
	for _, name := range nclient.PropertyNames(props) {
		header.Set(name, nclient.PropertyValue(props[name]))
	}
	return header
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// FormatSignal renders a Notion edit timestamp as a change signal.
func FormatSignal(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
