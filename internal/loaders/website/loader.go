// Package website loads pages from the public website into normalized
// documents for the knowledge index.
//
// Website pages carry no edit timestamp, so change detection hashes the
// extracted text instead: an unchanged hash skips the unit.
package website

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/communitykit/communitybot/internal/chunker"
	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/frontmatter"
	"github.com/communitykit/communitybot/internal/identity"
)

// Fetcher retrieves raw HTML for a URL. *HTTPFetcher implements it; tests
// substitute a fake.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages over plain HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Options configures one load run over a single website path.
type Options struct {
	// Fetcher is the HTML retrieval capability.
	Fetcher Fetcher

	// BaseURL is the website origin, for example "https://example.org".
	BaseURL string

	// Path is the page path starting with "/". The path doubles as the
	// unit's stable identity.
	Path string

	// PrevSignals maps unit id to the content hash stored during the
	// previous run.
	PrevSignals map[string]string
}

// Result is the outcome of one load run.
type Result struct {
	// Title is the page title, when the markup carries one.
	Title string

	// Documents holds the chunk-ready documents when the page was added
	// or updated. Empty for a skipped page.
	Documents []domain.Document

	// Stats classifies the unit.
	Stats domain.LoaderStats
}

// Load fetches one website page, extracts its readable text and emits
// chunk-ready documents unless the content hash is unchanged.
func Load(ctx context.Context, opts Options) (*Result, error) {
	if opts.Fetcher == nil || opts.Path == "" {
		return nil, domain.ErrInvalidInput
	}

	url := strings.TrimRight(opts.BaseURL, "/") + opts.Path
	raw, err := opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	title, text, err := Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	res := &Result{Title: title}
	id := opts.Path
	signal := identity.ContentHash(text)

	if prev, known := opts.PrevSignals[id]; known {
		if domain.SignalUnchanged(prev, signal) {
			res.Stats.Skipped = []string{id}
			return res, nil
		}
		res.Stats.Updated = []string{id}
	} else {
		res.Stats.Added = []string{id}
	}

	header := frontmatter.NewHeader().
		Set("Type", "Website Page").
		Set("Title", title).
		Set("URL", url)

	doc := domain.Document{
		ID:      id,
		Content: text,
		Metadata: map[string]string{
			domain.MetaType:     domain.TypeWebsitePage,
			domain.MetaSourceID: id,
			domain.MetaTargetID: id,
			domain.MetaSignal:   signal,
			domain.MetaTitle:    title,
			domain.MetaURL:      url,
			domain.MetaPage:     opts.Path,
		},
	}
	res.Documents = chunker.SplitDocument(doc, header, chunker.ForType(domain.TypeWebsitePage))
	return res, nil
}

// skipElements are subtrees that never contribute readable text.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"footer":   true,
	"template": true,
	"iframe":   true,
	"svg":      true,
}

// blockElements terminate a text line when closed.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"header": true, "main": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "figure": true, "br": true,
}

// Extract parses an HTML document and returns its title and readable text.
// Text is taken from the <header> and <main> regions when present, the
// <body> otherwise, with script, style and navigation subtrees dropped and
// block boundaries turned into line breaks.
func Extract(raw string) (title, text string, err error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", "", err
	}

	if node := findElement(root, "title"); node != nil {
		title = strings.TrimSpace(textContent(node))
	}

	var b strings.Builder
	found := false
	for _, region := range []string{"header", "main"} {
		if node := findElement(root, region); node != nil {
			collectText(node, &b)
			found = true
		}
	}
	if !found {
		content := findElement(root, "body")
		if content == nil {
			content = root
		}
		collectText(content, &b)
	}
	return title, tidy(b.String()), nil
}

func findElement(node *html.Node, name string) *html.Node {
	if node.Type == html.ElementNode && node.Data == name {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func textContent(node *html.Node) string {
	var b strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		} else {
			b.WriteString(textContent(child))
		}
	}
	return b.String()
}

func collectText(node *html.Node, b *strings.Builder) {
	if node.Type == html.TextNode {
		b.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && skipElements[node.Data] {
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
	if node.Type == html.ElementNode && blockElements[node.Data] {
		b.WriteString("\n")
	}
}

// tidy collapses runs of whitespace inside lines and runs of blank lines
// between them, so the hash is stable across markup-only reformatting.
func tidy(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
