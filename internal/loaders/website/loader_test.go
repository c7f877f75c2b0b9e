package website

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/identity"
)

type fakeFetcher struct {
	pages map[string]string
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return "", f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, url)
	}
	return page, nil
}

const pricingHTML = `<!DOCTYPE html>
<html>
<head><title>Pricing - Example</title>
<style>body { color: red; }</style>
</head>
<body>
<nav><a href="/">Home</a><a href="/pricing">Pricing</a></nav>
<header><h1>Pricing</h1></header>
<main>
  <p>Plans start at  ten   dollars.</p>
  <script>trackPageView();</script>
  <p>Annual billing saves 20%.</p>
</main>
<footer>Copyright</footer>
</body>
</html>`

func TestLoad_NewPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/pricing": pricingHTML,
	}}

	res, err := Load(context.Background(), Options{
		Fetcher: fetcher,
		BaseURL: "https://example.org",
		Path:    "/pricing",
	})
	require.NoError(t, err)

	assert.Equal(t, "Pricing - Example", res.Title)
	assert.Equal(t, []string{"/pricing"}, res.Stats.Added)
	require.Len(t, res.Documents, 1)

	doc := res.Documents[0]
	assert.Equal(t, "/pricing", doc.ID)
	assert.Equal(t, domain.TypeWebsitePage, doc.Type())
	assert.Equal(t, "/pricing", doc.SourceID())
	assert.Equal(t, "https://example.org/pricing", doc.Metadata[domain.MetaURL])
	assert.Contains(t, doc.Content, "Plans start at ten dollars.")
	assert.Contains(t, doc.Content, "Title: Pricing - Example")
	assert.NotContains(t, doc.Content, "trackPageView")
	assert.NotContains(t, doc.Content, "Copyright")
	assert.NotContains(t, doc.Content, "Home")
}

func TestLoad_UnchangedHashSkips(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/pricing": pricingHTML,
	}}

	_, text, err := Extract(pricingHTML)
	require.NoError(t, err)

	res, err := Load(context.Background(), Options{
		Fetcher:     fetcher,
		BaseURL:     "https://example.org",
		Path:        "/pricing",
		PrevSignals: map[string]string{"/pricing": identity.ContentHash(text)},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/pricing"}, res.Stats.Skipped)
	assert.Empty(t, res.Documents)
}

func TestLoad_ChangedHashUpdates(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/pricing": pricingHTML,
	}}

	res, err := Load(context.Background(), Options{
		Fetcher:     fetcher,
		BaseURL:     "https://example.org",
		Path:        "/pricing",
		PrevSignals: map[string]string{"/pricing": "stalehash"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/pricing"}, res.Stats.Updated)
	assert.NotEmpty(t, res.Documents)
}

func TestLoad_MarkupOnlyReformattingSkips(t *testing.T) {
	// Same text, different whitespace and attribute noise.
	reformatted := strings.ReplaceAll(pricingHTML, "\n  <p>", "\n\n\n  <p class=\"lead\">")

	_, original, err := Extract(pricingHTML)
	require.NoError(t, err)
	_, changed, err := Extract(reformatted)
	require.NoError(t, err)

	assert.Equal(t, identity.ContentHash(original), identity.ContentHash(changed))
}

func TestLoad_MissingPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}

	_, err := Load(context.Background(), Options{
		Fetcher: fetcher,
		BaseURL: "https://example.org",
		Path:    "/gone",
	})

	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoad_InvalidInput(t *testing.T) {
	_, err := Load(context.Background(), Options{Path: "/pricing"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Load(context.Background(), Options{Fetcher: &fakeFetcher{}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoad_TrailingSlashBaseURL(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/pricing": pricingHTML,
	}}

	_, err := Load(context.Background(), Options{
		Fetcher: fetcher,
		BaseURL: "https://example.org/",
		Path:    "/pricing",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.org/pricing"}, fetcher.calls)
}

func TestExtract_FallsBackToBody(t *testing.T) {
	raw := `<html><head><title>Bare</title></head><body><p>Just a paragraph.</p></body></html>`

	title, text, err := Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "Bare", title)
	assert.Equal(t, "Just a paragraph.", text)
}

func TestExtract_HeaderAndMainOnly(t *testing.T) {
	title, text, err := Extract(pricingHTML)
	require.NoError(t, err)

	assert.Equal(t, "Pricing - Example", title)
	assert.Contains(t, text, "Pricing\n")
	assert.Contains(t, text, "Annual billing saves 20%.")
	assert.NotContains(t, text, "Home")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "color: red")
}
