// Package notion wraps the Notion API client shared by the knowledge-index
// loaders and the community features, and provides the property-to-string
// coercion used when rendering pages and database rows as text.
package notion

import (
	"context"
	"errors"
	"net/http"

	"github.com/jomei/notionapi"
)

// Client wraps the Notion API with pagination helpers and a
// distinguishable not-found condition.
type Client struct {
	api *notionapi.Client
}

// NewClient creates a client for the given integration token.
func NewClient(token string) *Client {
	return &Client{api: notionapi.NewClient(notionapi.Token(token))}
}

// NewClientFromAPI wraps an existing API client. Used by tests.
func NewClientFromAPI(api *notionapi.Client) *Client {
	return &Client{api: api}
}

// API exposes the underlying client for request shapes the wrapper does
// not cover.
func (c *Client) API() *notionapi.Client {
	return c.api
}

// GetPage retrieves a page by id.
func (c *Client) GetPage(ctx context.Context, id string) (*notionapi.Page, error) {
	return c.api.Page.Get(ctx, notionapi.PageID(id))
}

// GetDatabase retrieves a database by id.
func (c *Client) GetDatabase(ctx context.Context, id string) (*notionapi.Database, error) {
	return c.api.Database.Get(ctx, notionapi.DatabaseID(id))
}

// QueryDatabase visits every row of a database, hiding cursor pagination.
// The visit callback may return an error to abort the enumeration.
func (c *Client) QueryDatabase(ctx context.Context, id string, visit func(page notionapi.Page) error) error {
	req := &notionapi.DatabaseQueryRequest{PageSize: 50}
	for {
		resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(id), req)
		if err != nil {
			return err
		}
		for _, page := range resp.Results {
			if err := visit(page); err != nil {
				return err
			}
		}
		if !resp.HasMore {
			return nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// BlockChildren returns all direct children of a block, hiding cursor
// pagination.
func (c *Client) BlockChildren(ctx context.Context, id string) ([]notionapi.Block, error) {
	var blocks []notionapi.Block
	pagination := &notionapi.Pagination{PageSize: 100}
	for {
		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(id), pagination)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, resp.Results...)
		if !resp.HasMore {
			return blocks, nil
		}
		pagination.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

// CreatePage creates a page, typically a row in a feature database.
func (c *Client) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return c.api.Page.Create(ctx, req)
}

// UpdatePage updates page properties.
func (c *Client) UpdatePage(ctx context.Context, id string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return c.api.Page.Update(ctx, notionapi.PageID(id), req)
}

// IsNotFound reports whether an error is the Notion API's object-not-found
// condition, as opposed to a transient failure.
func IsNotFound(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Code == "object_not_found"
	}
	return false
}
