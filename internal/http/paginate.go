package http

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// Query keys of the token paging protocol.
const (
	pageSizeKey      = "pageSize"
	pageTokenKey     = "pageToken"
	nextPageTokenKey = "nextPageToken"
)

// Pager walks a token-paged listing one page at a time. The first page is
// requested without a token; paging stops as soon as the server returns an
// empty or missing nextPageToken.
type Pager struct {
	client *Client
	path   string
	key    string
	query  url.Values
	done   bool
	pages  int
}

// NewPager prepares a listing of path whose items live under key. query is
// copied; pageSize is sent when positive.
func NewPager(client *Client, path, key string, query url.Values, pageSize int) *Pager {
	copied := url.Values{}
	for name, values := range query {
		copied[name] = append([]string(nil), values...)
	}

	copied.Del(pageTokenKey)

	if pageSize > 0 {
		copied.Set(pageSizeKey, strconv.Itoa(pageSize))
	}

	return &Pager{client: client, path: path, key: key, query: copied}
}

// HasNext reports whether another page may be fetched.
func (p *Pager) HasNext() bool {
	return !p.done
}

// Pages returns the number of pages fetched so far.
func (p *Pager) Pages() int {
	return p.pages
}

// Next fetches the next page. It returns dt.ErrNoMoreItems once exhausted.
// An error also ends the listing.
func (p *Pager) Next(ctx context.Context) ([]json.RawMessage, error) {
	if p.done {
		return nil, dt.ErrNoMoreItems
	}

	resp, err := p.client.Get(ctx, p.path, p.query)
	if err != nil {
		p.done = true

		return nil, err
	}

	p.pages++

	if !gjson.ValidBytes(resp.Body) {
		p.done = true

		return nil, dt.NewFormatError("page %d of %s is not valid JSON", p.pages, p.path)
	}

	items := gjson.GetBytes(resp.Body, gjson.Escape(p.key))
	page := make([]json.RawMessage, 0, len(items.Array()))

	items.ForEach(func(_, value gjson.Result) bool {
		page = append(page, json.RawMessage(value.Raw))

		return true
	})

	token := gjson.GetBytes(resp.Body, nextPageTokenKey).String()
	if token == "" {
		p.done = true
	} else {
		p.query.Set(pageTokenKey, token)
	}

	return page, nil
}

// All yields pages until the listing is exhausted or an error occurs.
// Stopping the loop early leaves the remaining pages unfetched.
func (p *Pager) All(ctx context.Context) iter.Seq2[[]json.RawMessage, error] {
	return func(yield func([]json.RawMessage, error) bool) {
		for p.HasNext() {
			page, err := p.Next(ctx)
			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}

// ListAll fetches every page of path and concatenates the items under key.
func (c *Client) ListAll(ctx context.Context, path, key string, query url.Values, pageSize int) ([]json.RawMessage, error) {
	var items []json.RawMessage

	for page, err := range NewPager(c, path, key, query, pageSize).All(ctx) {
		if err != nil {
			return nil, err
		}

		items = append(items, page...)
	}

	return items, nil
}

// TypedPager decodes each page of a Pager into T.
type TypedPager[T any] struct {
	pager *Pager
}

// NewTypedPager wraps a Pager over items of type T.
func NewTypedPager[T any](client *Client, path, key string, query url.Values, pageSize int) *TypedPager[T] {
	return &TypedPager[T]{pager: NewPager(client, path, key, query, pageSize)}
}

// HasNext reports whether another page may be fetched.
func (p *TypedPager[T]) HasNext() bool {
	return p.pager.HasNext()
}

// Next fetches and decodes the next page.
func (p *TypedPager[T]) Next(ctx context.Context) ([]T, error) {
	raw, err := p.pager.Next(ctx)
	if err != nil {
		return nil, err
	}

	return DecodeItems[T](raw)
}

// ListAllAs fetches every page of path and decodes the items into T.
func ListAllAs[T any](ctx context.Context, client *Client, path, key string, query url.Values, pageSize int) ([]T, error) {
	raw, err := client.ListAll(ctx, path, key, query, pageSize)
	if err != nil {
		return nil, err
	}

	return DecodeItems[T](raw)
}

// DecodeItems unmarshals each raw item into T.
func DecodeItems[T any](raw []json.RawMessage) ([]T, error) {
	items := make([]T, 0, len(raw))

	for i, item := range raw {
		var value T

		err := json.Unmarshal(item, &value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode item %d: %w", i, err)
		}

		items = append(items, value)
	}

	return items, nil
}
