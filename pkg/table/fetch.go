package table

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/client"
)

// Sort orders.
const (
	SortAscend  = "ascend"
	SortDescend = "descend"
)

// Record is one table row as returned by the backend.
type Record map[string]any

// Query is the list request derived from search, filters, sorting and
// pagination.
type Query struct {
	Search    string           `json:"search,omitempty"`
	Filters   map[string][]any `json:"filters,omitempty"`
	SortField string           `json:"sortField,omitempty"`
	SortOrder string           `json:"sortOrder,omitempty"`
	Page      int              `json:"page,omitempty"`
	PageSize  int              `json:"pageSize,omitempty"`
}

// Params encodes the query as list endpoint parameters. Multi-value filters
// are joined with commas.
func (q Query) Params() url.Values {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		params.Set("keyword", search)
	}
	if q.SortField != "" {
		params.Set("sortField", q.SortField)
		params.Set("sortOrder", q.SortOrder)
	}
	keys := make([]string, 0, len(q.Filters))
	for key := range q.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := q.Filters[key]
		if len(values) == 0 {
			continue
		}
		parts := make([]string, 0, len(values))
		for _, value := range values {
			parts = append(parts, fmt.Sprint(value))
		}
		params.Set(key, strings.Join(parts, ","))
	}
	return params
}

// Page is one fetched slice of records.
type Page struct {
	Records []Record `json:"list"`
	Total   int      `json:"total"`
}

// Fetcher loads a page of records for a query.
type Fetcher interface {
	Fetch(ctx context.Context, query Query) (Page, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, query Query) (Page, error)

// Fetch implements Fetcher.
func (fn FetcherFunc) Fetch(ctx context.Context, query Query) (Page, error) {
	return fn(ctx, query)
}

// RequesterFetcher issues GET path with the query parameters. The envelope
// data may be {list, total} or a bare array.
func RequesterFetcher(requester client.Requester, path string) Fetcher {
	return FetcherFunc(func(ctx context.Context, query Query) (Page, error) {
		envelope, err := requester.Get(ctx, path, query.Params())
		if err != nil {
			return Page{}, fmt.Errorf("table: fetch %s: %w", path, err)
		}
		if !envelope.Success {
			return Page{}, fmt.Errorf("table: fetch %s: %s", path, envelope.FailureMessage())
		}

		var page Page
		if trimmed := bytes.TrimSpace(envelope.Data); len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &page.Records); err != nil {
				return Page{}, fmt.Errorf("table: decode %s: %w", path, err)
			}
			page.Total = len(page.Records)
			return page, nil
		}
		if err := envelope.Decode(&page); err != nil {
			return Page{}, fmt.Errorf("table: decode %s: %w", path, err)
		}
		if page.Total == 0 {
			page.Total = len(page.Records)
		}
		return page, nil
	})
}
