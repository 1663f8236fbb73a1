package caselaw

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// InsertRecord stores a new record and returns it as assigned by the store.
func (c *Client) InsertRecord(ctx context.Context, rec NewRecord) (*Record, error) {
	fullURL, err := c.buildURL(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	var result []Record
	if _, err := c.doRequestWithURL(ctx, request{
		method: http.MethodPost,
		url:    fullURL,
		body:   rec,
		prefer: "return=representation",
	}, &result); err != nil {
		return nil, wrapError(err, "InsertRecord")
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("InsertRecord: store returned no row")
	}

	return &result[0], nil
}

// ListRecords retrieves a single page of records.
func (c *Client) ListRecords(ctx context.Context, opts *ListOptions) ([]Record, error) {
	fullURL, err := c.buildURL(opts, nil)
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	var result []Record
	if _, err := c.doRequestWithURL(ctx, request{method: http.MethodGet, url: fullURL}, &result); err != nil {
		return nil, wrapError(err, "ListRecords")
	}

	return result, nil
}

// ListAllRecords retrieves every record, paging past the server's row limit.
// Limit and Offset in opts are ignored; ordering defaults to id ascending.
// The first page asks for an exact count, so paging continues until the table
// total is reached even when the server caps pages below the page size.
// Without a total it stops at the first short page.
func (c *Client) ListAllRecords(ctx context.Context, opts *ListOptions) ([]Record, error) {
	page := ListOptions{Ordering: "id.asc", Limit: c.pageSize}
	if opts != nil {
		page.Columns = opts.Columns
		if opts.Ordering != "" {
			page.Ordering = opts.Ordering
		}
	}

	var all []Record
	total := -1
	for first := true; ; first = false {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fullURL, err := c.buildURL(&page, nil)
		if err != nil {
			return nil, fmt.Errorf("build URL: %w", err)
		}
		r := request{method: http.MethodGet, url: fullURL}
		if first {
			r.prefer = "count=exact"
		}

		var records []Record
		header, err := c.doRequestWithURL(ctx, r, &records)
		if err != nil {
			return nil, wrapError(err, "ListAllRecords")
		}
		if first {
			if n, err := parseContentRangeTotal(header.Get("Content-Range")); err == nil {
				total = n
			}
		}
		all = append(all, records...)

		if len(records) == 0 {
			break
		}
		if total >= 0 {
			if len(all) >= total {
				break
			}
		} else if len(records) < page.Limit {
			break
		}
		page.Offset += len(records)
	}

	return all, nil
}

// GetRecord retrieves a single record by ID.
func (c *Client) GetRecord(ctx context.Context, id int64) (*Record, error) {
	fullURL, err := c.buildURL(nil, url.Values{"id": {"eq." + strconv.FormatInt(id, 10)}})
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	var result []Record
	if _, err := c.doRequestWithURL(ctx, request{method: http.MethodGet, url: fullURL}, &result); err != nil {
		return nil, wrapError(err, "GetRecord")
	}
	if len(result) == 0 {
		return nil, &Error{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("record %d not found", id), Op: "GetRecord"}
	}

	return &result[0], nil
}

// DeleteRecords deletes the records with the given IDs in a single request.
// Callers that must respect per-request limits split ids beforehand.
func (c *Client) DeleteRecords(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	fullURL, err := c.buildURL(nil, url.Values{"id": {"in.(" + joinIDs(ids) + ")"}})
	if err != nil {
		return fmt.Errorf("build URL: %w", err)
	}

	if _, err := c.doRequestWithURL(ctx, request{method: http.MethodDelete, url: fullURL}, nil); err != nil {
		return wrapError(err, "DeleteRecords")
	}
	return nil
}

// DeleteAllRecords empties the table. PostgREST refuses unfiltered deletes, so the
// filter matches every row instead.
func (c *Client) DeleteAllRecords(ctx context.Context) error {
	fullURL, err := c.buildURL(nil, url.Values{"id": {"not.is.null"}})
	if err != nil {
		return fmt.Errorf("build URL: %w", err)
	}

	if _, err := c.doRequestWithURL(ctx, request{method: http.MethodDelete, url: fullURL}, nil); err != nil {
		return wrapError(err, "DeleteAllRecords")
	}
	return nil
}

// CountRecords returns the number of rows in the table.
func (c *Client) CountRecords(ctx context.Context) (int, error) {
	fullURL, err := c.buildURL(&ListOptions{Columns: []string{"id"}}, nil)
	if err != nil {
		return 0, fmt.Errorf("build URL: %w", err)
	}

	header, err := c.doRequestWithURL(ctx, request{
		method: http.MethodHead,
		url:    fullURL,
		prefer: "count=exact",
	}, nil)
	if err != nil {
		return 0, wrapError(err, "CountRecords")
	}

	n, err := parseContentRangeTotal(header.Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("CountRecords: %w", err)
	}
	return n, nil
}

// parseContentRangeTotal extracts the total from "0-24/3573" or "*/0".
func parseContentRangeTotal(value string) (int, error) {
	idx := strings.LastIndex(value, "/")
	if idx < 0 || idx == len(value)-1 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	total := value[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("Content-Range %q has no total", value)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range total %q: %w", value, err)
	}
	return n, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
