package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// GetMarketsPage fetches one page of open, active markets as raw JSON
// objects. Individual entries are decoded later by the normalizer so one
// malformed market cannot fail the whole page.
func (c *Client) GetMarketsPage(ctx context.Context, limit, offset int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("closed", "false")
	query.Set("active", "true")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	raw, err := c.doWithRetry(ctx, "/markets", query)
	if err != nil {
		return nil, fmt.Errorf("get markets offset %d: %w", offset, err)
	}

	return raw, nil
}

// GetAllMarkets fetches all open, active markets by paginating through
// results. A short page terminates the pagination.
func (c *Client) GetAllMarkets(ctx context.Context) ([]json.RawMessage, error) {
	var all []json.RawMessage
	offset := 0

	for {
		page, err := c.GetMarketsPage(ctx, c.pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		c.logger.Debug("fetched market page",
			"page_size", len(page),
			"total", len(all),
		)

		if len(page) < c.pageSize {
			break
		}
		offset += len(page)
	}

	return all, nil
}
