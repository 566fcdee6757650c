package shopify

import (
	"context"
	"encoding/json"
)

// PageInfo is the standard connection paging fragment. Queries passed to
// Paginate must select hasNextPage and endCursor.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Paginate walks a cursor connection. The query must accept an $after: String
// variable; page receives each data payload, consumes its nodes, and returns
// the connection's PageInfo so the walk knows whether to continue.
func (c *Client) Paginate(ctx context.Context, query string, variables map[string]any, page func(data json.RawMessage) (PageInfo, error)) error {
	vars := make(map[string]any, len(variables)+1)
	for k, v := range variables {
		vars[k] = v
	}

	for {
		data, err := c.Execute(ctx, query, vars)
		if err != nil {
			return err
		}
		info, err := page(data)
		if err != nil {
			return err
		}
		if !info.HasNextPage {
			return nil
		}
		vars["after"] = info.EndCursor
	}
}
