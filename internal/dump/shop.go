package dump

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/shopify"
)

// Shop metafields go through the paginated path: bulk jobs require a
// connection at the query root, and the shop is a singleton.
const shopMetafieldsQuery = `query shopMetafields($after: String) {
	shop {
		metafields(first: 250, after: $after) {
			nodes {
				namespace
				key
				type
				value
				` + referenceSelection + `
			}
			pageInfo { hasNextPage endCursor }
		}
	}
}`

func dumpShopMetafields(ctx context.Context, s *Session) (int, error) {
	w, err := NewWriter(s.path("shop-metafields.jsonl"))
	if err != nil {
		return 0, err
	}

	err = s.Client.Paginate(ctx, shopMetafieldsQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Shop struct {
				Metafields struct {
					Nodes    []metafieldNode  `json:"nodes"`
					PageInfo shopify.PageInfo `json:"pageInfo"`
				} `json:"metafields"`
			} `json:"shop"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse shop metafields: %w", err)
		}
		for _, n := range resp.Shop.Metafields.Nodes {
			if err := w.Write(fieldFromMetafield(n)); err != nil {
				return shopify.PageInfo{}, err
			}
		}
		return resp.Shop.Metafields.PageInfo, nil
	})
	if err != nil {
		w.Discard()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}
