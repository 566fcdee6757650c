package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const pageSize = 250

// Build walks the destination with light queries (ids and natural keys only)
// and returns the populated index. The apply pipeline calls it once up front
// and again after the phases that create products, collections, blogs,
// articles, pages, and files.
func Build(ctx context.Context, client *shopify.Client) (*Index, error) {
	ix := New()

	if err := ix.loadHandleFamily(ctx, client, "products", ix.SetProduct); err != nil {
		return nil, err
	}
	if err := ix.loadVariants(ctx, client); err != nil {
		return nil, err
	}
	if err := ix.loadHandleFamily(ctx, client, "collections", ix.SetCollection); err != nil {
		return nil, err
	}
	if err := ix.loadHandleFamily(ctx, client, "pages", ix.SetPage); err != nil {
		return nil, err
	}
	if err := ix.loadHandleFamily(ctx, client, "blogs", ix.SetBlog); err != nil {
		return nil, err
	}
	if err := ix.loadArticles(ctx, client); err != nil {
		return nil, err
	}
	if err := ix.loadMetaobjects(ctx, client); err != nil {
		return nil, err
	}
	if err := ix.loadFiles(ctx, client); err != nil {
		return nil, err
	}
	if err := ix.loadHandleFamily(ctx, client, "menus", ix.SetMenu); err != nil {
		return nil, err
	}
	if err := ix.loadRedirects(ctx, client); err != nil {
		return nil, err
	}
	if err := ix.loadPublications(ctx, client); err != nil {
		return nil, err
	}
	if err := ix.loadHandleFamily(ctx, client, "markets", ix.SetMarket); err != nil {
		return nil, err
	}
	if err := ix.loadDiscounts(ctx, client); err != nil {
		return nil, err
	}

	client.Logger().Debug("destination index built", "counts", ix.Counts())
	return ix, nil
}

// loadHandleFamily covers every connection whose natural key is a bare
// handle: products, collections, pages, blogs, menus.
func (ix *Index) loadHandleFamily(ctx context.Context, client *shopify.Client, connection string, set func(handle, gid string)) error {
	query := fmt.Sprintf(`query index($after: String) {
  %s(first: %d, after: $after) {
    nodes { id handle }
    pageInfo { hasNextPage endCursor }
  }
}`, connection, pageSize)

	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp map[string]struct {
			Nodes []struct {
				ID     string `json:"id"`
				Handle string `json:"handle"`
			} `json:"nodes"`
			PageInfo shopify.PageInfo `json:"pageInfo"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		conn := resp[connection]
		for _, n := range conn.Nodes {
			set(n.Handle, n.ID)
		}
		return conn.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", connection, err)
	}
	return nil
}

func (ix *Index) loadVariants(ctx context.Context, client *shopify.Client) error {
	query := fmt.Sprintf(`query index($after: String) {
  productVariants(first: %d, after: $after) {
    nodes { id sku position product { handle } }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	perProduct := make(map[string]int)
	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			ProductVariants struct {
				Nodes []struct {
					ID       string `json:"id"`
					SKU      string `json:"sku"`
					Position int    `json:"position"`
					Product  struct {
						Handle string `json:"handle"`
					} `json:"product"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"productVariants"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.ProductVariants.Nodes {
			ix.SetVariant(n.Product.Handle, n.SKU, n.Position, n.ID)
			perProduct[n.Product.Handle]++
			if perProduct[n.Product.Handle] == 101 {
				client.Logger().Warn("product has over 100 variants; position keys may be unstable", "product", n.Product.Handle)
			}
		}
		return resp.ProductVariants.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index variants: %w", err)
	}
	return nil
}

func (ix *Index) loadArticles(ctx context.Context, client *shopify.Client) error {
	query := fmt.Sprintf(`query index($after: String) {
  articles(first: %d, after: $after) {
    nodes { id handle blog { handle } }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Articles struct {
				Nodes []struct {
					ID     string `json:"id"`
					Handle string `json:"handle"`
					Blog   struct {
						Handle string `json:"handle"`
					} `json:"blog"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"articles"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.Articles.Nodes {
			ix.SetArticle(n.Blog.Handle, n.Handle, n.ID)
		}
		return resp.Articles.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index articles: %w", err)
	}
	return nil
}

// loadMetaobjects indexes every metaobject of every defined type. The
// metaobjects connection requires a type argument, so definitions come first.
func (ix *Index) loadMetaobjects(ctx context.Context, client *shopify.Client) error {
	typesQuery := fmt.Sprintf(`query index($after: String) {
  metaobjectDefinitions(first: %d, after: $after) {
    nodes { type }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	var typeNames []string
	err := client.Paginate(ctx, typesQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			MetaobjectDefinitions struct {
				Nodes []struct {
					Type string `json:"type"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"metaobjectDefinitions"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.MetaobjectDefinitions.Nodes {
			typeNames = append(typeNames, n.Type)
		}
		return resp.MetaobjectDefinitions.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index metaobject definitions: %w", err)
	}

	query := fmt.Sprintf(`query index($type: String!, $after: String) {
  metaobjects(type: $type, first: %d, after: $after) {
    nodes { id type handle }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	for _, typeName := range typeNames {
		err := client.Paginate(ctx, query, map[string]any{"type": typeName}, func(data json.RawMessage) (shopify.PageInfo, error) {
			var resp struct {
				Metaobjects struct {
					Nodes []struct {
						ID     string `json:"id"`
						Type   string `json:"type"`
						Handle string `json:"handle"`
					} `json:"nodes"`
					PageInfo shopify.PageInfo `json:"pageInfo"`
				} `json:"metaobjects"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				return shopify.PageInfo{}, err
			}
			for _, n := range resp.Metaobjects.Nodes {
				ix.SetMetaobject(n.Type, n.Handle, n.ID)
			}
			return resp.Metaobjects.PageInfo, nil
		})
		if err != nil {
			return fmt.Errorf("failed to index metaobjects of type %s: %w", typeName, err)
		}
	}
	return nil
}

func (ix *Index) loadFiles(ctx context.Context, client *shopify.Client) error {
	query := fmt.Sprintf(`query index($after: String) {
  files(first: %d, after: $after) {
    nodes {
      id
      __typename
      ... on GenericFile { url }
      ... on MediaImage { image { url } }
      ... on Video { originalSource { url } }
    }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Files struct {
				Nodes []struct {
					ID    string `json:"id"`
					URL   string `json:"url"`
					Image *struct {
						URL string `json:"url"`
					} `json:"image"`
					OriginalSource *struct {
						URL string `json:"url"`
					} `json:"originalSource"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"files"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.Files.Nodes {
			u := n.URL
			if u == "" && n.Image != nil {
				u = n.Image.URL
			}
			if u == "" && n.OriginalSource != nil {
				u = n.OriginalSource.URL
			}
			name := Filename(u)
			if name == "" {
				// Files still processing have no URL yet.
				continue
			}
			if !ix.SetFile(name, n.ID) {
				client.Logger().Warn("duplicate filename in file library", "filename", name)
			}
		}
		return resp.Files.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index files: %w", err)
	}
	return nil
}

func (ix *Index) loadRedirects(ctx context.Context, client *shopify.Client) error {
	query := fmt.Sprintf(`query index($after: String) {
  urlRedirects(first: %d, after: $after) {
    nodes { id path }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			URLRedirects struct {
				Nodes []struct {
					ID   string `json:"id"`
					Path string `json:"path"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"urlRedirects"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.URLRedirects.Nodes {
			ix.SetRedirect(n.Path, n.ID)
		}
		return resp.URLRedirects.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index redirects: %w", err)
	}
	return nil
}

func (ix *Index) loadPublications(ctx context.Context, client *shopify.Client) error {
	query := `query index($after: String) {
  publications(first: 50, after: $after) {
    nodes { id catalog { title } }
    pageInfo { hasNextPage endCursor }
  }
}`

	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Publications struct {
				Nodes []struct {
					ID      string `json:"id"`
					Catalog *struct {
						Title string `json:"title"`
					} `json:"catalog"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"publications"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.Publications.Nodes {
			if n.Catalog == nil || n.Catalog.Title == "" {
				continue
			}
			ix.SetPublication(n.Catalog.Title, n.ID)
		}
		return resp.Publications.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index publications: %w", err)
	}
	return nil
}

func (ix *Index) loadDiscounts(ctx context.Context, client *shopify.Client) error {
	query := fmt.Sprintf(`query index($after: String) {
  discountNodes(first: %d, after: $after) {
    nodes {
      id
      discount {
        __typename
        ... on DiscountCodeBasic { title }
        ... on DiscountCodeBxgy { title }
        ... on DiscountCodeFreeShipping { title }
        ... on DiscountAutomaticBasic { title }
        ... on DiscountAutomaticBxgy { title }
        ... on DiscountAutomaticFreeShipping { title }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`, pageSize)

	err := client.Paginate(ctx, query, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			DiscountNodes struct {
				Nodes []struct {
					ID       string `json:"id"`
					Discount struct {
						Typename string `json:"__typename"`
						Title    string `json:"title"`
					} `json:"discount"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"discountNodes"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, err
		}
		for _, n := range resp.DiscountNodes.Nodes {
			kind := types.DiscountKindFromTypename(n.Discount.Typename)
			if kind == "" || n.Discount.Title == "" {
				continue
			}
			ix.SetDiscount(kind, n.Discount.Title, n.ID)
		}
		return resp.DiscountNodes.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("failed to index discounts: %w", err)
	}
	return nil
}
