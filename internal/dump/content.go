package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const menuItemSelection = `title type url resourceId`

// Menus nest at most three levels; the query unrolls them.
const menusQuery = `query menus($after: String) {
	menus(first: 250, after: $after) {
		nodes {
			id
			handle
			title
			items {
				` + menuItemSelection + `
				items {
					` + menuItemSelection + `
					items { ` + menuItemSelection + ` }
				}
			}
		}
		pageInfo { hasNextPage endCursor }
	}
}`

func dumpMenus(ctx context.Context, s *Session) (int, error) {
	var menus []types.Menu
	err := s.Client.Paginate(ctx, menusQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Menus struct {
				Nodes    []types.Menu     `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"menus"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse menus: %w", err)
		}
		menus = append(menus, resp.Menus.Nodes...)
		return resp.Menus.PageInfo, nil
	})
	if err != nil {
		return 0, err
	}

	for i := range menus {
		annotateMenuItemsFromURLs(menus[i].Items)
	}
	if err := WriteJSON(s.path("menus.json"), menus); err != nil {
		return 0, err
	}
	return len(menus), nil
}

// annotateMenuItemsFromURLs derives natural keys from the storefront paths
// resource-linked items carry (/products/x, /collections/x, /pages/x,
// /blogs/x, /blogs/x/y). Metaobject items have free-form URLs; the
// enrichment pass resolves them from the dump's ground truth instead.
func annotateMenuItemsFromURLs(items []types.MenuItem) {
	for i := range items {
		it := &items[i]
		annotateMenuItemsFromURLs(it.Items)
		if it.ResourceID == "" {
			continue
		}
		switch it.Type {
		case "PRODUCT":
			if h := lastPathSegment(it.URL); h != "" {
				it.RefProduct = &types.ProductRef{Handle: h}
			}
		case "COLLECTION":
			if h := lastPathSegment(it.URL); h != "" {
				it.RefCollection = &types.CollectionRef{Handle: h}
			}
		case "PAGE":
			if h := lastPathSegment(it.URL); h != "" {
				it.RefPage = &types.PageRef{Handle: h}
			}
		case "BLOG":
			if h := lastPathSegment(it.URL); h != "" {
				it.RefBlog = &types.BlogRef{Handle: h}
			}
		case "ARTICLE":
			if blog, article, ok := articlePath(it.URL); ok {
				it.RefArticle = &types.ArticleRef{BlogHandle: blog, ArticleHandle: article}
			}
		}
	}
}

func lastPathSegment(rawURL string) string {
	p := urlPath(rawURL)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// articlePath splits /blogs/{blog}/{article}.
func articlePath(rawURL string) (string, string, bool) {
	p := urlPath(rawURL)
	rest, ok := strings.CutPrefix(p, "/blogs/")
	if !ok {
		return "", "", false
	}
	blog, article, ok := strings.Cut(rest, "/")
	if !ok || blog == "" || article == "" || strings.Contains(article, "/") {
		return "", "", false
	}
	return blog, article, true
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimSuffix(rawURL, "/")
	}
	return strings.TrimSuffix(u.Path, "/")
}

const redirectsQuery = `query redirects($after: String) {
	urlRedirects(first: 250, after: $after) {
		nodes { id path target }
		pageInfo { hasNextPage endCursor }
	}
}`

func dumpRedirects(ctx context.Context, s *Session) (int, error) {
	var redirects []types.Redirect
	err := s.Client.Paginate(ctx, redirectsQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			URLRedirects struct {
				Nodes    []types.Redirect `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"urlRedirects"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse redirects: %w", err)
		}
		redirects = append(redirects, resp.URLRedirects.Nodes...)
		return resp.URLRedirects.PageInfo, nil
	})
	if err != nil {
		return 0, err
	}
	if err := WriteJSON(s.path("redirects.json"), redirects); err != nil {
		return 0, err
	}
	return len(redirects), nil
}

const policiesQuery = `{
	shop {
		shopPolicies { type title body }
	}
}`

func dumpPolicies(ctx context.Context, s *Session) (int, error) {
	data, err := s.Client.Execute(ctx, policiesQuery, nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Shop struct {
			ShopPolicies []types.Policy `json:"shopPolicies"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse shop policies: %w", err)
	}

	// Empty slots are dumped too: applying an empty body is how a policy
	// gets cleared on the destination.
	policies := resp.Shop.ShopPolicies
	if err := WriteJSON(s.path("policies.json"), policies); err != nil {
		return 0, err
	}
	return len(policies), nil
}
