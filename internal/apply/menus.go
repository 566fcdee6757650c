package apply

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/types"
)

const menuCreateMutation = `mutation menuCreate($title: String!, $handle: String!, $items: [MenuItemCreateInput!]!) {
	menuCreate(title: $title, handle: $handle, items: $items) {
		menu { id handle }
		userErrors { field message code }
	}
}`

const menuUpdateMutation = `mutation menuUpdate($id: ID!, $title: String!, $items: [MenuItemUpdateInput!]!) {
	menuUpdate(id: $id, title: $title, items: $items) {
		menu { id handle }
		userErrors { field message code }
	}
}`

func (p *Pipeline) applyMenus(ctx context.Context, st *Stats) error {
	menus, err := dump.ReadJSON[[]types.Menu](filepath.Join(p.Dir, "menus.json"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(menus))
	for _, rec := range menus {
		tasks = append(tasks, task{key: "menu " + rec.Handle, run: func(ctx context.Context) (action, error) {
			return p.syncMenu(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncMenu(ctx context.Context, rec types.Menu) (action, error) {
	items := p.menuItems(rec.Handle, rec.Items)

	var out struct {
		Menu *struct {
			ID string `json:"id"`
		} `json:"menu"`
	}

	gid, exists := p.ix.Menu(rec.Handle)
	act := actCreated
	if exists {
		act = actUpdated
		vars := map[string]any{"id": gid, "title": rec.Title, "items": items}
		if err := p.mutate(ctx, menuUpdateMutation, "menuUpdate", vars, &out); err != nil {
			return "", err
		}
	} else {
		vars := map[string]any{"title": rec.Title, "handle": rec.Handle, "items": items}
		if err := p.mutate(ctx, menuCreateMutation, "menuCreate", vars, &out); err != nil {
			return "", err
		}
	}
	if out.Menu != nil && out.Menu.ID != "" {
		gid = out.Menu.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no menu id returned")
	}
	p.ix.SetMenu(rec.Handle, gid)
	return act, nil
}

// menuItems rebuilds a menu tree for the destination. Resource items resolve
// their annotation against the index; an item whose target is missing is left
// out (with its subtree) rather than pointing at a foreign id.
func (p *Pipeline) menuItems(menuHandle string, items []types.MenuItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		input := map[string]any{
			"title": item.Title,
			"type":  item.Type,
		}

		if item.ResourceID != "" {
			gid, ok := p.resolveMenuTarget(item)
			if !ok {
				p.logger.Warn("menu item target not in destination", "menu", menuHandle, "item", item.Title, "type", item.Type)
				continue
			}
			input["resourceId"] = gid
		} else if item.URL != "" {
			input["url"] = item.URL
		}

		if len(item.Items) > 0 {
			input["items"] = p.menuItems(menuHandle, item.Items)
		}
		out = append(out, input)
	}
	return out
}

func (p *Pipeline) resolveMenuTarget(item types.MenuItem) (string, bool) {
	switch {
	case item.RefProduct != nil:
		return p.ix.Product(item.RefProduct.Handle)
	case item.RefCollection != nil:
		return p.ix.Collection(item.RefCollection.Handle)
	case item.RefPage != nil:
		return p.ix.Page(item.RefPage.Handle)
	case item.RefBlog != nil:
		return p.ix.Blog(item.RefBlog.Handle)
	case item.RefArticle != nil:
		return p.ix.Article(item.RefArticle.BlogHandle, item.RefArticle.ArticleHandle)
	case item.RefMetaobject != nil:
		return p.ix.Metaobject(item.RefMetaobject.Type, item.RefMetaobject.Handle)
	}
	return "", false
}
