package apply

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/types"
)

const blogCreateMutation = `mutation blogCreate($blog: BlogCreateInput!) {
	blogCreate(blog: $blog) {
		blog { id handle }
		userErrors { field message code }
	}
}`

const blogUpdateMutation = `mutation blogUpdate($id: ID!, $blog: BlogUpdateInput!) {
	blogUpdate(id: $id, blog: $blog) {
		blog { id handle }
		userErrors { field message code }
	}
}`

const articleCreateMutation = `mutation articleCreate($article: ArticleCreateInput!) {
	articleCreate(article: $article) {
		article { id handle }
		userErrors { field message code }
	}
}`

const articleUpdateMutation = `mutation articleUpdate($id: ID!, $article: ArticleUpdateInput!) {
	articleUpdate(id: $id, article: $article) {
		article { id handle }
		userErrors { field message code }
	}
}`

const pageCreateMutation = `mutation pageCreate($page: PageCreateInput!) {
	pageCreate(page: $page) {
		page { id handle }
		userErrors { field message code }
	}
}`

const pageUpdateMutation = `mutation pageUpdate($id: ID!, $page: PageUpdateInput!) {
	pageUpdate(id: $id, page: $page) {
		page { id handle }
		userErrors { field message code }
	}
}`

func (p *Pipeline) applyBlogs(ctx context.Context, st *Stats) error {
	blogs, err := dump.ReadAll[types.Blog](filepath.Join(p.Dir, "blogs.jsonl"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(blogs))
	for _, rec := range blogs {
		tasks = append(tasks, task{key: "blog " + rec.Handle, run: func(ctx context.Context) (action, error) {
			return p.syncBlog(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncBlog(ctx context.Context, rec types.Blog) (action, error) {
	input := map[string]any{
		"handle": rec.Handle,
		"title":  rec.Title,
	}
	if rec.CommentPolicy != "" {
		input["commentPolicy"] = rec.CommentPolicy
	}
	if rec.TemplateSuffix != "" {
		input["templateSuffix"] = rec.TemplateSuffix
	}

	var out struct {
		Blog *struct {
			ID string `json:"id"`
		} `json:"blog"`
	}

	gid, exists := p.ix.Blog(rec.Handle)
	act := actCreated
	if exists {
		act = actUpdated
		vars := map[string]any{"id": gid, "blog": input}
		if err := p.mutate(ctx, blogUpdateMutation, "blogUpdate", vars, &out); err != nil {
			return "", err
		}
	} else {
		if err := p.mutate(ctx, blogCreateMutation, "blogCreate", map[string]any{"blog": input}, &out); err != nil {
			return "", err
		}
	}
	if out.Blog != nil && out.Blog.ID != "" {
		gid = out.Blog.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no blog id returned")
	}
	p.ix.SetBlog(rec.Handle, gid)
	return act, nil
}

func (p *Pipeline) applyArticles(ctx context.Context, st *Stats) error {
	articles, err := dump.ReadAll[types.Article](filepath.Join(p.Dir, "articles.jsonl"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(articles))
	for _, rec := range articles {
		key := "article " + rec.BlogHandle + "/" + rec.Handle
		tasks = append(tasks, task{key: key, run: func(ctx context.Context) (action, error) {
			return p.syncArticle(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncArticle(ctx context.Context, rec types.Article) (action, error) {
	input := map[string]any{
		"handle":      rec.Handle,
		"title":       rec.Title,
		"isPublished": rec.IsPublished,
	}
	if rec.Body != "" {
		input["body"] = rec.Body
	}
	if rec.Summary != "" {
		input["summary"] = rec.Summary
	}
	if len(rec.Tags) > 0 {
		input["tags"] = rec.Tags
	}
	// Absent author falls back to the shop default on the destination.
	if rec.Author != "" {
		input["author"] = map[string]any{"name": rec.Author}
	}
	if rec.IsPublished && rec.PublishedAt != "" {
		input["publishDate"] = rec.PublishedAt
	}
	if rec.ImageURL != "" {
		image := map[string]any{"url": p.files.DestinationURL(rec.ImageURL)}
		if rec.ImageAlt != "" {
			image["altText"] = rec.ImageAlt
		}
		input["image"] = image
	}

	var out struct {
		Article *struct {
			ID string `json:"id"`
		} `json:"article"`
	}

	gid, exists := p.ix.Article(rec.BlogHandle, rec.Handle)
	act := actCreated
	if exists {
		act = actUpdated
		vars := map[string]any{"id": gid, "article": input}
		if err := p.mutate(ctx, articleUpdateMutation, "articleUpdate", vars, &out); err != nil {
			return "", err
		}
	} else {
		blogGID, ok := p.ix.Blog(rec.BlogHandle)
		if !ok {
			return "", fmt.Errorf("blog %q not in destination", rec.BlogHandle)
		}
		input["blogId"] = blogGID
		if err := p.mutate(ctx, articleCreateMutation, "articleCreate", map[string]any{"article": input}, &out); err != nil {
			return "", err
		}
	}
	if out.Article != nil && out.Article.ID != "" {
		gid = out.Article.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no article id returned")
	}
	p.ix.SetArticle(rec.BlogHandle, rec.Handle, gid)
	return act, nil
}

func (p *Pipeline) applyPages(ctx context.Context, st *Stats) error {
	pages, err := dump.ReadAll[types.Page](filepath.Join(p.Dir, "pages.jsonl"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(pages))
	for _, rec := range pages {
		tasks = append(tasks, task{key: "page " + rec.Handle, run: func(ctx context.Context) (action, error) {
			return p.syncPage(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncPage(ctx context.Context, rec types.Page) (action, error) {
	input := map[string]any{
		"handle":      rec.Handle,
		"title":       rec.Title,
		"isPublished": rec.IsPublished,
	}
	if rec.Body != "" {
		input["body"] = rec.Body
	}
	if rec.TemplateSuffix != "" {
		input["templateSuffix"] = rec.TemplateSuffix
	}

	var out struct {
		Page *struct {
			ID string `json:"id"`
		} `json:"page"`
	}

	gid, exists := p.ix.Page(rec.Handle)
	act := actCreated
	if exists {
		act = actUpdated
		vars := map[string]any{"id": gid, "page": input}
		if err := p.mutate(ctx, pageUpdateMutation, "pageUpdate", vars, &out); err != nil {
			return "", err
		}
	} else {
		if err := p.mutate(ctx, pageCreateMutation, "pageCreate", map[string]any{"page": input}, &out); err != nil {
			return "", err
		}
	}
	if out.Page != nil && out.Page.ID != "" {
		gid = out.Page.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no page id returned")
	}
	p.ix.SetPage(rec.Handle, gid)
	return act, nil
}
