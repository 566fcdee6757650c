package dump

import (
	"context"

	"github.com/untoldecay/shopmirror/internal/types"
)

const blogsQuery = `{
	blogs {
		edges {
			node {
				id
				handle
				title
				commentPolicy
				templateSuffix
				` + metafieldsSelection + `
			}
		}
	}
}`

type blogRaw struct {
	ID             string          `json:"id"`
	Handle         string          `json:"handle"`
	Title          string          `json:"title"`
	CommentPolicy  string          `json:"commentPolicy"`
	TemplateSuffix string          `json:"templateSuffix"`
	Metafields     []metafieldNode `json:"metafields"`
}

func dumpBlogs(ctx context.Context, s *Session) (int, error) {
	return dumpBulk(ctx, s, s.path("blogs.jsonl"), blogsQuery, map[string]string{"Metafield": "metafields"},
		func(raw blogRaw) (types.Blog, bool) {
			return types.Blog{
				ID:             raw.ID,
				Handle:         raw.Handle,
				Title:          raw.Title,
				CommentPolicy:  raw.CommentPolicy,
				TemplateSuffix: raw.TemplateSuffix,
				Metafields:     fieldsFromMetafields(raw.Metafields),
			}, true
		})
}

const articlesQuery = `{
	articles {
		edges {
			node {
				id
				handle
				title
				body
				summary
				tags
				isPublished
				publishedAt
				author { name }
				image { url altText }
				blog { handle }
				` + metafieldsSelection + `
			}
		}
	}
}`

type articleRaw struct {
	ID          string   `json:"id"`
	Handle      string   `json:"handle"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Summary     string   `json:"summary"`
	Tags        []string `json:"tags"`
	IsPublished bool     `json:"isPublished"`
	PublishedAt string   `json:"publishedAt"`
	Author      *struct {
		Name string `json:"name"`
	} `json:"author"`
	Image *struct {
		URL     string `json:"url"`
		AltText string `json:"altText"`
	} `json:"image"`
	Blog struct {
		Handle string `json:"handle"`
	} `json:"blog"`
	Metafields []metafieldNode `json:"metafields"`
}

func dumpArticles(ctx context.Context, s *Session) (int, error) {
	return dumpBulk(ctx, s, s.path("articles.jsonl"), articlesQuery, map[string]string{"Metafield": "metafields"},
		func(raw articleRaw) (types.Article, bool) {
			a := types.Article{
				ID:          raw.ID,
				Handle:      raw.Handle,
				BlogHandle:  raw.Blog.Handle,
				Title:       raw.Title,
				Body:        raw.Body,
				Summary:     raw.Summary,
				Tags:        raw.Tags,
				IsPublished: raw.IsPublished,
				PublishedAt: raw.PublishedAt,
				Metafields:  fieldsFromMetafields(raw.Metafields),
			}
			if raw.Author != nil {
				a.Author = raw.Author.Name
			}
			if raw.Image != nil {
				a.ImageURL = raw.Image.URL
				a.ImageAlt = raw.Image.AltText
			}
			return a, true
		})
}
