package dump

import (
	"context"

	"github.com/untoldecay/shopmirror/internal/types"
)

const pagesQuery = `{
	pages {
		edges {
			node {
				id
				handle
				title
				body
				templateSuffix
				isPublished
				` + metafieldsSelection + `
			}
		}
	}
}`

type pageRaw struct {
	ID             string          `json:"id"`
	Handle         string          `json:"handle"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	TemplateSuffix string          `json:"templateSuffix"`
	IsPublished    bool            `json:"isPublished"`
	Metafields     []metafieldNode `json:"metafields"`
}

func dumpPages(ctx context.Context, s *Session) (int, error) {
	return dumpBulk(ctx, s, s.path("pages.jsonl"), pagesQuery, map[string]string{"Metafield": "metafields"},
		func(raw pageRaw) (types.Page, bool) {
			return types.Page{
				ID:             raw.ID,
				Handle:         raw.Handle,
				Title:          raw.Title,
				Body:           raw.Body,
				TemplateSuffix: raw.TemplateSuffix,
				IsPublished:    raw.IsPublished,
				Metafields:     fieldsFromMetafields(raw.Metafields),
			}, true
		})
}
