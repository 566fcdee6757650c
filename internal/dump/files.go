package dump

import (
	"context"

	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/types"
)

// The __typename alias carries the concrete file kind through reassembly,
// which strips the __typename key itself on root lines.
const filesQuery = `{
	files {
		edges {
			node {
				kind: __typename
				id
				alt
				... on GenericFile { url mimeType }
				... on MediaImage { mimeType image { url } }
				... on Video { originalSource { url mimeType } }
			}
		}
	}
}`

type fileRaw struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Alt            string     `json:"alt"`
	URL            string     `json:"url"`
	MimeType       string     `json:"mimeType"`
	Image          *urlRef    `json:"image"`
	OriginalSource *sourceRef `json:"originalSource"`
}

type sourceRef struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

func dumpFiles(ctx context.Context, s *Session) (int, error) {
	return dumpBulk(ctx, s, s.path("files.jsonl"), filesQuery, nil,
		func(raw fileRaw) (types.File, bool) {
			f, ok := fileFromRaw(raw)
			if !ok {
				s.logger.Warn("skipping file with no source url", "id", raw.ID, "kind", raw.Kind)
			}
			return f, ok
		})
}

// fileFromRaw normalizes the three file kinds into one record. Files still
// being processed by the platform have no URL yet and cannot be mirrored.
func fileFromRaw(raw fileRaw) (types.File, bool) {
	f := types.File{ID: raw.ID, Alt: raw.Alt, MimeType: raw.MimeType}
	switch raw.Kind {
	case "MediaImage":
		f.Kind = "image"
		if raw.Image != nil {
			f.URL = raw.Image.URL
		}
	case "Video":
		f.Kind = "video"
		if raw.OriginalSource != nil {
			f.URL = raw.OriginalSource.URL
			f.MimeType = raw.OriginalSource.MimeType
		}
	default:
		f.Kind = "file"
		f.URL = raw.URL
	}
	if f.URL == "" {
		return types.File{}, false
	}
	f.Filename = index.Filename(f.URL)
	return f, true
}
