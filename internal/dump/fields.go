package dump

import (
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/types"
)

// referenceSelection resolves single-reference metafields inline. The bulk
// API returns the referenced node on the same line as its owner (only
// connections split), so the natural key is available at write time.
const referenceSelection = `reference {
							__typename
							... on Product { handle }
							... on ProductVariant { sku position product { handle } }
							... on Collection { handle }
							... on Page { handle }
							... on Blog { handle }
							... on Article { handle blog { handle } }
							... on Metaobject { type handle }
							... on GenericFile { url }
							... on MediaImage { image { url } }
							... on Video { originalSource { url } }
						}`

// metafieldsSelection is spliced into every bulk query whose owner carries
// metafields. The node __typename routes the child line during reassembly.
const metafieldsSelection = `metafields {
					edges {
						node {
							__typename
							id
							namespace
							key
							type
							value
							` + referenceSelection + `
						}
					}
				}`

// metafieldNode is the raw shape of a metafield (or metaobject field) as the
// API returns it. Metaobject fields have no namespace; the field decodes to
// its zero value and stays omitted downstream.
type metafieldNode struct {
	Namespace string         `json:"namespace"`
	Key       string         `json:"key"`
	Type      string         `json:"type"`
	Value     string         `json:"value"`
	Reference *referenceNode `json:"reference"`
}

// referenceNode is the union of natural-key fields across every resolvable
// reference type. The __typename discriminates.
type referenceNode struct {
	Typename       string     `json:"__typename"`
	Handle         string     `json:"handle"`
	SKU            string     `json:"sku"`
	Position       int        `json:"position"`
	Type           string     `json:"type"`
	URL            string     `json:"url"`
	Product        *handleRef `json:"product"`
	Blog           *handleRef `json:"blog"`
	Image          *urlRef    `json:"image"`
	OriginalSource *urlRef    `json:"originalSource"`
}

type handleRef struct {
	Handle string `json:"handle"`
}

type urlRef struct {
	URL string `json:"url"`
}

// fieldFromMetafield converts a raw node into the portable field record,
// attaching the natural-key annotation when the inline reference resolved.
func fieldFromMetafield(n metafieldNode) types.Field {
	f := types.Field{Namespace: n.Namespace, Key: n.Key, Type: n.Type, Value: n.Value}
	annotateFromReference(&f, n.Reference)
	return f
}

func fieldsFromMetafields(nodes []metafieldNode) []types.Field {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]types.Field, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, fieldFromMetafield(n))
	}
	return out
}

// annotateFromReference maps a resolved reference node to the matching
// annotation. Unrecognized typenames (taxonomy values and the like) leave the
// field unannotated; the raw value always passes through untouched.
func annotateFromReference(f *types.Field, ref *referenceNode) {
	if ref == nil {
		return
	}
	switch ref.Typename {
	case "Product":
		f.RefProduct = &types.ProductRef{Handle: ref.Handle}
	case "ProductVariant":
		v := &types.VariantRef{SKU: ref.SKU, Position: ref.Position}
		if ref.Product != nil {
			v.ProductHandle = ref.Product.Handle
		}
		f.RefVariant = v
	case "Collection":
		f.RefCollection = &types.CollectionRef{Handle: ref.Handle}
	case "Page":
		f.RefPage = &types.PageRef{Handle: ref.Handle}
	case "Blog":
		f.RefBlog = &types.BlogRef{Handle: ref.Handle}
	case "Article":
		a := &types.ArticleRef{ArticleHandle: ref.Handle}
		if ref.Blog != nil {
			a.BlogHandle = ref.Blog.Handle
		}
		f.RefArticle = a
	case "Metaobject":
		f.RefMetaobject = &types.MetaobjectRef{Type: ref.Type, Handle: ref.Handle}
	case "GenericFile":
		f.RefFile = fileRefFromURL(ref.URL)
	case "MediaImage":
		if ref.Image != nil {
			f.RefFile = fileRefFromURL(ref.Image.URL)
		}
	case "Video":
		if ref.OriginalSource != nil {
			f.RefFile = fileRefFromURL(ref.OriginalSource.URL)
		}
	}
}

func fileRefFromURL(url string) *types.FileRef {
	if url == "" {
		return nil
	}
	return &types.FileRef{URL: url, Filename: index.Filename(url)}
}

// publicationNode is the raw shape of a resource publication child line.
type publicationNode struct {
	Publication struct {
		Catalog *titleRef `json:"catalog"`
	} `json:"publication"`
	IsPublished bool `json:"isPublished"`
}

type titleRef struct {
	Title string `json:"title"`
}

// publicationTitles reduces publication children to the channel names the
// resource is actually published on.
func publicationTitles(pubs []publicationNode) []string {
	var out []string
	for _, p := range pubs {
		if !p.IsPublished || p.Publication.Catalog == nil {
			continue
		}
		if t := p.Publication.Catalog.Title; t != "" {
			out = append(out, t)
		}
	}
	return out
}

// trimSEO drops an all-empty SEO block so it is omitted from the record.
func trimSEO(seo *types.SEO) *types.SEO {
	if seo == nil || (seo.Title == "" && seo.Description == "") {
		return nil
	}
	return seo
}

// decodeRecord reshapes a reassembled bulk record into a typed raw struct.
func decodeRecord(rec map[string]any, out any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to re-encode bulk record: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode bulk record: %w", err)
	}
	return nil
}
