// Package types defines the portable record model shared by the dump writers,
// the enrichment pass, and the apply pipeline.
//
// Records are what lands in the JSONL dump files: entities stripped down to
// natural keys plus the typed field values attached to them. Opaque platform
// identifiers (GIDs) are retained only as debugging aids; every
// cross-reference additionally carries a natural-key annotation so it can be
// rebound against a different tenant.
package types

import "strings"

// Field is a typed value attached to an owner: a metaobject field or a
// metafield instance. Metafields carry a namespace; metaobject fields do not.
//
// For reference-typed fields (type name contains "reference") the Value holds
// the source tenant's opaque identifier (or a JSON array of them for list
// types) and one of the Ref* annotations holds the natural key the apply side
// resolves against the destination index. Fields whose references point at
// non-remappable platform kinds (taxonomy values and the like) carry no
// annotation and their Value passes through untouched.
type Field struct {
	Namespace string `json:"namespace,omitempty"`
	Key       string `json:"key"`
	Type      string `json:"type,omitempty"`
	Value     string `json:"value,omitempty"`

	RefProduct    *ProductRef    `json:"refProduct,omitempty"`
	RefVariant    *VariantRef    `json:"refVariant,omitempty"`
	RefCollection *CollectionRef `json:"refCollection,omitempty"`
	RefPage       *PageRef       `json:"refPage,omitempty"`
	RefBlog       *BlogRef       `json:"refBlog,omitempty"`
	RefArticle    *ArticleRef    `json:"refArticle,omitempty"`
	RefMetaobject *MetaobjectRef `json:"refMetaobject,omitempty"`
	RefFile       *FileRef       `json:"refFile,omitempty"`
	RefList       []ListRef      `json:"refList,omitempty"`
}

// IsReference reports whether the field's declared type names a reference,
// single or list.
func (f *Field) IsReference() bool {
	return TypeIsReference(f.Type)
}

// IsListReference reports whether the field's declared type is a list
// reference, i.e. its value is a JSON array of opaque identifiers.
func (f *Field) IsListReference() bool {
	return TypeIsListReference(f.Type)
}

// ProductRef names a product by handle.
type ProductRef struct {
	Handle string `json:"handle"`
}

// VariantRef names a variant by its composite key: the parent product handle
// plus the SKU, falling back to the 1-based position when the SKU is empty.
type VariantRef struct {
	ProductHandle string `json:"productHandle"`
	SKU           string `json:"sku,omitempty"`
	Position      int    `json:"position,omitempty"`
}

// CollectionRef names a collection by handle.
type CollectionRef struct {
	Handle string `json:"handle"`
}

// PageRef names a page by handle.
type PageRef struct {
	Handle string `json:"handle"`
}

// BlogRef names a blog by handle.
type BlogRef struct {
	Handle string `json:"handle"`
}

// ArticleRef names an article by its composite (blog handle, article handle)
// key. Articles only exist inside a blog.
type ArticleRef struct {
	BlogHandle    string `json:"blogHandle"`
	ArticleHandle string `json:"articleHandle"`
}

// MetaobjectRef names a metaobject by its composite (type, handle) key.
type MetaobjectRef struct {
	Type   string `json:"type"`
	Handle string `json:"handle"`
}

// FileRef names a file-library entry. The URL is the source tenant's CDN URL;
// the filename (derived from the URL path, query tokens stripped) is the key
// files are matched on across tenants.
type FileRef struct {
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ListRef is one entry of a refList annotation. Entries are flat: the natural
// key lives in type-specific fields on this struct rather than nested refs,
// so the enrichment pass can inject them without reshaping the record.
type ListRef struct {
	Type string `json:"type"`

	ProductHandle    string `json:"productHandle,omitempty"`
	SKU              string `json:"sku,omitempty"`
	Position         int    `json:"position,omitempty"`
	CollectionHandle string `json:"collectionHandle,omitempty"`
	PageHandle       string `json:"pageHandle,omitempty"`
	BlogHandle       string `json:"blogHandle,omitempty"`
	ArticleHandle    string `json:"articleHandle,omitempty"`
	MetaobjectType   string `json:"metaobjectType,omitempty"`
	MetaobjectHandle string `json:"metaobjectHandle,omitempty"`
	URL              string `json:"url,omitempty"`
	Filename         string `json:"filename,omitempty"`
}

// TypeIsReference reports whether a metafield/metaobject type name denotes a
// reference type (e.g. "product_reference", "list.metaobject_reference").
func TypeIsReference(typeName string) bool {
	return strings.Contains(typeName, "reference")
}

// TypeIsListReference reports whether a type name denotes a list reference
// ("list." prefix on a reference type).
func TypeIsListReference(typeName string) bool {
	return strings.HasPrefix(typeName, "list.") && strings.Contains(typeName, "reference")
}
