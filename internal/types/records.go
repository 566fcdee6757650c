package types

// Product is one line of products.jsonl. Variants and metafields are
// reassembled from the bulk result's child connections before the record is
// written.
type Product struct {
	ID              string          `json:"id,omitempty"`
	Handle          string          `json:"handle"`
	Title           string          `json:"title"`
	DescriptionHTML string          `json:"descriptionHtml,omitempty"`
	Vendor          string          `json:"vendor,omitempty"`
	ProductType     string          `json:"productType,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	Status          string          `json:"status,omitempty"`
	TemplateSuffix  string          `json:"templateSuffix,omitempty"`
	Options         []ProductOption `json:"options,omitempty"`
	SEO             *SEO            `json:"seo,omitempty"`
	Variants        []Variant       `json:"variants,omitempty"`
	Metafields      []Field         `json:"metafields,omitempty"`
	Publications    []string        `json:"publications,omitempty"`
}

// ProductOption is a product option dimension (e.g. Size) and its values.
type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

// SEO carries the search-engine overrides of a product, collection or page.
type SEO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Variant is a product variant. It exists only as a child of a Product; its
// natural key is (productHandle, sku) with (productHandle, pos{position}) as
// the fallback when the SKU is empty.
type Variant struct {
	ID              string           `json:"id,omitempty"`
	SKU             string           `json:"sku,omitempty"`
	Position        int              `json:"position"`
	Price           string           `json:"price,omitempty"`
	CompareAtPrice  string           `json:"compareAtPrice,omitempty"`
	Barcode         string           `json:"barcode,omitempty"`
	Taxable         bool             `json:"taxable,omitempty"`
	InventoryPolicy string           `json:"inventoryPolicy,omitempty"`
	Options         []SelectedOption `json:"options,omitempty"`
}

// SelectedOption is one (name, value) pair selecting a variant along a
// product option dimension.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Collection is one line of collections.jsonl. Smart collections carry a
// RuleSet; manual collections carry their membership as product handles.
type Collection struct {
	ID              string             `json:"id,omitempty"`
	Handle          string             `json:"handle"`
	Title           string             `json:"title"`
	DescriptionHTML string             `json:"descriptionHtml,omitempty"`
	SortOrder       string             `json:"sortOrder,omitempty"`
	TemplateSuffix  string             `json:"templateSuffix,omitempty"`
	SEO             *SEO               `json:"seo,omitempty"`
	RuleSet         *CollectionRuleSet `json:"ruleSet,omitempty"`
	Products        []string           `json:"products,omitempty"`
	Metafields      []Field            `json:"metafields,omitempty"`
	Publications    []string           `json:"publications,omitempty"`
}

// CollectionRuleSet is the rule set of a smart collection.
type CollectionRuleSet struct {
	AppliedDisjunctively bool             `json:"appliedDisjunctively"`
	Rules                []CollectionRule `json:"rules,omitempty"`
}

// CollectionRule is a single smart-collection predicate.
type CollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

// Page is one line of pages.jsonl.
type Page struct {
	ID             string  `json:"id,omitempty"`
	Handle         string  `json:"handle"`
	Title          string  `json:"title"`
	Body           string  `json:"body,omitempty"`
	TemplateSuffix string  `json:"templateSuffix,omitempty"`
	IsPublished    bool    `json:"isPublished"`
	Metafields     []Field `json:"metafields,omitempty"`
}

// Blog is one line of blogs.jsonl. Articles are dumped separately and refer
// back to the blog by handle.
type Blog struct {
	ID             string  `json:"id,omitempty"`
	Handle         string  `json:"handle"`
	Title          string  `json:"title"`
	CommentPolicy  string  `json:"commentPolicy,omitempty"`
	TemplateSuffix string  `json:"templateSuffix,omitempty"`
	Metafields     []Field `json:"metafields,omitempty"`
}

// Article is one line of articles.jsonl, keyed (blogHandle, handle).
type Article struct {
	ID          string   `json:"id,omitempty"`
	Handle      string   `json:"handle"`
	BlogHandle  string   `json:"blogHandle"`
	Title       string   `json:"title"`
	Body        string   `json:"body,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	ImageAlt    string   `json:"imageAlt,omitempty"`
	IsPublished bool     `json:"isPublished"`
	PublishedAt string   `json:"publishedAt,omitempty"`
	Metafields  []Field  `json:"metafields,omitempty"`
}

// Metaobject is one line of metaobjects-{type}.jsonl. Status is the
// publishable capability status (ACTIVE or DRAFT) and is preserved on upsert.
type Metaobject struct {
	ID     string  `json:"id,omitempty"`
	Type   string  `json:"type"`
	Handle string  `json:"handle"`
	Status string  `json:"status,omitempty"`
	Fields []Field `json:"fields,omitempty"`
}

// File is one line of files.jsonl. Filename is derived from the CDN URL with
// any query-string version tokens stripped; it is the cross-tenant match key.
type File struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Alt      string `json:"alt,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Shop metafields (shop-metafields.jsonl) are plain Field lines: the owner is
// the shop singleton, so no envelope is needed.
