package types

// Menu is one entry of menus.json: a navigation tree at most three levels
// deep.
type Menu struct {
	ID     string     `json:"id,omitempty"`
	Handle string     `json:"handle"`
	Title  string     `json:"title"`
	Items  []MenuItem `json:"items,omitempty"`
}

// MenuItem is one node of a menu tree. Type is the platform link kind
// (PRODUCT, COLLECTION, PAGE, BLOG, ARTICLE, FRONTPAGE, CATALOG, SEARCH,
// SHOP_POLICY, HTTP). Resource-linked items carry the source tenant's opaque
// id plus the natural-key annotation the apply side resolves.
type MenuItem struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	ResourceID string `json:"resourceId,omitempty"`

	RefProduct    *ProductRef    `json:"refProduct,omitempty"`
	RefCollection *CollectionRef `json:"refCollection,omitempty"`
	RefPage       *PageRef       `json:"refPage,omitempty"`
	RefBlog       *BlogRef       `json:"refBlog,omitempty"`
	RefArticle    *ArticleRef    `json:"refArticle,omitempty"`
	RefMetaobject *MetaobjectRef `json:"refMetaobject,omitempty"`

	Items []MenuItem `json:"items,omitempty"`
}

// Redirect is one entry of redirects.json: a flat path → target rule keyed by
// path.
type Redirect struct {
	ID     string `json:"id,omitempty"`
	Path   string `json:"path"`
	Target string `json:"target"`
}

// Policy is one entry of policies.json. The slot (type) is one of the fixed
// shop-wide singletons: REFUND_POLICY, PRIVACY_POLICY, TERMS_OF_SERVICE,
// SHIPPING_POLICY, CONTACT_INFORMATION.
type Policy struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Discount kinds: the discriminator across the six mutation families.
const (
	DiscountCodeBasic        = "code_basic"
	DiscountCodeBxgy         = "code_bxgy"
	DiscountCodeFreeShipping = "code_free_shipping"
	DiscountAutoBasic        = "auto_basic"
	DiscountAutoBxgy         = "auto_bxgy"
	DiscountAutoFreeShipping = "auto_free_shipping"
)

// DiscountKindFromTypename maps an admin API discount type name to the
// portable kind tag, or "" for app-backed and other unsupported discounts.
func DiscountKindFromTypename(typename string) string {
	switch typename {
	case "DiscountCodeBasic":
		return DiscountCodeBasic
	case "DiscountCodeBxgy":
		return DiscountCodeBxgy
	case "DiscountCodeFreeShipping":
		return DiscountCodeFreeShipping
	case "DiscountAutomaticBasic":
		return DiscountAutoBasic
	case "DiscountAutomaticBxgy":
		return DiscountAutoBxgy
	case "DiscountAutomaticFreeShipping":
		return DiscountAutoFreeShipping
	}
	return ""
}

// Discount is one entry of discounts.json. Kind is the discriminator across
// the six mutation families. Title plus Kind is the upsert key.
type Discount struct {
	ID     string `json:"id,omitempty"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Code   string `json:"code,omitempty"`
	Status string `json:"status,omitempty"`

	StartsAt string `json:"startsAt,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`

	CombinesWith *DiscountCombinesWith `json:"combinesWith,omitempty"`

	// Value of the discount for basic kinds: exactly one of the two is set.
	Percentage *float64 `json:"percentage,omitempty"`
	Amount     *Money   `json:"amount,omitempty"`

	// Item targeting, as natural keys. AllItems short-circuits the lists.
	AllItems          bool     `json:"allItems,omitempty"`
	ProductHandles    []string `json:"productHandles,omitempty"`
	CollectionHandles []string `json:"collectionHandles,omitempty"`

	// BXGY: what the customer must buy to qualify.
	BuysQuantity          int      `json:"buysQuantity,omitempty"`
	BuysProductHandles    []string `json:"buysProductHandles,omitempty"`
	BuysCollectionHandles []string `json:"buysCollectionHandles,omitempty"`
	GetsQuantity          int      `json:"getsQuantity,omitempty"`

	// Free shipping.
	MaximumShippingPrice *Money `json:"maximumShippingPrice,omitempty"`

	MinimumSubtotal *Money `json:"minimumSubtotal,omitempty"`
	MinimumQuantity int    `json:"minimumQuantity,omitempty"`

	UsageLimit             int  `json:"usageLimit,omitempty"`
	AppliesOncePerCustomer bool `json:"appliesOncePerCustomer,omitempty"`

	// Subscription-only fields: included in mutations only when the source
	// positively declared the discount as subscription-bearing.
	AppliesOnSubscription *bool `json:"appliesOnSubscription,omitempty"`
	RecurringCycleLimit   *int  `json:"recurringCycleLimit,omitempty"`
}

// DiscountCombinesWith mirrors the platform's discount stacking switches.
type DiscountCombinesWith struct {
	OrderDiscounts    bool `json:"orderDiscounts"`
	ProductDiscounts  bool `json:"productDiscounts"`
	ShippingDiscounts bool `json:"shippingDiscounts"`
}

// Money is an amount in a named currency.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// IsCode reports whether the discount is code-based (as opposed to
// automatic).
func (d *Discount) IsCode() bool {
	switch d.Kind {
	case DiscountCodeBasic, DiscountCodeBxgy, DiscountCodeFreeShipping:
		return true
	}
	return false
}

// Market is one entry of markets.json, keyed by handle.
type Market struct {
	ID           string        `json:"id,omitempty"`
	Handle       string        `json:"handle"`
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	Regions      []string      `json:"regions,omitempty"`
	Currencies   []string      `json:"currencies,omitempty"`
	WebPresences []WebPresence `json:"webPresences,omitempty"`
}

// WebPresence is a market's storefront presence: a subfolder suffix or a
// dedicated domain, plus its locales.
type WebPresence struct {
	SubfolderSuffix string   `json:"subfolderSuffix,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	DefaultLocale   string   `json:"defaultLocale,omitempty"`
	Locales         []string `json:"locales,omitempty"`
}
