package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

// discountsQuery covers the six supported discount families. App-backed
// discounts surface as different typenames and are skipped.
const discountsQuery = `query discounts($after: String) {
	discountNodes(first: 50, after: $after) {
		nodes {
			id
			discount {
				__typename
				... on DiscountCodeBasic {
					title status startsAt endsAt
					combinesWith { orderDiscounts productDiscounts shippingDiscounts }
					usageLimit appliesOncePerCustomer
					appliesOnSubscription recurringCycleLimit
					codes(first: 1) { nodes { code } }
					customerGets { value { ...discountValue } items { ...discountItems } }
					minimumRequirement { ...minimumRequirement }
				}
				... on DiscountCodeBxgy {
					title status startsAt endsAt
					combinesWith { orderDiscounts productDiscounts shippingDiscounts }
					usageLimit appliesOncePerCustomer
					codes(first: 1) { nodes { code } }
					customerBuys { value { ...buysValue } items { ...discountItems } }
					customerGets { value { ...discountValue } items { ...discountItems } }
				}
				... on DiscountCodeFreeShipping {
					title status startsAt endsAt
					combinesWith { orderDiscounts productDiscounts shippingDiscounts }
					usageLimit appliesOncePerCustomer
					appliesOnSubscription recurringCycleLimit
					codes(first: 1) { nodes { code } }
					maximumShippingPrice { amount currencyCode }
					minimumRequirement { ...minimumRequirement }
				}
				... on DiscountAutomaticBasic {
					title status startsAt endsAt
					combinesWith { orderDiscounts productDiscounts shippingDiscounts }
					customerGets { value { ...discountValue } items { ...discountItems } }
					minimumRequirement { ...minimumRequirement }
				}
				... on DiscountAutomaticBxgy {
					title status startsAt endsAt
					combinesWith { orderDiscounts productDiscounts shippingDiscounts }
					customerBuys { value { ...buysValue } items { ...discountItems } }
					customerGets { value { ...discountValue } items { ...discountItems } }
				}
				... on DiscountAutomaticFreeShipping {
					title status startsAt endsAt
					combinesWith { orderDiscounts productDiscounts shippingDiscounts }
					appliesOnSubscription recurringCycleLimit
					maximumShippingPrice { amount currencyCode }
					minimumRequirement { ...minimumRequirement }
				}
			}
		}
		pageInfo { hasNextPage endCursor }
	}
}
fragment discountValue on DiscountCustomerGetsValue {
	... on DiscountPercentage { percentage }
	... on DiscountAmount { amount { amount currencyCode } }
	... on DiscountOnQuantity {
		quantity { quantity }
		effect { ... on DiscountPercentage { percentage } }
	}
}
fragment buysValue on DiscountCustomerBuysValue {
	... on DiscountQuantity { quantity }
}
fragment discountItems on DiscountItems {
	... on AllDiscountItems { allItems }
	... on DiscountProducts { products(first: 100) { nodes { handle } } }
	... on DiscountCollections { collections(first: 100) { nodes { handle } } }
}
fragment minimumRequirement on DiscountMinimumRequirement {
	... on DiscountMinimumQuantity { greaterThanOrEqualToQuantity }
	... on DiscountMinimumSubtotal { greaterThanOrEqualToSubtotal { amount currencyCode } }
}`

type discountNodeRaw struct {
	ID       string      `json:"id"`
	Discount discountRaw `json:"discount"`
}

type discountRaw struct {
	Typename               string                      `json:"__typename"`
	Title                  string                      `json:"title"`
	Status                 string                      `json:"status"`
	StartsAt               string                      `json:"startsAt"`
	EndsAt                 string                      `json:"endsAt"`
	CombinesWith           *types.DiscountCombinesWith `json:"combinesWith"`
	UsageLimit             int                         `json:"usageLimit"`
	AppliesOncePerCustomer bool                        `json:"appliesOncePerCustomer"`
	AppliesOnSubscription  *bool                       `json:"appliesOnSubscription"`
	RecurringCycleLimit    *int                        `json:"recurringCycleLimit"`
	Codes                  *struct {
		Nodes []struct {
			Code string `json:"code"`
		} `json:"nodes"`
	} `json:"codes"`
	CustomerGets *struct {
		Value discountValueRaw `json:"value"`
		Items discountItemsRaw `json:"items"`
	} `json:"customerGets"`
	CustomerBuys *struct {
		Value struct {
			Quantity looseInt `json:"quantity"`
		} `json:"value"`
		Items discountItemsRaw `json:"items"`
	} `json:"customerBuys"`
	MinimumRequirement *struct {
		GreaterThanOrEqualToQuantity looseInt     `json:"greaterThanOrEqualToQuantity"`
		GreaterThanOrEqualToSubtotal *types.Money `json:"greaterThanOrEqualToSubtotal"`
	} `json:"minimumRequirement"`
	MaximumShippingPrice *types.Money `json:"maximumShippingPrice"`
}

type discountValueRaw struct {
	Percentage *float64     `json:"percentage"`
	Amount     *types.Money `json:"amount"`
	Quantity   *struct {
		Quantity looseInt `json:"quantity"`
	} `json:"quantity"`
	Effect *struct {
		Percentage *float64 `json:"percentage"`
	} `json:"effect"`
}

type discountItemsRaw struct {
	AllItems    bool            `json:"allItems"`
	Products    *handleNodesRaw `json:"products"`
	Collections *handleNodesRaw `json:"collections"`
}

type handleNodesRaw struct {
	Nodes []struct {
		Handle string `json:"handle"`
	} `json:"nodes"`
}

func dumpDiscounts(ctx context.Context, s *Session) (int, error) {
	var discounts []types.Discount
	err := s.Client.Paginate(ctx, discountsQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			DiscountNodes struct {
				Nodes    []discountNodeRaw `json:"nodes"`
				PageInfo shopify.PageInfo  `json:"pageInfo"`
			} `json:"discountNodes"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse discounts: %w", err)
		}
		for _, n := range resp.DiscountNodes.Nodes {
			d, ok := discountFromRaw(n.ID, n.Discount)
			if !ok {
				s.logger.Debug("skipping unsupported discount", "type", n.Discount.Typename, "id", n.ID)
				continue
			}
			discounts = append(discounts, d)
		}
		return resp.DiscountNodes.PageInfo, nil
	})
	if err != nil {
		return 0, err
	}
	if err := WriteJSON(s.path("discounts.json"), discounts); err != nil {
		return 0, err
	}
	return len(discounts), nil
}

func discountFromRaw(id string, d discountRaw) (types.Discount, bool) {
	kind := types.DiscountKindFromTypename(d.Typename)
	if kind == "" || d.Title == "" {
		return types.Discount{}, false
	}
	out := types.Discount{
		ID:                     id,
		Kind:                   kind,
		Title:                  d.Title,
		Status:                 d.Status,
		StartsAt:               d.StartsAt,
		EndsAt:                 d.EndsAt,
		CombinesWith:           d.CombinesWith,
		UsageLimit:             d.UsageLimit,
		AppliesOncePerCustomer: d.AppliesOncePerCustomer,
		AppliesOnSubscription:  d.AppliesOnSubscription,
		RecurringCycleLimit:    d.RecurringCycleLimit,
		MaximumShippingPrice:   d.MaximumShippingPrice,
	}
	if d.Codes != nil && len(d.Codes.Nodes) > 0 {
		out.Code = d.Codes.Nodes[0].Code
	}
	if g := d.CustomerGets; g != nil {
		switch {
		case g.Value.Percentage != nil:
			out.Percentage = g.Value.Percentage
		case g.Value.Amount != nil:
			out.Amount = g.Value.Amount
		case g.Value.Quantity != nil:
			out.GetsQuantity = int(g.Value.Quantity.Quantity)
			if g.Value.Effect != nil {
				out.Percentage = g.Value.Effect.Percentage
			}
		}
		out.AllItems = g.Items.AllItems
		out.ProductHandles = itemHandles(g.Items.Products)
		out.CollectionHandles = itemHandles(g.Items.Collections)
	}
	if b := d.CustomerBuys; b != nil {
		out.BuysQuantity = int(b.Value.Quantity)
		out.BuysProductHandles = itemHandles(b.Items.Products)
		out.BuysCollectionHandles = itemHandles(b.Items.Collections)
	}
	if m := d.MinimumRequirement; m != nil {
		out.MinimumQuantity = int(m.GreaterThanOrEqualToQuantity)
		out.MinimumSubtotal = m.GreaterThanOrEqualToSubtotal
	}
	return out, true
}

func itemHandles(nodes *handleNodesRaw) []string {
	if nodes == nil {
		return nil
	}
	out := make([]string, 0, len(nodes.Nodes))
	for _, n := range nodes.Nodes {
		out = append(out, n.Handle)
	}
	return out
}

// looseInt tolerates the API's unsigned-64 scalars, which arrive as JSON
// strings rather than numbers.
type looseInt int

func (v *looseInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("failed to parse integer scalar %q: %w", s, err)
	}
	*v = looseInt(i)
	return nil
}
