package apply

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/types"
)

// discountMutation names one of the six create/update mutation families. The
// platform splits discounts across dedicated mutations per kind; only the
// names and the input argument differ, so the GraphQL text is assembled from
// this table.
type discountMutation struct {
	create string
	update string
	arg    string
	input  string
	node   string
}

var discountMutations = map[string]discountMutation{
	types.DiscountCodeBasic: {
		create: "discountCodeBasicCreate",
		update: "discountCodeBasicUpdate",
		arg:    "basicCodeDiscount",
		input:  "DiscountCodeBasicInput",
		node:   "codeDiscountNode",
	},
	types.DiscountCodeBxgy: {
		create: "discountCodeBxgyCreate",
		update: "discountCodeBxgyUpdate",
		arg:    "bxgyCodeDiscount",
		input:  "DiscountCodeBxgyInput",
		node:   "codeDiscountNode",
	},
	types.DiscountCodeFreeShipping: {
		create: "discountCodeFreeShippingCreate",
		update: "discountCodeFreeShippingUpdate",
		arg:    "freeShippingCodeDiscount",
		input:  "DiscountCodeFreeShippingInput",
		node:   "codeDiscountNode",
	},
	types.DiscountAutoBasic: {
		create: "discountAutomaticBasicCreate",
		update: "discountAutomaticBasicUpdate",
		arg:    "automaticBasicDiscount",
		input:  "DiscountAutomaticBasicInput",
		node:   "automaticDiscountNode",
	},
	types.DiscountAutoBxgy: {
		create: "discountAutomaticBxgyCreate",
		update: "discountAutomaticBxgyUpdate",
		arg:    "automaticBxgyDiscount",
		input:  "DiscountAutomaticBxgyInput",
		node:   "automaticDiscountNode",
	},
	types.DiscountAutoFreeShipping: {
		create: "discountAutomaticFreeShippingCreate",
		update: "discountAutomaticFreeShippingUpdate",
		arg:    "freeShippingAutomaticDiscount",
		input:  "DiscountAutomaticFreeShippingInput",
		node:   "automaticDiscountNode",
	},
}

func (m discountMutation) text(update bool) string {
	name, sig, args := m.create, "$input: "+m.input+"!", m.arg+": $input"
	if update {
		name = m.update
		sig = "$id: ID!, $input: " + m.input + "!"
		args = "id: $id, " + m.arg + ": $input"
	}
	return fmt.Sprintf(`mutation %s(%s) {
	%s(%s) {
		%s { id }
		userErrors { field message code }
	}
}`, name, sig, name, args, m.node)
}

func (p *Pipeline) applyDiscounts(ctx context.Context, st *Stats) error {
	discounts, err := dump.ReadJSON[[]types.Discount](filepath.Join(p.Dir, "discounts.json"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(discounts))
	for _, rec := range discounts {
		tasks = append(tasks, task{key: "discount " + rec.Title, run: func(ctx context.Context) (action, error) {
			return p.syncDiscount(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncDiscount(ctx context.Context, rec types.Discount) (action, error) {
	m, ok := discountMutations[rec.Kind]
	if !ok {
		return "", fmt.Errorf("unknown discount kind %q", rec.Kind)
	}
	input, err := p.discountInput(rec)
	if err != nil {
		return "", err
	}

	var out struct {
		Code *struct {
			ID string `json:"id"`
		} `json:"codeDiscountNode"`
		Auto *struct {
			ID string `json:"id"`
		} `json:"automaticDiscountNode"`
	}

	gid, exists := p.ix.Discount(rec.Kind, rec.Title)
	act := actCreated
	if exists {
		act = actUpdated
		vars := map[string]any{"id": gid, "input": input}
		if err := p.mutate(ctx, m.text(true), m.update, vars, &out); err != nil {
			return "", err
		}
	} else {
		if err := p.mutate(ctx, m.text(false), m.create, map[string]any{"input": input}, &out); err != nil {
			return "", err
		}
	}
	switch {
	case out.Code != nil && out.Code.ID != "":
		gid = out.Code.ID
	case out.Auto != nil && out.Auto.ID != "":
		gid = out.Auto.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no discount id returned")
	}
	p.ix.SetDiscount(rec.Kind, rec.Title, gid)
	return act, nil
}

// discountInput assembles the kind-specific mutation input. Subscription
// switches are included only when the source positively declared them; the
// platform rejects them on non-subscription plans.
func (p *Pipeline) discountInput(rec types.Discount) (map[string]any, error) {
	input := map[string]any{"title": rec.Title}
	if rec.StartsAt != "" {
		input["startsAt"] = rec.StartsAt
	}
	if rec.EndsAt != "" {
		input["endsAt"] = rec.EndsAt
	}
	if rec.CombinesWith != nil {
		input["combinesWith"] = map[string]any{
			"orderDiscounts":    rec.CombinesWith.OrderDiscounts,
			"productDiscounts":  rec.CombinesWith.ProductDiscounts,
			"shippingDiscounts": rec.CombinesWith.ShippingDiscounts,
		}
	}
	if rec.IsCode() {
		input["code"] = rec.Code
		input["customerSelection"] = map[string]any{"all": true}
		if rec.UsageLimit > 0 {
			input["usageLimit"] = rec.UsageLimit
		}
		if rec.AppliesOncePerCustomer {
			input["appliesOncePerCustomer"] = true
		}
	}

	switch rec.Kind {
	case types.DiscountCodeBasic, types.DiscountAutoBasic:
		gets, err := p.customerGets(rec)
		if err != nil {
			return nil, err
		}
		input["customerGets"] = gets
		if m := minimumRequirement(rec); m != nil {
			input["minimumRequirement"] = m
		}
		if rec.AppliesOnSubscription != nil && rec.RecurringCycleLimit != nil {
			input["recurringCycleLimit"] = *rec.RecurringCycleLimit
		}

	case types.DiscountCodeBxgy, types.DiscountAutoBxgy:
		if rec.Percentage == nil {
			return nil, fmt.Errorf("buy-x-get-y discount without a percentage effect is not supported")
		}
		buys, err := p.discountItems(rec.Title, false, rec.BuysProductHandles, rec.BuysCollectionHandles)
		if err != nil {
			return nil, err
		}
		input["customerBuys"] = map[string]any{
			"value": map[string]any{"quantity": strconv.Itoa(rec.BuysQuantity)},
			"items": buys,
		}
		gets, err := p.discountItems(rec.Title, rec.AllItems, rec.ProductHandles, rec.CollectionHandles)
		if err != nil {
			return nil, err
		}
		input["customerGets"] = map[string]any{
			"value": map[string]any{
				"discountOnQuantity": map[string]any{
					"quantity": strconv.Itoa(rec.GetsQuantity),
					"effect":   map[string]any{"percentage": *rec.Percentage},
				},
			},
			"items": gets,
		}

	case types.DiscountCodeFreeShipping, types.DiscountAutoFreeShipping:
		input["destination"] = map[string]any{"all": true}
		if rec.MaximumShippingPrice != nil {
			input["maximumShippingPrice"] = rec.MaximumShippingPrice.Amount
		}
		if m := minimumRequirement(rec); m != nil {
			input["minimumRequirement"] = m
		}
		if rec.AppliesOnSubscription != nil {
			input["appliesOnSubscription"] = *rec.AppliesOnSubscription
			input["appliesOnOneTimePurchase"] = true
			if rec.RecurringCycleLimit != nil {
				input["recurringCycleLimit"] = *rec.RecurringCycleLimit
			}
		}
	}
	return input, nil
}

// customerGets builds the value/items input for the basic kinds: a percentage
// or a fixed amount off the targeted items.
func (p *Pipeline) customerGets(rec types.Discount) (map[string]any, error) {
	value := map[string]any{}
	switch {
	case rec.Percentage != nil:
		value["percentage"] = *rec.Percentage
	case rec.Amount != nil:
		value["discountAmount"] = map[string]any{"amount": rec.Amount.Amount, "appliesOnEachItem": false}
	default:
		return nil, fmt.Errorf("discount has neither a percentage nor an amount")
	}
	items, err := p.discountItems(rec.Title, rec.AllItems, rec.ProductHandles, rec.CollectionHandles)
	if err != nil {
		return nil, err
	}
	gets := map[string]any{"value": value, "items": items}
	if rec.AppliesOnSubscription != nil {
		gets["appliesOnSubscription"] = *rec.AppliesOnSubscription
		gets["appliesOnOneTimePurchase"] = true
	}
	return gets, nil
}

// discountItems resolves item targeting against the destination. A handle
// missing from the destination is dropped with a warning; a record whose
// targets all miss fails rather than silently widening to the whole catalog.
func (p *Pipeline) discountItems(title string, all bool, productHandles, collectionHandles []string) (map[string]any, error) {
	if all {
		return map[string]any{"all": true}, nil
	}
	items := map[string]any{}
	if ids := p.resolveHandles(title, "product", productHandles, p.ix.Product); len(ids) > 0 {
		items["products"] = map[string]any{"productsToAdd": ids}
	}
	if ids := p.resolveHandles(title, "collection", collectionHandles, p.ix.Collection); len(ids) > 0 {
		items["collections"] = map[string]any{"add": ids}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("none of the discount's items exist in the destination")
	}
	return items, nil
}

func (p *Pipeline) resolveHandles(title, label string, handles []string, lookup func(string) (string, bool)) []string {
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		gid, ok := lookup(h)
		if !ok {
			p.logger.Warn("discount target not in destination", "discount", title, label, h)
			continue
		}
		ids = append(ids, gid)
	}
	return ids
}

func minimumRequirement(rec types.Discount) map[string]any {
	switch {
	case rec.MinimumSubtotal != nil:
		return map[string]any{
			"subtotal": map[string]any{"greaterThanOrEqualToSubtotal": rec.MinimumSubtotal.Amount},
		}
	case rec.MinimumQuantity > 0:
		return map[string]any{
			"quantity": map[string]any{"greaterThanOrEqualToQuantity": strconv.Itoa(rec.MinimumQuantity)},
		}
	}
	return nil
}
