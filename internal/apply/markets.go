package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const marketCreateMutation = `mutation marketCreate($input: MarketCreateInput!) {
	marketCreate(input: $input) {
		market { id handle }
		userErrors { field message code }
	}
}`

const marketUpdateMutation = `mutation marketUpdate($id: ID!, $input: MarketUpdateInput!) {
	marketUpdate(id: $id, input: $input) {
		market { id handle }
		userErrors { field message code }
	}
}`

const marketRegionsCreateMutation = `mutation marketRegionsCreate($marketId: ID!, $regions: [MarketRegionCreateInput!]!) {
	marketRegionsCreate(marketId: $marketId, regions: $regions) {
		market { id }
		userErrors { field message code }
	}
}`

const marketCurrencyMutation = `mutation marketCurrencySettingsUpdate($marketId: ID!, $input: MarketCurrencySettingsUpdateInput!) {
	marketCurrencySettingsUpdate(marketId: $marketId, input: $input) {
		market { id }
		userErrors { field message code }
	}
}`

const marketWebPresenceCreateMutation = `mutation marketWebPresenceCreate($marketId: ID!, $webPresence: MarketWebPresenceCreateInput!) {
	marketWebPresenceCreate(marketId: $marketId, webPresence: $webPresence) {
		market { id }
		userErrors { field message code }
	}
}`

const marketRegionsQuery = `query marketRegions($id: ID!, $after: String) {
	market(id: $id) {
		regions(first: 250, after: $after) {
			pageInfo { hasNextPage endCursor }
			nodes { ... on MarketRegionCountry { code } }
		}
	}
}`

func (p *Pipeline) applyMarkets(ctx context.Context, st *Stats) error {
	markets, err := dump.ReadJSON[[]types.Market](filepath.Join(p.Dir, "markets.json"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(markets))
	for _, rec := range markets {
		tasks = append(tasks, task{key: "market " + rec.Handle, run: func(ctx context.Context) (action, error) {
			return p.syncMarket(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncMarket(ctx context.Context, rec types.Market) (action, error) {
	var out struct {
		Market *struct {
			ID string `json:"id"`
		} `json:"market"`
	}

	gid, exists := p.ix.Market(rec.Handle)
	act := actCreated
	if exists {
		act = actUpdated
		input := map[string]any{"name": rec.Name, "enabled": rec.Enabled}
		vars := map[string]any{"id": gid, "input": input}
		if err := p.mutate(ctx, marketUpdateMutation, "marketUpdate", vars, &out); err != nil {
			return "", err
		}
	} else {
		regions := make([]map[string]any, 0, len(rec.Regions))
		for _, code := range rec.Regions {
			regions = append(regions, map[string]any{"countryCode": code})
		}
		input := map[string]any{
			"name":    rec.Name,
			"handle":  rec.Handle,
			"enabled": rec.Enabled,
			"regions": regions,
		}
		if err := p.mutate(ctx, marketCreateMutation, "marketCreate", map[string]any{"input": input}, &out); err != nil {
			return "", err
		}
	}
	if out.Market != nil && out.Market.ID != "" {
		gid = out.Market.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no market id returned")
	}
	p.ix.SetMarket(rec.Handle, gid)

	// A country belongs to exactly one market, so region additions can fail
	// on overlap with another market; that surfaces as this record's error.
	if exists && len(rec.Regions) > 0 {
		if err := p.addMissingRegions(ctx, gid, rec.Regions); err != nil {
			return "", err
		}
	}

	if len(rec.Currencies) > 0 {
		vars := map[string]any{
			"marketId": gid,
			"input":    map[string]any{"baseCurrency": rec.Currencies[0]},
		}
		if err := p.mutate(ctx, marketCurrencyMutation, "marketCurrencySettingsUpdate", vars, nil); err != nil {
			return "", fmt.Errorf("currency: %w", err)
		}
	}

	// Web presences only land on freshly created markets; an existing
	// market's storefront setup is left alone. Domain-bound presences need
	// the domain connected to the destination first, which a data sync
	// cannot do.
	if !exists {
		for _, wp := range rec.WebPresences {
			if wp.Domain != "" {
				p.logger.Warn("market web presence bound to a domain, connect it manually",
					"market", rec.Handle, "domain", wp.Domain)
				continue
			}
			if wp.DefaultLocale == "" {
				continue
			}
			presence := map[string]any{"defaultLocale": wp.DefaultLocale}
			if wp.SubfolderSuffix != "" {
				presence["subfolderSuffix"] = wp.SubfolderSuffix
			}
			if len(wp.Locales) > 0 {
				presence["alternateLocales"] = wp.Locales
			}
			vars := map[string]any{"marketId": gid, "webPresence": presence}
			if err := p.mutate(ctx, marketWebPresenceCreateMutation, "marketWebPresenceCreate", vars, nil); err != nil {
				return "", fmt.Errorf("web presence: %w", err)
			}
		}
	}
	return act, nil
}

// addMissingRegions converges an existing market toward the source's country
// list. Regions the destination added on its own stay.
func (p *Pipeline) addMissingRegions(ctx context.Context, gid string, regions []string) error {
	current := make(map[string]bool)
	err := p.Client.Paginate(ctx, marketRegionsQuery, map[string]any{"id": gid}, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Market struct {
				Regions struct {
					PageInfo shopify.PageInfo `json:"pageInfo"`
					Nodes    []struct {
						Code string `json:"code"`
					} `json:"nodes"`
				} `json:"regions"`
			} `json:"market"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse market regions: %w", err)
		}
		for _, n := range resp.Market.Regions.Nodes {
			current[n.Code] = true
		}
		return resp.Market.Regions.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("regions: %w", err)
	}

	var missing []map[string]any
	for _, code := range regions {
		if !current[code] {
			missing = append(missing, map[string]any{"countryCode": code})
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vars := map[string]any{"marketId": gid, "regions": missing}
	if err := p.mutate(ctx, marketRegionsCreateMutation, "marketRegionsCreate", vars, nil); err != nil {
		return fmt.Errorf("regions: %w", err)
	}
	return nil
}
