package dump

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const marketsQuery = `query markets($after: String) {
	markets(first: 50, after: $after) {
		nodes {
			id
			handle
			name
			enabled
			regions(first: 250) {
				nodes { ... on MarketRegionCountry { code } }
			}
			currencySettings { baseCurrency { currencyCode } }
			webPresences(first: 50) {
				nodes {
					domain { host }
					subfolderSuffix
					defaultLocale { locale }
					alternateLocales { locale }
				}
			}
		}
		pageInfo { hasNextPage endCursor }
	}
}`

type marketRaw struct {
	ID      string `json:"id"`
	Handle  string `json:"handle"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Regions struct {
		Nodes []struct {
			Code string `json:"code"`
		} `json:"nodes"`
	} `json:"regions"`
	CurrencySettings *struct {
		BaseCurrency *struct {
			CurrencyCode string `json:"currencyCode"`
		} `json:"baseCurrency"`
	} `json:"currencySettings"`
	WebPresences struct {
		Nodes []struct {
			Domain *struct {
				Host string `json:"host"`
			} `json:"domain"`
			SubfolderSuffix  string      `json:"subfolderSuffix"`
			DefaultLocale    *localeRaw  `json:"defaultLocale"`
			AlternateLocales []localeRaw `json:"alternateLocales"`
		} `json:"nodes"`
	} `json:"webPresences"`
}

type localeRaw struct {
	Locale string `json:"locale"`
}

func dumpMarkets(ctx context.Context, s *Session) (int, error) {
	var markets []types.Market
	err := s.Client.Paginate(ctx, marketsQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Markets struct {
				Nodes    []marketRaw      `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"markets"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse markets: %w", err)
		}
		for _, n := range resp.Markets.Nodes {
			markets = append(markets, marketFromRaw(n))
		}
		return resp.Markets.PageInfo, nil
	})
	if err != nil {
		return 0, err
	}
	if err := WriteJSON(s.path("markets.json"), markets); err != nil {
		return 0, err
	}
	return len(markets), nil
}

func marketFromRaw(raw marketRaw) types.Market {
	m := types.Market{ID: raw.ID, Handle: raw.Handle, Name: raw.Name, Enabled: raw.Enabled}
	for _, r := range raw.Regions.Nodes {
		if r.Code != "" {
			m.Regions = append(m.Regions, r.Code)
		}
	}
	if raw.CurrencySettings != nil && raw.CurrencySettings.BaseCurrency != nil {
		if c := raw.CurrencySettings.BaseCurrency.CurrencyCode; c != "" {
			m.Currencies = append(m.Currencies, c)
		}
	}
	for _, wp := range raw.WebPresences.Nodes {
		p := types.WebPresence{SubfolderSuffix: wp.SubfolderSuffix}
		if wp.Domain != nil {
			p.Domain = wp.Domain.Host
		}
		if wp.DefaultLocale != nil {
			p.DefaultLocale = wp.DefaultLocale.Locale
		}
		for _, l := range wp.AlternateLocales {
			p.Locales = append(p.Locales, l.Locale)
		}
		m.WebPresences = append(m.WebPresences, p)
	}
	return m
}
