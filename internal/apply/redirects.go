package apply

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/types"
)

const redirectCreateMutation = `mutation redirectCreate($urlRedirect: UrlRedirectInput!) {
	urlRedirectCreate(urlRedirect: $urlRedirect) {
		urlRedirect { id path }
		userErrors { field message code }
	}
}`

const redirectUpdateMutation = `mutation redirectUpdate($id: ID!, $urlRedirect: UrlRedirectInput!) {
	urlRedirectUpdate(id: $id, urlRedirect: $urlRedirect) {
		urlRedirect { id path }
		userErrors { field message code }
	}
}`

const policyUpdateMutation = `mutation policyUpdate($shopPolicy: ShopPolicyInput!) {
	shopPolicyUpdate(shopPolicy: $shopPolicy) {
		shopPolicy { type }
		userErrors { field message code }
	}
}`

func (p *Pipeline) applyRedirects(ctx context.Context, st *Stats) error {
	redirects, err := dump.ReadJSON[[]types.Redirect](filepath.Join(p.Dir, "redirects.json"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(redirects))
	for _, rec := range redirects {
		tasks = append(tasks, task{key: "redirect " + rec.Path, run: func(ctx context.Context) (action, error) {
			return p.syncRedirect(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncRedirect(ctx context.Context, rec types.Redirect) (action, error) {
	input := map[string]any{"path": rec.Path, "target": rec.Target}

	var out struct {
		URLRedirect *struct {
			ID string `json:"id"`
		} `json:"urlRedirect"`
	}

	gid, exists := p.ix.Redirect(rec.Path)
	act := actCreated
	if exists {
		act = actUpdated
		vars := map[string]any{"id": gid, "urlRedirect": input}
		if err := p.mutate(ctx, redirectUpdateMutation, "urlRedirectUpdate", vars, &out); err != nil {
			return "", err
		}
	} else {
		if err := p.mutate(ctx, redirectCreateMutation, "urlRedirectCreate", map[string]any{"urlRedirect": input}, &out); err != nil {
			return "", err
		}
	}
	if out.URLRedirect != nil && out.URLRedirect.ID != "" {
		gid = out.URLRedirect.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no redirect id returned")
	}
	p.ix.SetRedirect(rec.Path, gid)
	return act, nil
}

// applyPolicies writes the shop policy singletons. There is no create: every
// slot exists on every shop, so each write counts as an update.
func (p *Pipeline) applyPolicies(ctx context.Context, st *Stats) error {
	policies, err := dump.ReadJSON[[]types.Policy](filepath.Join(p.Dir, "policies.json"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(policies))
	for _, rec := range policies {
		tasks = append(tasks, task{key: "policy " + rec.Type, run: func(ctx context.Context) (action, error) {
			vars := map[string]any{
				"shopPolicy": map[string]any{"type": rec.Type, "body": rec.Body},
			}
			if err := p.mutate(ctx, policyUpdateMutation, "shopPolicyUpdate", vars, nil); err != nil {
				return "", err
			}
			return actUpdated, nil
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}
