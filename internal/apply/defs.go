package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"charm.land/log/v2"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const metaobjectDefinitionCreateMutation = `mutation metaobjectDefinitionCreate($definition: MetaobjectDefinitionCreateInput!) {
	metaobjectDefinitionCreate(definition: $definition) {
		metaobjectDefinition { id type }
		userErrors { field message code }
	}
}`

const metaobjectDefinitionUpdateMutation = `mutation metaobjectDefinitionUpdate($id: ID!, $definition: MetaobjectDefinitionUpdateInput!) {
	metaobjectDefinitionUpdate(id: $id, definition: $definition) {
		metaobjectDefinition { id type }
		userErrors { field message code }
	}
}`

const metafieldDefinitionCreateMutation = `mutation metafieldDefinitionCreate($definition: MetafieldDefinitionInput!) {
	metafieldDefinitionCreate(definition: $definition) {
		createdDefinition { id }
		userErrors { field message code }
	}
}`

// ApplyDefinitions creates the schema the destination is missing: metaobject
// definitions first, then metafield definitions. Existing definitions are
// never modified and reserved namespaces are skipped. Metaobject definitions
// run in two passes so definitions referencing each other (including
// self-references) land regardless of order: pass one creates every missing
// definition with unresolvable reference validations left off, pass two
// back-fills those validations once every id is known.
func ApplyDefinitions(ctx context.Context, client *shopify.Client, dir string) (*Report, error) {
	defs, err := dump.ReadJSON[types.Definitions](filepath.Join(dir, "definitions.json"))
	if err != nil {
		return nil, err
	}

	logger := client.Logger()
	logger.Info("reading destination schema", "shop", client.Domain)
	existing, err := dump.FetchDefinitions(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination definitions: %w", err)
	}

	d := &defsApply{
		client:  client,
		logger:  logger,
		srcType: make(map[string]string, len(defs.MetaobjectDefinitions)),
		dstID:   make(map[string]string, len(existing.MetaobjectDefinitions)),
	}
	for _, def := range defs.MetaobjectDefinitions {
		if def.ID != "" {
			d.srcType[def.ID] = def.Type
		}
	}
	for _, def := range existing.MetaobjectDefinitions {
		if def.ID != "" {
			d.dstID[def.Type] = def.ID
		}
	}
	dstMetafields := make(map[string]bool, len(existing.MetafieldDefinitions))
	for _, def := range existing.MetafieldDefinitions {
		dstMetafields[metafieldDefKey(def)] = true
	}

	report := &Report{}

	moStats := &Stats{}
	d.applyMetaobjectDefinitions(ctx, moStats, defs.MetaobjectDefinitions)
	report.add("metaobject definitions", *moStats)

	mfStats := &Stats{}
	d.applyMetafieldDefinitions(ctx, mfStats, defs.MetafieldDefinitions, dstMetafields)
	report.add("metafield definitions", *mfStats)

	return report, nil
}

// defsApply carries the id translation state of one definitions run.
type defsApply struct {
	client  *shopify.Client
	logger  *log.Logger
	srcType map[string]string // source definition id → type
	dstID   map[string]string // type → destination definition id
}

// deferredFields remembers the fields of one created definition whose
// reference validations pass one could not resolve yet.
type deferredFields struct {
	defType string
	fields  []types.FieldDefinition
}

func (d *defsApply) applyMetaobjectDefinitions(ctx context.Context, st *Stats, defs []types.MetaobjectDefinition) {
	var deferred []deferredFields

	for _, def := range defs {
		st.Total++
		key := "metaobject definition " + def.Type
		if err := ctx.Err(); err != nil {
			st.fail(key, err)
			continue
		}
		if types.IsReservedNamespace(def.Type) {
			st.Skipped++
			continue
		}
		if _, ok := d.dstID[def.Type]; ok {
			st.Skipped++
			continue
		}

		fields := make([]map[string]any, 0, len(def.Fields))
		var pending []types.FieldDefinition
		for _, f := range def.Fields {
			resolved, unresolved := d.rewriteValidations(f.Validations)
			if unresolved {
				pending = append(pending, f)
			}
			field := map[string]any{"key": f.Key, "type": f.Type}
			if f.Name != "" {
				field["name"] = f.Name
			}
			if f.Description != "" {
				field["description"] = f.Description
			}
			if f.Required {
				field["required"] = true
			}
			if len(resolved) > 0 {
				field["validations"] = validationInputs(resolved)
			}
			fields = append(fields, field)
		}

		input := map[string]any{"type": def.Type, "fieldDefinitions": fields}
		if def.Name != "" {
			input["name"] = def.Name
		}
		if def.Description != "" {
			input["description"] = def.Description
		}
		if def.Publishable {
			input["capabilities"] = map[string]any{"publishable": map[string]any{"enabled": true}}
		}

		var out struct {
			MetaobjectDefinition *struct {
				ID string `json:"id"`
			} `json:"metaobjectDefinition"`
		}
		err := execMutation(ctx, d.client, metaobjectDefinitionCreateMutation, "metaobjectDefinitionCreate",
			map[string]any{"definition": input}, &out)
		if err != nil {
			st.fail(key, err)
			d.logger.Error("record failed", "key", key, "error", err)
			continue
		}
		if out.MetaobjectDefinition == nil || out.MetaobjectDefinition.ID == "" {
			st.fail(key, fmt.Errorf("no definition id returned"))
			continue
		}
		d.dstID[def.Type] = out.MetaobjectDefinition.ID
		st.Created++
		if len(pending) > 0 {
			deferred = append(deferred, deferredFields{defType: def.Type, fields: pending})
		}
	}

	for _, dfr := range deferred {
		key := "metaobject definition " + dfr.defType
		gid, ok := d.dstID[dfr.defType]
		if !ok {
			// Creation failed above; already reported.
			continue
		}
		ops := make([]map[string]any, 0, len(dfr.fields))
		for _, f := range dfr.fields {
			resolved, unresolved := d.rewriteValidations(f.Validations)
			if unresolved {
				st.fail(key, fmt.Errorf("field %s references a metaobject type missing from the destination", f.Key))
				continue
			}
			ops = append(ops, map[string]any{
				"update": map[string]any{"key": f.Key, "validations": validationInputs(resolved)},
			})
		}
		if len(ops) == 0 {
			continue
		}
		vars := map[string]any{"id": gid, "definition": map[string]any{"fieldDefinitions": ops}}
		if err := execMutation(ctx, d.client, metaobjectDefinitionUpdateMutation, "metaobjectDefinitionUpdate", vars, nil); err != nil {
			st.fail(key, err)
			d.logger.Error("record failed", "key", key, "error", err)
		}
	}
}

func (d *defsApply) applyMetafieldDefinitions(ctx context.Context, st *Stats, defs []types.MetafieldDefinition, existing map[string]bool) {
	for _, def := range defs {
		st.Total++
		key := "metafield definition " + def.OwnerType + " " + def.Namespace + "." + def.Key
		if err := ctx.Err(); err != nil {
			st.fail(key, err)
			continue
		}
		if types.IsReservedNamespace(def.Namespace) {
			st.Skipped++
			continue
		}
		if existing[metafieldDefKey(def)] {
			st.Skipped++
			continue
		}

		resolved, unresolved := d.rewriteValidations(def.Validations)
		if unresolved {
			st.fail(key, fmt.Errorf("references a metaobject type missing from the destination"))
			continue
		}

		name := def.Name
		if name == "" {
			name = def.Key
		}
		input := map[string]any{
			"ownerType": def.OwnerType,
			"namespace": def.Namespace,
			"key":       def.Key,
			"name":      name,
			"type":      def.Type,
		}
		if def.Description != "" {
			input["description"] = def.Description
		}
		if def.Pinned {
			input["pin"] = true
		}
		if len(resolved) > 0 {
			input["validations"] = validationInputs(resolved)
		}

		err := execMutation(ctx, d.client, metafieldDefinitionCreateMutation, "metafieldDefinitionCreate",
			map[string]any{"definition": input}, nil)
		if err != nil {
			st.fail(key, err)
			d.logger.Error("record failed", "key", key, "error", err)
			continue
		}
		st.Created++
	}
}

// rewriteValidations maps metaobject definition ids inside validation values
// from source ids to the destination's id for the same type name. Validations
// that carry no definition id pass through untouched. unresolved reports
// whether any reference could not be mapped yet; such validations are left
// out of the result.
func (d *defsApply) rewriteValidations(vals []types.Validation) (out []types.Validation, unresolved bool) {
	for _, v := range vals {
		switch v.Name {
		case "metaobject_definition_id":
			gid, ok := d.resolveDefinitionID(v.Value)
			if !ok {
				unresolved = true
				continue
			}
			out = append(out, types.Validation{Name: v.Name, Value: gid})
		case "metaobject_definition_ids":
			var ids []string
			if err := json.Unmarshal([]byte(v.Value), &ids); err != nil {
				unresolved = true
				continue
			}
			mapped := make([]string, 0, len(ids))
			ok := true
			for _, id := range ids {
				gid, found := d.resolveDefinitionID(id)
				if !found {
					ok = false
					break
				}
				mapped = append(mapped, gid)
			}
			if !ok {
				unresolved = true
				continue
			}
			encoded, err := json.Marshal(mapped)
			if err != nil {
				unresolved = true
				continue
			}
			out = append(out, types.Validation{Name: v.Name, Value: string(encoded)})
		default:
			out = append(out, v)
		}
	}
	return out, unresolved
}

func (d *defsApply) resolveDefinitionID(id string) (string, bool) {
	typ, ok := d.srcType[id]
	if !ok {
		return "", false
	}
	gid, ok := d.dstID[typ]
	return gid, ok
}

func validationInputs(vals []types.Validation) []map[string]any {
	out := make([]map[string]any, 0, len(vals))
	for _, v := range vals {
		out = append(out, map[string]any{"name": v.Name, "value": v.Value})
	}
	return out
}

func metafieldDefKey(def types.MetafieldDefinition) string {
	return def.OwnerType + "/" + def.Namespace + "/" + def.Key
}
