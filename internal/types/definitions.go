package types

import "strings"

// Definitions is the single JSON object written to definitions.json.
type Definitions struct {
	MetaobjectDefinitions []MetaobjectDefinition `json:"metaobjectDefinitions"`
	MetafieldDefinitions  []MetafieldDefinition  `json:"metafieldDefinitions"`
}

// MetaobjectDefinition is the schema for one metaobject type.
type MetaobjectDefinition struct {
	ID          string            `json:"id,omitempty"`
	Type        string            `json:"type"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDefinition `json:"fieldDefinitions,omitempty"`

	// Capabilities the definition enables; publishable is the one the apply
	// pipeline depends on so entry status survives the round trip.
	Publishable bool `json:"publishable,omitempty"`
}

// FieldDefinition is one field slot of a metaobject definition.
type FieldDefinition struct {
	Key         string       `json:"key"`
	Name        string       `json:"name,omitempty"`
	Type        string       `json:"type"`
	Description string       `json:"description,omitempty"`
	Required    bool         `json:"required,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
}

// MetafieldDefinition is the schema for metafields of one
// (ownerType, namespace, key) slot.
type MetafieldDefinition struct {
	ID          string       `json:"id,omitempty"`
	OwnerType   string       `json:"ownerType"`
	Namespace   string       `json:"namespace"`
	Key         string       `json:"key"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Type        string       `json:"type"`
	Pinned      bool         `json:"pinned,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
}

// Validation is one named validation constraint on a definition. For
// reference-typed definitions the value may embed a metaobject definition's
// opaque id, which the defs apply rewrites to the destination's id for the
// same type name.
type Validation struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Reserved namespace prefixes are owned by the platform vendor. Definitions
// in them can never be created by clients, so apply skips them silently;
// data records inside them pass through untouched.
var reservedNamespacePrefixes = []string{"shopify--", "app--"}

var reservedNamespaces = map[string]bool{
	"shopify": true,
	"reviews": true,
}

// IsReservedNamespace reports whether a schema namespace is vendor-owned.
func IsReservedNamespace(namespace string) bool {
	if reservedNamespaces[namespace] {
		return true
	}
	for _, p := range reservedNamespacePrefixes {
		if strings.HasPrefix(namespace, p) {
			return true
		}
	}
	return false
}
