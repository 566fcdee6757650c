package shopify

import "strings"

// GID is a parsed admin global ID of the form gid://shopify/<Kind>/<id>,
// with any query suffix stripped.
type GID struct {
	Kind string
	ID   string
}

// String reassembles the canonical form.
func (g GID) String() string {
	return "gid://shopify/" + g.Kind + "/" + g.ID
}

// ParseGID parses an admin global ID. It returns false for anything that is
// not a well-formed gid://shopify/ URL, which lets callers pass metafield
// values through untouched when they only look like references.
func ParseGID(s string) (GID, bool) {
	rest, ok := strings.CutPrefix(s, "gid://shopify/")
	if !ok {
		return GID{}, false
	}
	kind, id, ok := strings.Cut(rest, "/")
	if !ok || kind == "" || id == "" {
		return GID{}, false
	}
	// Some GIDs carry a query suffix (?namespace=...).
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	if id == "" || strings.ContainsRune(id, '/') {
		return GID{}, false
	}
	return GID{Kind: kind, ID: id}, true
}

// IsGID reports whether the value looks like an admin global ID.
func IsGID(s string) bool {
	_, ok := ParseGID(s)
	return ok
}
