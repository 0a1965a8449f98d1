// Package editor implements the hash-routed section controller of the CV editor.
package editor

import (
	"net/url"
	"strings"
)

// Route is a parsed location fragment of the form
// #<sectionId>(&<key>=<value>)*. Keys other than the recognized
// sub-parameters are dropped.
type Route struct {
	SectionID string
	Edit      string
	View      string
	Add       string
	Create    string
	Job       string
	VariantID string
}

// paramKeys is the serialization order of sub-parameters.
var paramKeys = []string{"edit", "view", "add", "create", "job", "variant_id"}

func (r *Route) field(key string) *string {
	switch key {
	case "edit":
		return &r.Edit
	case "view":
		return &r.View
	case "add":
		return &r.Add
	case "create":
		return &r.Create
	case "job":
		return &r.Job
	case "variant_id":
		return &r.VariantID
	}
	return nil
}

// ParseRoute parses a location fragment. The leading '#' is optional. A key
// without '=' is treated as set to "1". Values are percent-decoded; a value
// that fails to decode is kept verbatim.
func ParseRoute(hash string) Route {
	hash = strings.TrimPrefix(strings.TrimSpace(hash), "#")
	parts := strings.Split(hash, "&")

	r := Route{SectionID: decode(parts[0])}
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			value = "1"
		}
		if dst := r.field(decode(key)); dst != nil {
			*dst = decode(value)
		}
	}
	return r
}

// String serializes the route as a location fragment including the '#'.
// Empty sub-parameters are omitted.
func (r Route) String() string {
	var sb strings.Builder
	sb.WriteString("#")
	sb.WriteString(encode(r.SectionID))
	for _, key := range paramKeys {
		if v := *r.field(key); v != "" {
			sb.WriteString("&")
			sb.WriteString(key)
			sb.WriteString("=")
			sb.WriteString(encode(v))
		}
	}
	return sb.String()
}

// Query returns the section-form query parameters for the route.
func (r Route) Query() url.Values {
	q := url.Values{"section_id": {r.SectionID}}
	for _, key := range paramKeys {
		if v := *r.field(key); v != "" {
			q.Set(key, v)
		}
	}
	return q
}

// Editing reports whether the route opens an entry for editing.
func (r Route) Editing() bool {
	return r.Edit != ""
}

// WithoutModes returns the route with edit, view, add and create cleared.
// Job and variant scoping are kept.
func (r Route) WithoutModes() Route {
	r.Edit, r.View, r.Add, r.Create = "", "", "", ""
	return r
}

func decode(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// encode percent-encodes like a URI component: spaces become %20, not '+'.
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
