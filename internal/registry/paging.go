package registry

import (
	"context"
	"net/http"
	"net/url"
)

// MatchFunc inspects one element of a paginated collection. Returning true
// stops the search.
type MatchFunc func(Document) (bool, error)

// SearchFilter builds the advisory server-side substring filter. The
// client-side matcher stays the source of truth.
func SearchFilter(value string) string {
	if value == "" {
		return ""
	}
	return "name[0]=contains:" + url.QueryEscape(value)
}

// Search walks a collection page by page, applying match to every element
// in order. It stops at the first match or after the final page. A
// transport failure on any page aborts the whole search; partial results
// are not kept.
func (c *Client) Search(ctx context.Context, collection, filter string, match MatchFunc) (bool, error) {
	ref := collection
	if filter != "" {
		ref += "?" + filter
	}

	for ref != "" {
		payload, err := c.do(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return false, err
		}
		if payload == nil {
			return false, &SchemaError{Field: "data"}
		}

		elements, err := payload.Array("data")
		if err != nil {
			return false, err
		}
		for _, element := range elements {
			obj, ok := element.(map[string]any)
			if !ok {
				return false, &SchemaError{Field: "data"}
			}
			matched, err := match(Document(obj))
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}

		// The continuation is opaque; forward it untouched.
		ref = ""
		if links := payload.Object("links"); links != nil && links.Has("next") {
			next, err := links.String("next")
			if err != nil {
				return false, err
			}
			ref = next
		}
	}
	return false, nil
}
