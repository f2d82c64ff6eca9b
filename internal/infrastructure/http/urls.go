package httpinfra

import (
	"net/url"
	"strings"
)

// JoinURL appends path-escaped segments to base. Query values, when given,
// replace any query already on base.
func JoinURL(base string, query url.Values, segments ...string) string {
	u := strings.TrimRight(base, "/")
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	if len(query) > 0 {
		if i := strings.IndexByte(u, '?'); i >= 0 {
			u = u[:i]
		}
		u += "?" + query.Encode()
	}
	return u
}
