package session

import (
	"regexp"
	"strings"
)

var (
	authParamRe    = regexp.MustCompile(`(?i)([?&])(code|state|error|error_description|client_info)=[^&]*&?`)
	authResponseRe = regexp.MustCompile(`(?i)[?#&](code|state|error|error_description|client_info)=`)
)

// HasAuthParams reports whether location carries authorization response
// parameters in its query or fragment.
func HasAuthParams(location string) bool {
	return authResponseRe.MatchString(location)
}

// StripAuthParams removes authorization response parameters (code, state,
// error, error_description, client_info) from the query and the fragment of
// location. Other parameters and fragment routes are kept.
func StripAuthParams(location string) string {
	base, frag, hasFrag := strings.Cut(location, "#")
	path, query, hasQuery := strings.Cut(base, "?")

	out := path
	if hasQuery {
		out += stripQuery("?" + query)
	}

	if hasFrag {
		var cleaned string
		if route, fq, ok := strings.Cut(frag, "?"); ok {
			cleaned = route + stripQuery("?"+fq)
		} else if strings.Contains(frag, "=") {
			cleaned = strings.TrimPrefix(stripQuery("?"+frag), "?")
		} else {
			cleaned = frag
		}
		if cleaned != "" {
			out += "#" + cleaned
		}
	}
	return out
}

// stripQuery removes auth parameters from q, which starts with "?".
func stripQuery(q string) string {
	for {
		next := authParamRe.ReplaceAllString(q, "$1")
		if next == q {
			break
		}
		q = next
	}
	q = strings.ReplaceAll(q, "?&", "?")
	for strings.Contains(q, "&&") {
		q = strings.ReplaceAll(q, "&&", "&")
	}
	return strings.TrimRight(q, "?&")
}
