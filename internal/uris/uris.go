// Package uris builds public URLs from a base and object path parts.
package uris

import (
	"net/url"
	"strings"
)

// Join appends path parts to base. Leading and trailing slashes of every
// part are dropped, segments are path-escaped ('+' included, since some CDNs
// read it as a space) and the result never ends with a slash.
// A single argument is returned as is.
func Join(base string, parts ...string) string {
	if len(parts) == 0 {
		return base
	}

	var b strings.Builder

	b.WriteString(strings.TrimRight(base, "/"))

	for _, part := range parts {
		for segment := range strings.SplitSeq(part, "/") {
			if segment == "" {
				continue
			}

			b.WriteByte('/')
			b.WriteString(escapeSegment(segment))
		}
	}

	return b.String()
}

func escapeSegment(segment string) string {
	return strings.ReplaceAll(url.PathEscape(segment), "+", "%2B")
}
