package uris

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestJoin covers slash handling and escaping of path parts.
func TestJoin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		expected string
		base     string
		parts    []string
	}{
		{"no slashes", "https://example.org/abc", "https://example.org/", []string{"abc"}},
		{"trailing slash on base", "https://example.org/abc", "https://example.org", []string{"abc"}},
		{"leading slash on part", "https://example.org/abc", "https://example.org", []string{"/abc"}},
		{"trailing slash on part", "https://example.org/abc", "https://example.org", []string{"abc/"}},
		{"both slashes on part", "https://example.org/abc", "https://example.org", []string{"/abc/"}},
		{"multiple parts", "https://example.org/abc/def", "https://example.org", []string{"abc", "def"}},
		{"nested part", "https://example.org/v1.2.3/app.zip", "https://example.org", []string{"v1.2.3/app.zip"}},
		{"plus escaped", "https://example.org/abc%2Bdef", "https://example.org", []string{"abc+def"}},
		{"space escaped", "https://example.org/a%20b", "https://example.org", []string{"a b"}},
		{"base only", "https://example.org/", "https://example.org/", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, Join(tc.base, tc.parts...))
		})
	}
}
