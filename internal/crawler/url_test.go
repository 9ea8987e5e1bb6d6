package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestResolveLinkPreservesQueryAndFragment(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://a.com/b/")
	got, err := ResolveLink(base, "/search?q=x#y")
	require.NoError(t, err)
	assert.Equal(t, "https://a.com/search?q=x#y", got)
}

func TestResolveLinkRelativeAndAbsolute(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://a.com/docs/guide/")
	cases := []struct {
		href string
		want string
	}{
		{"intro", "https://a.com/docs/guide/intro"},
		{"../api", "https://a.com/docs/api"},
		{"/root", "https://a.com/root"},
		{"https://B.com/Page?x=1", "https://b.com/Page?x=1"},
		{"//cdn.a.com/asset", "https://cdn.a.com/asset"},
	}
	for _, tc := range cases {
		got, err := ResolveLink(base, tc.href)
		require.NoError(t, err, "href %q", tc.href)
		assert.Equal(t, tc.want, got, "href %q", tc.href)
	}
}

func TestResolveLinkRejectsNonHTTP(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://a.com/")
	for _, href := range []string{"mailto:x@a.com", "javascript:void(0)", "ftp://a.com/f", ""} {
		_, err := ResolveLink(base, href)
		assert.Error(t, err, "href %q", href)
	}
}

func TestParseStartURL(t *testing.T) {
	t.Parallel()

	u, err := ParseStartURL("https://example.com/start?x=1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.Hostname())

	for _, bad := range []string{"", "example.com/no-scheme", "ftp://example.com", "http://"} {
		_, err := ParseStartURL(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	a := mustParse(t, "https://Example.com/a")
	b := mustParse(t, "http://example.COM:8080/b")
	c := mustParse(t, "https://other.com/")
	assert.True(t, sameHost(a, b))
	assert.False(t, sameHost(a, c))
	assert.False(t, sameHost(nil, a))
}
