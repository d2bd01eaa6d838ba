package entrance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURLScenarioS3(t *testing.T) {
	cases := map[string]string{
		"https://example.com":                        "https://example.com",
		"https://example.com/":                        "https://example.com",
		"  https://example.com/  ":                    "https://example.com",
		"https://example.com/index.html?a=1":          "https://example.com/index.html",
		"not a url at all, just words":                "",
		"":                                             "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}

func TestNormalizeURLRejectsOversizeAndControlChars(t *testing.T) {
	huge := "https://example.com/" + strings.Repeat("a", 5000)
	require.Equal(t, "", NormalizeURL(huge))
	require.Equal(t, "", NormalizeURL("https://example.com/\r\nevil"))
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	inputs := []string{
		"https://example.com/index.html?a=1",
		"  https://example.com/  ",
		"ftp://host/path/",
		"garbage",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		twice := NormalizeURL(once)
		require.Equal(t, once, twice, "input %q", in)
	}
}
