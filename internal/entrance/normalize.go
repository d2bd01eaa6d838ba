package entrance

import (
	"net/url"
	"strings"
)

// maxURLLength bounds a world url per spec.md section 6.
const maxURLLength = 4096

// NormalizeURL implements spec.md section 3/6's WorldUrl normalization:
// trim whitespace, reject anything too long or carrying a raw CR/LF,
// then re-emit scheme + host + path with query/fragment discarded and
// any trailing slash stripped. Malformed input normalizes to "", which
// callers reject as bad-request. Idempotent: normalizing an already
// normalized url returns it unchanged (spec.md section 8 property 7).
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if len(s) > maxURLLength {
		return ""
	}
	if strings.ContainsAny(s, "\r\n") {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	out := u.Scheme + "://" + u.Host + path
	return out
}
