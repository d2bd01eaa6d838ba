package clusterhash

import "testing"

func TestNodeID(t *testing.T) {
	cases := map[string]string{
		"":        "46b9dd2b0ba88d13",
		"1.2.3.4": "76f67dfc1573f0e7",
		"1.2.3.5": "ca56ce073bbcd5d5",
	}
	for ip, want := range cases {
		if got := NodeID(ip); got != want {
			t.Errorf("NodeID(%q) = %q, want %q", ip, got, want)
		}
	}
}

func TestNodeHost(t *testing.T) {
	cases := []struct{ ip, clusterHost, want string }{
		{"1.2.3.4", "verseengine.cloud", "76f67dfc1573f0e7.verseengine.cloud"},
		{"1.2.3.4", "entrance.verseengine.cloud", "entrance-76f67dfc1573f0e7.verseengine.cloud"},
	}
	for _, c := range cases {
		if got := NodeHost(c.ip, c.clusterHost); got != c.want {
			t.Errorf("NodeHost(%q, %q) = %q, want %q", c.ip, c.clusterHost, got, c.want)
		}
	}
}

func TestSplitHost(t *testing.T) {
	cases := []struct {
		host, prefix, base string
	}{
		{"verseengine.cloud", "", "verseengine.cloud"},
		{"entrance.verseengine.cloud", "entrance", "verseengine.cloud"},
		{"entrance.a.verseengine.cloud", "entrance", "a.verseengine.cloud"},
	}
	for _, c := range cases {
		prefix, base := SplitHost(c.host)
		if prefix != c.prefix || base != c.base {
			t.Errorf("SplitHost(%q) = (%q, %q), want (%q, %q)", c.host, prefix, base, c.prefix, c.base)
		}
	}
}

func TestNodePrefix(t *testing.T) {
	if got := NodePrefix("1.2.3.4", "verseengine.cloud"); got != NodeID("1.2.3.4") {
		t.Errorf("NodePrefix with empty cluster prefix = %q, want %q", got, NodeID("1.2.3.4"))
	}
	if got, want := NodePrefix("1.2.3.4", "entrance.verseengine.cloud"), "entrance-76f67dfc1573f0e7"; got != want {
		t.Errorf("NodePrefix = %q, want %q", got, want)
	}
}
