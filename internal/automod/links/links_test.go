package links

import "testing"

func TestNormalizeURL(t *testing.T) {
	normalized, domain, err := NormalizeURL("https://Example.com/path?utm_source=test&x=1#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain != "example.com" {
		t.Fatalf("unexpected domain: %s", domain)
	}
	if normalized != "https://example.com/path?x=1" {
		t.Fatalf("unexpected normalized url: %s", normalized)
	}
}

func TestNormalizeURLEncodesIDN(t *testing.T) {
	_, domain, err := NormalizeURL("https://dіscord.com/gift") // cyrillic i
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain == "discord.com" || domain[:4] != "xn--" {
		t.Fatalf("expected punycode host, got %s", domain)
	}
}

func TestExtractURLsTrimsPunctuation(t *testing.T) {
	urls := ExtractURLs("look (https://a.com/x). and <https://b.com>")
	if len(urls) != 2 || urls[0] != "https://a.com/x" || urls[1] != "https://b.com" {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestDomainMatch(t *testing.T) {
	allow := map[string]struct{}{"good.com": {}}
	block := map[string]struct{}{"bad.com": {}}
	allowed, blocked := DomainMatch("good.com", allow, block)
	if !allowed || blocked {
		t.Fatalf("expected allow only")
	}
	allowed, blocked = DomainMatch("cdn.bad.com", allow, block)
	if allowed || !blocked {
		t.Fatalf("expected subdomain to be blocked")
	}
	allowed, blocked = DomainMatch("com", allow, block)
	if allowed || blocked {
		t.Fatalf("bare tld must not match")
	}
}

func TestLookalike(t *testing.T) {
	checker := NewChecker(DefaultBrands)
	cases := map[string]string{
		"discord-nitro.gift":        "discord",
		"d1scord.com":               "discord",
		"discord2.com":              "discord",
		"discord.free-nitro.ru":     "discord",
		"steamcornmunity.com":       "steam",
		"login.steam-c0mmunity.net": "steam",
		"free-steam-gifts.ru":       "steam",
		"xn--dscord-pvf.com":        "discord",
		"cdn.discordapp.com":        "",
		"discord.gg":                "",
		"store.steampowered.com":    "",
		"example.org":               "",
	}
	for host, want := range cases {
		brand, ok := checker.Lookalike(host)
		if want == "" {
			if ok {
				t.Fatalf("%s: unexpected lookalike %s", host, brand)
			}
			continue
		}
		if !ok || brand != want {
			t.Fatalf("%s: expected %s, got %q ok=%v", host, want, brand, ok)
		}
	}
}

func TestLookalikeIgnoresHostsContainingBrand(t *testing.T) {
	checker := NewChecker(DefaultBrands)
	for _, host := range []string{"discord.js.org", "discordpy.readthedocs.io", "steamboat.com", "www.mainsteam.org", "paypalmonitor.org"} {
		if finding, ok := checker.Check("see https://"+host+"/docs", nil, nil); ok {
			t.Fatalf("%s: unexpected finding %+v", host, finding)
		}
	}
}

func TestCheck(t *testing.T) {
	checker := NewChecker(DefaultBrands)
	block := map[string]struct{}{"evil.net": {}}
	allow := map[string]struct{}{"discord-events.example": {}}

	finding, ok := checker.Check("hey https://www.evil.net/login?utm_source=x", allow, block)
	if !ok || finding.Reason != ReasonBlocked || finding.URL != "https://www.evil.net/login" {
		t.Fatalf("expected blocked finding, got %+v", finding)
	}
	finding, ok = checker.Check("claim at https://discord-gift.com/abc", nil, nil)
	if !ok || finding.Reason != ReasonLookalike || finding.Brand != "discord" {
		t.Fatalf("expected lookalike finding, got %+v", finding)
	}
	if _, ok := checker.Check("see https://discord-events.example/today", allow, block); ok {
		t.Fatalf("allow list must win")
	}
	if _, ok := checker.Check("no links here", allow, block); ok {
		t.Fatalf("expected no finding")
	}
}
