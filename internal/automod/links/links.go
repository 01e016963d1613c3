// Package links inspects URLs posted in chat: guild allow and block lists
// and hosts impersonating well known brands.
package links

import (
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

type Brand struct {
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
}

var DefaultBrands = []Brand{
	{Name: "discord", Domains: []string{"discord.com", "discord.gg", "discordapp.com", "discordapp.net", "discord.media", "discord.new", "discord.gift", "discordstatus.com"}},
	{Name: "steam", Domains: []string{"steampowered.com", "steamcommunity.com", "steamstatic.com", "steam.tv"}},
	{Name: "roblox", Domains: []string{"roblox.com", "rbxcdn.com"}},
	{Name: "paypal", Domains: []string{"paypal.com", "paypal.me"}},
}

const (
	ReasonBlocked   = "blocked_domain"
	ReasonLookalike = "brand_lookalike"
)

type Finding struct {
	URL    string
	Host   string
	Reason string
	Brand  string
}

// DefaultSafeDomains host projects whose subdomains are named after the
// community they serve, such as discord.js.org.
var DefaultSafeDomains = []string{
	"js.org", "readthedocs.io", "github.com", "gitlab.com", "npmjs.com",
	"pypi.org", "pkg.go.dev", "wikipedia.org", "reddit.com", "youtube.com",
	"youtu.be", "twitch.tv", "twitter.com", "x.com", "google.com",
}

type Checker struct {
	brands []Brand
	safe   map[string]struct{}
	// skeletons of the registrable labels of each brand's official domains
	official map[string][]string
}

func NewChecker(brands []Brand) *Checker {
	c := &Checker{
		brands:   brands,
		safe:     make(map[string]struct{}, len(DefaultSafeDomains)),
		official: make(map[string][]string, len(brands)),
	}
	for _, domain := range DefaultSafeDomains {
		c.safe[domain] = struct{}{}
	}
	for _, brand := range brands {
		for _, domain := range brand.Domains {
			if label := registrableLabel(domain); label != "" {
				c.official[brand.Name] = append(c.official[brand.Name], merge(Skeleton(label)))
			}
		}
	}
	return c
}

// Check returns the first suspicious link in content.
func (c *Checker) Check(content string, allowlist, blocklist map[string]struct{}) (Finding, bool) {
	for _, raw := range ExtractURLs(content) {
		normalized, host, err := NormalizeURL(raw)
		if err != nil || host == "" {
			continue
		}
		allowed, blocked := DomainMatch(host, allowlist, blocklist)
		if allowed {
			continue
		}
		if blocked {
			return Finding{URL: normalized, Host: host, Reason: ReasonBlocked}, true
		}
		if brand, ok := c.Lookalike(host); ok {
			return Finding{URL: normalized, Host: host, Reason: ReasonLookalike, Brand: brand}, true
		}
	}
	return Finding{}, false
}

// Lookalike reports whether a label of host, left of its public suffix,
// spells a brand (alone or padded with hyphenated words or digits) or
// imitates one of the brand's official domains, while host is neither
// official nor under a safe domain.
func (c *Checker) Lookalike(host string) (string, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if allowed, _ := DomainMatch(host, c.safe, nil); allowed {
		return "", false
	}
	labels := ownLabels(host)
	for _, brand := range c.brands {
		if official(host, brand.Domains) {
			continue
		}
		name := merge(Skeleton(brand.Name))
		for _, label := range labels {
			if spellsBrand(label, name) || imitates(label, c.official[brand.Name]) {
				return brand.Name, true
			}
		}
	}
	return "", false
}

func spellsBrand(label, name string) bool {
	for _, part := range strings.Split(label, "-") {
		part = strings.Trim(part, "0123456789")
		if part != "" && merge(Skeleton(part)) == name {
			return true
		}
	}
	return false
}

func imitates(label string, officialLabels []string) bool {
	skeleton := merge(Skeleton(label))
	for _, want := range officialLabels {
		if skeleton == want {
			return true
		}
	}
	return false
}

// merge folds "i" into "l" since "1" imitates both.
func merge(s string) string {
	return strings.ReplaceAll(s, "i", "l")
}

// ownLabels returns the unicode labels of host left of its public suffix.
func ownLabels(host string) []string {
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	rest := strings.TrimSuffix(strings.TrimSuffix(host, suffix), ".")
	if rest == "" {
		return nil
	}
	labels := strings.Split(rest, ".")
	for i, label := range labels {
		if decoded, err := idna.ToUnicode(label); err == nil {
			labels[i] = decoded
		}
	}
	return labels
}

func registrableLabel(domain string) string {
	labels := ownLabels(strings.ToLower(domain))
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1]
}

func official(host string, domains []string) bool {
	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

var confusables = map[rune]rune{
	'0': 'o', '1': 'l', '3': 'e', '4': 'a', '5': 's', '7': 't', '8': 'b',
	// cyrillic and greek letters that render like latin ones
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	'і': 'i', 'ѕ': 's', 'ԁ': 'd', 'ɡ': 'g', 'ο': 'o', 'ν': 'v', 'κ': 'k',
}

// Skeleton decodes a punycode host and maps digits and homoglyphs to the
// latin letters they imitate. Dots and dashes are dropped so that
// "disc-ord.gift-nitro" still reads as "discordgiftnitro".
func Skeleton(host string) string {
	if decoded, err := idna.ToUnicode(host); err == nil {
		host = decoded
	}
	var b strings.Builder
	for _, r := range strings.ToLower(host) {
		if mapped, ok := confusables[r]; ok {
			r = mapped
		}
		if r == '.' || r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	// "rn" passes for "m" in most fonts
	return strings.ReplaceAll(out, "rn", "m")
}
