package links

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s<>]+`)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

func ExtractURLs(content string) []string {
	found := urlRegex.FindAllString(content, -1)
	for i, raw := range found {
		found[i] = strings.TrimRight(raw, ".,;:!?)]}'\"")
	}
	return found
}

// NormalizeURL returns the cleaned URL and its ASCII host.
func NormalizeURL(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err == nil {
		host = asciiHost
	}

	parsed.Host = host
	if port := parsed.Port(); port != "" {
		parsed.Host = host + ":" + port
	}
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = normalizeQuery(query)

	return parsed.String(), host, nil
}

func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		clean[key] = values[key]
	}
	return clean.Encode()
}

// DomainMatch checks domain and each of its parent domains against the
// lists. The allow list wins.
func DomainMatch(domain string, allowlist, blocklist map[string]struct{}) (allowed bool, blocked bool) {
	domain = strings.ToLower(domain)
	for _, candidate := range parents(domain) {
		if _, ok := allowlist[candidate]; ok {
			return true, false
		}
	}
	for _, candidate := range parents(domain) {
		if _, ok := blocklist[candidate]; ok {
			return false, true
		}
	}
	return false, false
}

// parents returns domain followed by its parent domains, stopping before
// the bare TLD.
func parents(domain string) []string {
	out := []string{domain}
	for {
		idx := strings.IndexByte(domain, '.')
		if idx < 0 {
			break
		}
		domain = domain[idx+1:]
		if !strings.Contains(domain, ".") {
			break
		}
		out = append(out, domain)
	}
	return out
}
