package util

import (
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

const remoteToken = "remote"

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLocation drops label prefixes and repeated comma-separated parts.
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimPrefix(loc, "LOCATIONS:")

	seen := map[string]bool{}
	var out []string
	for _, p := range strings.Split(loc, ",") {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// ContainsRemote reports whether any of texts mentions remote work. The
// upstream mixes "Remote", "remote" and "REMOTE", so matching ignores case.
func ContainsRemote(texts ...string) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), remoteToken) {
			return true
		}
	}
	return false
}

// CanonicalURL lowercases scheme and host, drops the fragment and tracking
// parameters, and sorts the query so the same posting always yields the
// same identity string.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" {
			q.Del(k)
		}
	}
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Truncate flattens s to one line and cuts it to at most max bytes without
// splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
