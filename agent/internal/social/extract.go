package social

import (
	"regexp"
	"strings"

	"mint-radar/agent/internal/store"
)

var (
	statusLinkRe  = regexp.MustCompile(`https?://(?:www\.|mobile\.)?(?:x|twitter)\.com/([A-Za-z0-9_]+)/status/(\d+)`)
	profileLinkRe = regexp.MustCompile(`https?://(?:www\.|mobile\.)?(?:x|twitter)\.com/([A-Za-z0-9_]{1,15})\b`)
	authorRes     = []*regexp.Regexp{
		regexp.MustCompile(`\(@([A-Za-z0-9_]+)\)\s+on\s+(?:X|Twitter)`),
		regexp.MustCompile(`Posted\s+by\s+@?([A-Za-z0-9_]+)`),
		regexp.MustCompile(`(?m)^@?([A-Za-z0-9_]+)\s*[:\-]`),
	}
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]{1,15})\b`)
)

// reservedHandles are path segments and page labels that look like handles.
var reservedHandles = []string{
	"twitter", "x", "i", "home", "explore", "search",
	"intent", "share", "hashtag", "settings", "login", "signup",
	"tos", "privacy", "notifications", "messages", "compose", "title",
	"http", "https",
}

// Blacklist is a set of handles that are never reported.
type Blacklist map[string]struct{}

func NewBlacklist(extra []string) Blacklist {
	b := make(Blacklist, len(reservedHandles)+len(extra))
	for _, h := range reservedHandles {
		b[h] = struct{}{}
	}
	for _, h := range extra {
		if n, ok := store.NormalizeHandle(h); ok {
			b[n] = struct{}{}
		}
	}
	return b
}

func (b Blacklist) Contains(h string) bool {
	_, ok := b[h]
	return ok
}

// ExtractHandles pulls candidate handles out of rendered page text in rule order:
// post links, profile links, author phrasing, then @mentions. Results are normalized,
// deduplicated and capped at limit.
func ExtractHandles(text string, blacklist Blacklist, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(raw string) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		h, ok := store.NormalizeHandle(raw)
		if !ok || blacklist.Contains(h) {
			return true
		}
		if _, dup := seen[h]; dup {
			return true
		}
		seen[h] = struct{}{}
		out = append(out, h)
		return true
	}

	collect := func(re *regexp.Regexp) bool {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !add(m[1]) {
				return false
			}
		}
		return true
	}

	if !collect(statusLinkRe) || !collect(profileLinkRe) {
		return out
	}
	for _, re := range authorRes {
		if !collect(re) {
			return out
		}
	}
	collect(mentionRe)
	return out
}

// mergeHandles appends the new entries of src to dst up to limit.
func mergeHandles(dst, src []string, limit int) []string {
	have := make(map[string]struct{}, len(dst))
	for _, h := range dst {
		have[h] = struct{}{}
	}
	for _, h := range src {
		if limit > 0 && len(dst) >= limit {
			break
		}
		if _, ok := have[h]; ok {
			continue
		}
		have[h] = struct{}{}
		dst = append(dst, h)
	}
	return dst
}

// CacheKey normalizes a reference for cache lookups.
func CacheKey(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
