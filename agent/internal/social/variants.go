package social

import (
	"fmt"
	"regexp"
	"strings"
)

type RefKind int

const (
	KindOther RefKind = iota
	KindCommunity
	KindPost
	KindProfile
)

func (k RefKind) String() string {
	switch k {
	case KindCommunity:
		return "community"
	case KindPost:
		return "post"
	case KindProfile:
		return "profile"
	}
	return "other"
}

var (
	communityRe = regexp.MustCompile(`(?i)(?:x|twitter)\.com/i/communities/(\d+)`)
	postRe      = regexp.MustCompile(`(?i)(?:x|twitter)\.com/([A-Za-z0-9_]+)/status/(\d+)`)
	profileRe   = regexp.MustCompile(`(?i)(?:x|twitter)\.com/([A-Za-z0-9_]+)`)
)

// Classify reports what kind of reference ref is.
func Classify(ref string) RefKind {
	kind, _ := parseRef(ref)
	return kind
}

func parseRef(ref string) (RefKind, []string) {
	if m := communityRe.FindStringSubmatch(ref); m != nil {
		return KindCommunity, m[1:]
	}
	if m := postRe.FindStringSubmatch(ref); m != nil {
		return KindPost, m[1:]
	}
	if m := profileRe.FindStringSubmatch(ref); m != nil && !strings.EqualFold(m[1], "i") {
		return KindProfile, m[1:]
	}
	return KindOther, nil
}

// Variants returns the URLs to try for ref, most likely to render first.
func Variants(ref string) []string {
	ref = strings.TrimSpace(ref)
	kind, parts := parseRef(ref)
	switch kind {
	case KindCommunity:
		id := parts[0]
		return []string{
			fmt.Sprintf("https://x.com/i/communities/%s", id),
			fmt.Sprintf("https://x.com/i/communities/%s?f=live", id),
			fmt.Sprintf("https://twitter.com/i/communities/%s", id),
		}
	case KindPost:
		user, id := parts[0], parts[1]
		return []string{
			fmt.Sprintf("https://x.com/%s/status/%s", user, id),
			fmt.Sprintf("https://twitter.com/%s/status/%s", user, id),
			fmt.Sprintf("https://x.com/%s", user),
		}
	case KindProfile:
		user := parts[0]
		return []string{
			fmt.Sprintf("https://x.com/%s", user),
			fmt.Sprintf("https://x.com/%s/with_replies", user),
			fmt.Sprintf("https://twitter.com/%s", user),
		}
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		ref = "https://" + ref
	}
	return []string{ref}
}
