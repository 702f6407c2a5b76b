// Package links classifies raw submitted URLs into provider kinds using an
// ordered set of pattern matchers. First matching pattern wins.
package links

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Kind identifies the source a link belongs to.
type Kind string

const (
	KindSteam       Kind = "steam"
	KindEpicGames   Kind = "epic_games"
	KindPlayStation Kind = "playstation"
	KindHumble      Kind = "humble"
	KindGOG         Kind = "gog"
	KindArticle     Kind = "article"
)

// ErrUnsupportedLink is returned for links matching no known pattern.
var ErrUnsupportedLink = errors.New("unsupported link")

var (
	urlPattern         = regexp.MustCompile(`^https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)
	steamPattern       = regexp.MustCompile(`store\.steampowered\.com/app/[0-9]+/?`)
	epicPattern        = regexp.MustCompile(`store\.epicgames\.com/([a-zA-Z]+(-[a-zA-Z]+))+/.*`)
	playstationPattern = regexp.MustCompile(`store\.playstation\.com/([a-zA-Z]+(-[a-zA-Z]+)+)/product/.*`)
	humbleStorePattern = regexp.MustCompile(`humblebundle\.com/store/.*`)
	gogPattern         = regexp.MustCompile(`gog\.com/.*/game/.*`)
	gogPatternAlt      = regexp.MustCompile(`gog\.com/game/.*`)

	twitterPattern  = regexp.MustCompile(`(?i)twitter\.com/.*`)
	humblePattern   = regexp.MustCompile(`(?i)humblebundle\.com/.*`)
	gleamPattern    = regexp.MustCompile(`(?i)gleam\.io/.*`)
	redditPattern   = regexp.MustCompile(`(?i)reddit\.com/.*`)
	facebookPattern = regexp.MustCompile(`(?i)facebook\.com/.*`)

	steamAppIDPattern = regexp.MustCompile(`(?i)app/(\d+)`)
)

// ordered matchers: store product links first, then generic article domains.
var matchers = []struct {
	kind    Kind
	pattern *regexp.Regexp
}{
	{KindSteam, steamPattern},
	{KindEpicGames, epicPattern},
	{KindPlayStation, playstationPattern},
	{KindHumble, humbleStorePattern},
	{KindGOG, gogPattern},
	{KindGOG, gogPatternAlt},
	{KindArticle, twitterPattern},
	{KindArticle, redditPattern},
	{KindArticle, humblePattern},
	{KindArticle, gleamPattern},
	{KindArticle, facebookPattern},
}

// Classify maps a raw URL to its provider kind. Links that are not valid
// URLs or match no pattern return ErrUnsupportedLink.
func Classify(link string) (Kind, error) {
	link = strings.TrimSpace(link)
	if link == "" || !urlPattern.MatchString(link) {
		return "", ErrUnsupportedLink
	}
	for _, m := range matchers {
		if m.pattern.MatchString(link) {
			return m.kind, nil
		}
	}
	return "", ErrUnsupportedLink
}

// SteamAppID extracts the numeric app id from a Steam store URL.
func SteamAppID(link string) (string, bool) {
	m := steamAppIDPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// IsAllowedArticleDomain reports whether the link belongs to one of the
// domains articles may be submitted from.
func IsAllowedArticleDomain(link string) bool {
	return twitterPattern.MatchString(link) ||
		humblePattern.MatchString(link) ||
		gleamPattern.MatchString(link) ||
		redditPattern.MatchString(link) ||
		facebookPattern.MatchString(link)
}

// Domain extracts the hostname of a link with any leading "www." stripped.
func Domain(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(parsed.Hostname(), "www."), nil
}
