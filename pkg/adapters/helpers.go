package adapters

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]+>`)
	countdownPattern = regexp.MustCompile(`(\d{1,2})\D+(\d{2})\D+(\d{2})`)

	// "Free to keep when you get it before Nov 7 @ 10:00am"
	steamEndDatePattern = regexp.MustCompile(`(?i)before (\w+ \d+).*?@ (\d+:\d+[ap]m)`)
	// "Free to keep when you get it before 7 November @ 10:00am"
	steamEndDateAltPattern = regexp.MustCompile(`(?i)before (\d+) (\w+).*?@ (\d+:\d+)([ap]m)`)
)

// stripHTML removes markup and collapses newlines out of scraped rich text.
func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// parseSteamEndDate parses the two promo-text date formats Steam uses,
// anchored to the current year. Returns false when neither format matches.
func parseSteamEndDate(text string, now time.Time) (time.Time, bool) {
	year := now.Year()

	if m := steamEndDatePattern.FindStringSubmatch(text); m != nil {
		// "Nov 7" + "10:00am"
		raw := fmt.Sprintf("%s %d %s", m[1], year, strings.ToUpper(m[2]))
		if t, err := time.ParseInLocation("Jan 2 2006 3:04PM", raw, now.Location()); err == nil {
			return t, true
		}
	}

	if m := steamEndDateAltPattern.FindStringSubmatch(text); m != nil {
		// "7" + "November" + "10:00" + "am"
		raw := fmt.Sprintf("%s %s %d %s%s", m[1], m[2], year, m[3], strings.ToUpper(m[4]))
		if t, err := time.ParseInLocation("2 January 2006 3:04PM", raw, now.Location()); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseCountdown converts a sitewide "HH : MM : SS" countdown into a duration.
func parseCountdown(text string) (time.Duration, bool) {
	m := countdownPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	var h, min, sec int
	if _, err := fmt.Sscanf(m[1]+" "+m[2]+" "+m[3], "%d %d %d", &h, &min, &sec); err != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second, true
}

// firstOfMonth truncates now to the first day of its month.
func firstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// encodeSpaces percent-encodes bare spaces some upstream CDNs emit in URLs.
func encodeSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "%20")
}

// normalizePlatform maps upstream platform spellings onto the persisted vocabulary.
func normalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(p, "™", "")))
	if p == "mac" {
		return domain.PlatformMacOS
	}
	return p
}

// strptr returns a pointer for nullable text columns, nil for empty strings.
func strptr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

func checkStatus(status int, what string, body []byte) error {
	if status != http.StatusOK {
		return fmt.Errorf("%s returned status %d body: %s", what, status, responseSnippet(body))
	}
	return nil
}
