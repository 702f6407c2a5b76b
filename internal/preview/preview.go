// Package preview resolves Open Graph metadata for submitted article links.
// Only links from the allowed giveaway domains are fetched; everything else
// is rejected before any network call.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/budget-gamer-hq/offer-harvester/pkg/httpclient"
	"github.com/budget-gamer-hq/offer-harvester/pkg/links"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB

	// Some sites serve richer metadata to particular request identities: a
	// crawler identity gets full cards out of Twitter, a messaging-app
	// identity gets them out of Reddit.
	twitterIdentity = "googlebot"
	redditIdentity  = "WhatsApp/2.22.18.75 A"
	defaultIdentity = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// Reddit serves this placeholder when a post has no preview image; it is
	// discarded in favor of the domain default cover.
	redditDefaultIcon = "https://www.redditstatic.com/new-icon.png"
)

var (
	twitterPattern  = regexp.MustCompile(`(?i)twitter\.com/`)
	humblePattern   = regexp.MustCompile(`(?i)humblebundle\.com/`)
	gleamPattern    = regexp.MustCompile(`(?i)gleam\.io/`)
	redditPattern   = regexp.MustCompile(`(?i)reddit\.com/`)
	facebookPattern = regexp.MustCompile(`(?i)facebook\.com/`)
)

var defaultCovers = []struct {
	pattern *regexp.Regexp
	cover   string
}{
	{twitterPattern, "https://firebasestorage.googleapis.com/v0/b/budget-gamer-debug.appspot.com/o/defaultImages%2Ftwitter.jpg?alt=media&token=92f9aade-f7a2-4bc9-b645-d5a8f8a9bb63"},
	{humblePattern, "https://firebasestorage.googleapis.com/v0/b/budget-gamer-debug.appspot.com/o/defaultImages%2FhumbleBundle.jpg?alt=media&token=be57d6e8-c715-45cd-a1f4-5855635afef5"},
	{gleamPattern, "https://firebasestorage.googleapis.com/v0/b/budget-gamer-debug.appspot.com/o/defaultImages%2Fgleam.jpg?alt=media&token=7916b299-78bf-479d-b1d3-568e459a28ef"},
	{redditPattern, "https://firebasestorage.googleapis.com/v0/b/budget-gamer-debug.appspot.com/o/defaultImages%2Freddit.jpg?alt=media&token=df915d1e-e68c-4d45-95a3-d1c1c8755fb6"},
	{facebookPattern, "https://firebasestorage.googleapis.com/v0/b/budget-gamer-debug.appspot.com/o/defaultImages%2Ffacebook.jpg?alt=media&token=abcf3d70-22cc-457f-bc25-5f82e67c5ad3"},
}

const fallbackCover = "https://firebasestorage.googleapis.com/v0/b/budget-gamer-debug.appspot.com/o/defaultImages%2Fdefault.jpg?alt=media&token=37aef14b-5e4a-49ea-bd5c-e074feb9013b"

// ErrDomainNotAllowed rejects links outside the allowed article domains.
var ErrDomainNotAllowed = errors.New("domain not allowed")

// Meta is the resolved article metadata.
type Meta struct {
	Title       string
	Description string
	Cover       string
	Domain      string
}

// Resolver fetches OG metadata for allowed article links.
type Resolver struct {
	client httpclient.Client
}

// NewResolver constructs a resolver with the provided HTTP client.
func NewResolver(client httpclient.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve validates the link's domain, fetches the page, and extracts OG
// metadata with per-domain fallbacks.
func (r *Resolver) Resolve(ctx context.Context, link string) (Meta, error) {
	if !links.IsAllowedArticleDomain(link) {
		return Meta{}, ErrDomainNotAllowed
	}

	domain, err := links.Domain(link)
	if err != nil {
		return Meta{}, fmt.Errorf("parse link: %w", err)
	}

	meta := Meta{
		Title:       "Article from " + domain,
		Description: "An article from " + domain,
		Cover:       DefaultCover(link),
		Domain:      domain,
	}

	headers := map[string]string{"User-Agent": requestIdentity(link)}
	resp, err := r.client.Get(ctx, link, headers)
	if err != nil {
		// Keep the domain defaults; a dead preview is not a dead article.
		return meta, nil
	}
	if resp.StatusCode() != 200 {
		return meta, nil
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	og, err := parseMeta(body)
	if err != nil {
		return meta, nil
	}

	if og.Title != "" {
		meta.Title = og.Title
	}
	if og.Description != "" {
		meta.Description = og.Description
	}
	if og.ImageURL != "" && og.ImageURL != redditDefaultIcon {
		meta.Cover = og.ImageURL
	}

	return meta, nil
}

// DefaultCover returns the stock cover image for the link's domain.
func DefaultCover(link string) string {
	for _, d := range defaultCovers {
		if d.pattern.MatchString(link) {
			return d.cover
		}
	}
	return fallbackCover
}

func requestIdentity(link string) string {
	switch {
	case twitterPattern.MatchString(link):
		return twitterIdentity
	case redditPattern.MatchString(link):
		return redditIdentity
	default:
		return defaultIdentity
	}
}

type pageMeta struct {
	Title       string
	Description string
	ImageURL    string
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	pm := pageMeta{}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	pm.Title = firstNonEmpty(
		extract(`meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	pm.Description = firstNonEmpty(
		extract(`meta[property="og:description"]`),
		extract(`meta[name="description"]`),
	)
	pm.ImageURL = extract(`meta[property="og:image"]`)

	return pm, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
