package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// Installed-client grant: no user login, just the app's basic credential.
	redditTokenURL = "https://www.reddit.com/api/v1/access_token?grant_type=https://oauth.reddit.com/grants/installed_client&device_id=00000000000000000000"
)

// redditSearches are the subreddit queries harvested each run. The
// steam_giveaway subreddit uses flairs to mark giveaway state, so its hits
// are filtered to open ones.
var redditSearches = []struct {
	url           string
	openFlairOnly bool
}{
	{url: "https://oauth.reddit.com/r/GiftofGames/search/?q=[OFFER]&type=link&t=day&sort=new&limit=10&restrict_sr=on"},
	{url: "https://oauth.reddit.com/r/FreeGameFindings/search/?q=giveaway&type=link&t=day&sort=new&limit=5&restrict_sr=on"},
	{url: "https://oauth.reddit.com/r/steam_giveaway/search/?q=giveaway&type=link&t=day&sort=new&limit=5&restrict_sr=on", openFlairOnly: true},
}

// RedditSource harvests candidate giveaway article links from giveaway
// subreddits via the public OAuth API.
type RedditSource struct {
	client    HTTPClient
	authToken string
}

// NewRedditSource builds the Reddit article source. authToken is the app's
// base64 basic credential for the installed-client grant.
func NewRedditSource(client HTTPClient, authToken string) *RedditSource {
	return &RedditSource{client: client, authToken: authToken}
}

func (s *RedditSource) ID() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				URL           string `json:"url"`
				LinkFlairText string `json:"link_flair_text"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchLinks runs every subreddit search and returns the posted links in
// search order. A failed search does not abort the remaining ones unless all
// of them fail.
func (s *RedditSource) FetchLinks(ctx context.Context) ([]string, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	}

	var links []string
	var errs []error
	for _, search := range redditSearches {
		resp, err := s.client.Get(ctx, search.url, headers)
		if err != nil {
			errs = append(errs, fmt.Errorf("search %s: %w", search.url, err))
			continue
		}
		if err := checkStatus(resp.StatusCode(), "reddit search", resp.Body()); err != nil {
			errs = append(errs, err)
			continue
		}

		var listing redditListing
		if err := json.Unmarshal(resp.Body(), &listing); err != nil {
			errs = append(errs, fmt.Errorf("decode reddit listing: %w", err))
			continue
		}

		for _, child := range listing.Data.Children {
			if search.openFlairOnly && child.Data.LinkFlairText != "OPEN" {
				continue
			}
			if child.Data.URL != "" {
				links = append(links, child.Data.URL)
			}
		}
	}

	if len(links) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return links, nil
}

func (s *RedditSource) accessToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.authToken) == "" {
		return "", errors.New("reddit auth token is not configured")
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Basic " + s.authToken + "=",
	}
	resp, err := s.client.Post(ctx, redditTokenURL, headers, nil)
	if err != nil {
		return "", fmt.Errorf("fetch reddit token: %w", err)
	}
	if err := checkStatus(resp.StatusCode(), "reddit token", resp.Body()); err != nil {
		return "", err
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body(), &tokenData); err != nil {
		return "", fmt.Errorf("decode reddit token: %w", err)
	}
	if tokenData.AccessToken == "" {
		return "", errors.New("reddit token response has no access_token")
	}
	return tokenData.AccessToken, nil
}
