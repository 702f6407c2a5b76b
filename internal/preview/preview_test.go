package preview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/budget-gamer-hq/offer-harvester/pkg/httpclient"
)

type stubClient struct {
	body    string
	status  int
	err     error
	headers map[string]string
}

type stubResponse struct {
	body   []byte
	status int
}

func (r stubResponse) Body() []byte    { return r.body }
func (r stubResponse) StatusCode() int { return r.status }

func (c *stubClient) Get(_ context.Context, _ string, headers map[string]string) (httpclient.Response, error) {
	c.headers = headers
	if c.err != nil {
		return nil, c.err
	}
	status := c.status
	if status == 0 {
		status = 200
	}
	return stubResponse{body: []byte(c.body), status: status}, nil
}

func (c *stubClient) Post(_ context.Context, _ string, _ map[string]string, _ any) (httpclient.Response, error) {
	return nil, errors.New("not used")
}

const giveawayHTML = `<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Big Giveaway" />
<meta property="og:description" content="Win a game key." />
<meta property="og:image" content="https://cdn.example.com/giveaway.jpg" />
</head><body></body></html>`

func TestResolveReadsOpenGraphTags(t *testing.T) {
	client := &stubClient{body: giveawayHTML}
	resolver := NewResolver(client)

	meta, err := resolver.Resolve(context.Background(), "https://gleam.io/abc/big-giveaway")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if meta.Title != "Big Giveaway" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Description != "Win a game key." {
		t.Fatalf("unexpected description %q", meta.Description)
	}
	if meta.Cover != "https://cdn.example.com/giveaway.jpg" {
		t.Fatalf("unexpected cover %q", meta.Cover)
	}
	if meta.Domain != "gleam.io" {
		t.Fatalf("unexpected domain %q", meta.Domain)
	}
}

func TestResolveRejectsDisallowedDomain(t *testing.T) {
	resolver := NewResolver(&stubClient{})
	_, err := resolver.Resolve(context.Background(), "https://example.com/article")
	if !errors.Is(err, ErrDomainNotAllowed) {
		t.Fatalf("expected ErrDomainNotAllowed, got %v", err)
	}
}

func TestResolveFallsBackOnFetchFailure(t *testing.T) {
	client := &stubClient{err: fmt.Errorf("connection refused")}
	resolver := NewResolver(client)

	meta, err := resolver.Resolve(context.Background(), "https://www.reddit.com/r/FreeGameFindings/comments/abc/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if meta.Title != "Article from reddit.com" {
		t.Fatalf("unexpected fallback title %q", meta.Title)
	}
	if meta.Description != "An article from reddit.com" {
		t.Fatalf("unexpected fallback description %q", meta.Description)
	}
	if meta.Cover != DefaultCover("https://www.reddit.com/") {
		t.Fatalf("expected domain default cover, got %q", meta.Cover)
	}
}

func TestResolveDiscardsRedditPlaceholderIcon(t *testing.T) {
	html := `<html><head><meta property="og:image" content="` + redditDefaultIcon + `" /></head></html>`
	client := &stubClient{body: html}
	resolver := NewResolver(client)

	meta, err := resolver.Resolve(context.Background(), "https://www.reddit.com/r/GiftofGames/comments/abc/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if meta.Cover != DefaultCover("https://www.reddit.com/") {
		t.Fatalf("expected placeholder icon discarded, got %q", meta.Cover)
	}
}

func TestResolveUsesPerDomainIdentity(t *testing.T) {
	client := &stubClient{body: giveawayHTML}
	resolver := NewResolver(client)

	if _, err := resolver.Resolve(context.Background(), "https://twitter.com/humble/status/1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := client.headers["User-Agent"]; got != twitterIdentity {
		t.Fatalf("expected twitter identity %q, got %q", twitterIdentity, got)
	}

	if _, err := resolver.Resolve(context.Background(), "https://www.reddit.com/r/x/"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := client.headers["User-Agent"]; got != redditIdentity {
		t.Fatalf("expected reddit identity %q, got %q", redditIdentity, got)
	}
}

func TestDefaultCoverPerDomain(t *testing.T) {
	if DefaultCover("https://gleam.io/x") == DefaultCover("https://twitter.com/x") {
		t.Fatalf("expected distinct default covers per domain")
	}
	if DefaultCover("https://unknown.example.com/x") != fallbackCover {
		t.Fatalf("expected fallback cover for unknown domain")
	}
}
