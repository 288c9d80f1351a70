// Package news fetches recent headlines from the Google News RSS feed so
// alert notifications can carry a short context block. Failures here never
// block an alert; callers log and move on.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Headline is one fetched news item.
type Headline struct {
	Title     string
	Source    string
	Link      string
	Published time.Time
}

// Client fetches headlines for a query.
type Client struct {
	baseURL    string
	language   string
	country    string
	limit      int
	lookback   time.Duration
	httpClient *http.Client
}

// NewClient creates a news client. baseURL is overridable for tests; empty
// means the public Google News endpoint.
func NewClient(baseURL, language, country string, limit int, lookback, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://news.google.com"
	}
	if limit <= 0 {
		limit = 2
	}
	if lookback <= 0 {
		lookback = 12 * time.Hour
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		country:    country,
		limit:      limit,
		lookback:   lookback,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BuildQuery combines a company display name and ticker into a search query.
func BuildQuery(name, ticker string) string {
	if name == "" {
		name = ticker
	}
	return fmt.Sprintf("%s %s finance", name, ticker)
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Source  string `xml:"source"`
}

// Headlines fetches up to limit recent items for the query, discarding
// anything older than the lookback window.
func (c *Client) Headlines(ctx context.Context, query string) ([]Headline, error) {
	hours := int(c.lookback / time.Hour)
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s when:%dh", query, hours))
	q.Set("hl", fmt.Sprintf("%s-%s", c.language, c.country))
	q.Set("gl", c.country)
	q.Set("ceid", fmt.Sprintf("%s:%s", c.country, c.language))
	feedURL := fmt.Sprintf("%s/rss/search?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	cutoff := time.Now().Add(-c.lookback)
	var out []Headline
	for _, item := range feed.Channel.Items {
		pub, err := parsePubDate(item.PubDate)
		if err == nil && pub.Before(cutoff) {
			continue
		}
		out = append(out, Headline{
			Title:     item.Title,
			Source:    item.Source,
			Link:      CleanLink(item.Link),
			Published: pub,
		})
		if len(out) >= c.limit {
			break
		}
	}
	return out, nil
}

func parsePubDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate %q", s)
}

// CleanLink unwraps Google News redirect links when they carry an explicit
// url= parameter and ensures a scheme on bare domains. Anything it cannot
// improve it returns unchanged.
func CleanLink(link string) string {
	link = ensureHTTPS(link)
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if strings.HasSuffix(u.Host, "news.google.com") {
		if orig := u.Query().Get("url"); orig != "" {
			return ensureHTTPS(orig)
		}
	}
	return link
}

func ensureHTTPS(u string) string {
	if u == "" {
		return u
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

// Domain extracts a compact display domain from a URL, stripping "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(ensureHTTPS(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// FormatBlock renders headlines as a compact Markdown block: title, source,
// and a short real URL line that stays clickable where Markdown is not
// rendered.
func FormatBlock(items []Headline) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n📰 News:\n")
	for _, h := range items {
		source := h.Source
		if source == "" {
			source = Domain(h.Link)
		}
		fmt.Fprintf(&b, "- [%s](%s) (%s)\n", h.Title, h.Link, source)
		fmt.Fprintf(&b, "  %s\n", h.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}
