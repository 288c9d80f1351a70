package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rssBody(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>search results</title>` + items + `</channel></rss>`
}

func feedItem(title, link, pubDate, source string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate><source url="https://%s">%s</source></item>`,
		title, link, pubDate, source, source)
}

func TestHeadlines(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour).Format(time.RFC1123Z)
	stale := time.Now().Add(-48 * time.Hour).Format(time.RFC1123Z)

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, rssBody(
			feedItem("Apple unveils new chip", "https://example.com/a", recent, "example.com")+
				feedItem("Old story", "https://example.com/old", stale, "example.com")+
				feedItem("Apple earnings beat", "https://example.com/b", recent, "example.com"),
		))
	}))
	defer server.Close()

	c := NewClient(server.URL, "en", "US", 5, 12*time.Hour, 5*time.Second)
	items, err := c.Headlines(context.Background(), BuildQuery("Apple", "AAPL"))
	if err != nil {
		t.Fatalf("Headlines() failed: %v", err)
	}

	if !strings.Contains(gotQuery, "Apple AAPL finance") {
		t.Errorf("query = %q, want name+ticker+finance", gotQuery)
	}
	if !strings.Contains(gotQuery, "when:12h") {
		t.Errorf("query = %q, want lookback window", gotQuery)
	}
	if len(items) != 2 {
		t.Fatalf("got %d headlines, want 2 (stale item filtered)", len(items))
	}
	if items[0].Title != "Apple unveils new chip" {
		t.Errorf("first title = %q", items[0].Title)
	}
	if items[0].Source != "example.com" {
		t.Errorf("source = %q, want example.com", items[0].Source)
	}
}

func TestHeadlinesRespectsLimit(t *testing.T) {
	recent := time.Now().Format(time.RFC1123Z)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(
			feedItem("one", "https://example.com/1", recent, "example.com")+
				feedItem("two", "https://example.com/2", recent, "example.com")+
				feedItem("three", "https://example.com/3", recent, "example.com"),
		))
	}))
	defer server.Close()

	c := NewClient(server.URL, "en", "US", 2, 12*time.Hour, 5*time.Second)
	items, err := c.Headlines(context.Background(), "q")
	if err != nil {
		t.Fatalf("Headlines() failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d headlines, want limit of 2", len(items))
	}
}

func TestHeadlinesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "en", "US", 2, 12*time.Hour, 5*time.Second)
	if _, err := c.Headlines(context.Background(), "q"); err == nil {
		t.Error("Headlines() = nil error, want failure on 503")
	}
}

func TestBuildQuery(t *testing.T) {
	if got := BuildQuery("Apple", "AAPL"); got != "Apple AAPL finance" {
		t.Errorf("BuildQuery() = %q", got)
	}
	// Falls back to the ticker when no display name is set.
	if got := BuildQuery("", "VOO"); got != "VOO VOO finance" {
		t.Errorf("BuildQuery() = %q", got)
	}
}

func TestCleanLink(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"direct link untouched", "https://example.com/story", "https://example.com/story"},
		{"google redirect unwrapped", "https://news.google.com/articles/x?url=https%3A%2F%2Fexample.com%2Fstory", "https://example.com/story"},
		{"google link without url param kept", "https://news.google.com/articles/x", "https://news.google.com/articles/x"},
		{"bare domain gets scheme", "example.com/story", "https://example.com/story"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanLink(tt.in); got != tt.want {
				t.Errorf("CleanLink(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	if got := Domain("https://www.reuters.com/markets/story"); got != "reuters.com" {
		t.Errorf("Domain() = %q, want reuters.com", got)
	}
	if got := Domain("https://example.com/x"); got != "example.com" {
		t.Errorf("Domain() = %q, want example.com", got)
	}
}

func TestFormatBlock(t *testing.T) {
	t.Run("empty items empty block", func(t *testing.T) {
		if got := FormatBlock(nil); got != "" {
			t.Errorf("FormatBlock(nil) = %q, want empty", got)
		}
	})

	t.Run("renders titles links and sources", func(t *testing.T) {
		got := FormatBlock([]Headline{
			{Title: "Apple earnings beat", Link: "https://example.com/a", Source: "Example"},
			{Title: "No source item", Link: "https://www.reuters.com/b"},
		})
		for _, want := range []string{
			"📰 News:",
			"[Apple earnings beat](https://example.com/a) (Example)",
			"(reuters.com)",
			"https://example.com/a",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("FormatBlock output missing %q:\n%s", want, got)
			}
		}
	})
}
