package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockwatch/internal/logger"
)

// Ntfy pushes notifications to an ntfy server topic via plain HTTP POST.
type Ntfy struct {
	server     string
	topic      string
	priority   string
	markdown   bool
	dryRun     bool
	httpClient *http.Client
}

// NewNtfy creates an ntfy sink. With dryRun set, Send only logs the message.
func NewNtfy(server, topic, priority string, markdown, dryRun bool, timeout time.Duration) *Ntfy {
	if priority == "" {
		priority = "high"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Ntfy{
		server:     strings.TrimRight(server, "/"),
		topic:      topic,
		priority:   priority,
		markdown:   markdown,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the message body with ntfy metadata headers.
func (n *Ntfy) Send(title, message, clickURL string) error {
	if n.dryRun {
		logger.Info("Dry run: %s - %s", title, message)
		return nil
	}

	url := fmt.Sprintf("%s/%s", n.server, n.topic)
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("failed to build ntfy request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", n.priority)
	if n.markdown {
		req.Header.Set("Markdown", "yes")
	}
	if clickURL != "" {
		req.Header.Set("Click", clickURL)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
