package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultSource = "DRUMKITS.SITE Submission Form"

// Notifier posts accepted submissions to a Discord-style webhook.
type Notifier struct {
	url    string
	source string
	client *http.Client
	now    func() time.Time
}

func NewNotifier(url, source string, timeout time.Duration) *Notifier {
	if source == "" {
		source = DefaultSource
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url:    url,
		source: source,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (n *Notifier) Configured() bool {
	return n != nil && n.url != ""
}

type webhookMessage struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []webhookField `json:"fields"`
	Footer      webhookFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) message(link string) webhookMessage {
	at := n.now().UTC()
	return webhookMessage{
		Content: "🎵 **New Drum Kit Submission!**",
		Embeds: []webhookEmbed{{
			Title:       "🔗 Collection Submission",
			Description: "A new drum kit collection has been submitted for review.",
			Color:       0x00ff00,
			Fields: []webhookField{
				{Name: "📎 Download Link", Value: link},
				{Name: "⏰ Submitted", Value: at.Format(time.RFC1123), Inline: true},
				{Name: "🌐 Source", Value: n.source, Inline: true},
			},
			Footer:    webhookFooter{Text: "Ready for manual review and addition to the collection."},
			Timestamp: at.Format(time.RFC3339),
		}},
	}
}

// Notify delivers one message for link. It does not retry.
func (n *Notifier) Notify(ctx context.Context, link string) error {
	if !n.Configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(n.message(link))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}
