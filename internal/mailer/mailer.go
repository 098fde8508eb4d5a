// Package mailer delivers the finished digest over the Mailgun messages
// API.
package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"weeklydigest/internal/retry"
)

const defaultBaseURL = "https://api.mailgun.net/v3"

type Mailer struct {
	domain      string
	apiKey      string
	senderName  string
	senderEmail string
	recipient   string

	// BaseURL is swappable for tests.
	BaseURL string
	client  *http.Client
}

func New(domain, apiKey, senderName, senderEmail, recipient string) *Mailer {
	return &Mailer{
		domain:      domain,
		apiKey:      apiKey,
		senderName:  senderName,
		senderEmail: senderEmail,
		recipient:   recipient,
		BaseURL:     defaultBaseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts one HTML email, retrying transient failures with backoff.
func (m *Mailer) Send(ctx context.Context, subject, html string) error {
	cfg := retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}
	err := retry.WithRetry(ctx, cfg, func() error {
		return m.sendOnce(ctx, subject, html)
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	slog.Info("email sent", "to", m.recipient, "subject", subject)
	return nil
}

func (m *Mailer) sendOnce(ctx context.Context, subject, html string) error {
	endpoint := fmt.Sprintf("%s/%s/messages", m.BaseURL, m.domain)

	form := url.Values{}
	form.Set("from", fmt.Sprintf("%s <%s>", m.senderName, m.senderEmail))
	form.Set("to", m.recipient)
	form.Set("subject", subject)
	form.Set("html", html)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailgun error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// BuildDigestHTML renders the per-category summaries as the email body,
// categories in alphabetical order so repeated runs produce identical
// output.
func BuildDigestHTML(summaries map[string]string) string {
	categories := make([]string, 0, len(summaries))
	for category := range summaries {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("<html><body>")
	for _, category := range categories {
		fmt.Fprintf(&b, "<p><b>%s</b></p><p>%s</p><br>", category, summaries[category])
	}
	b.WriteString("</body></html>")
	return b.String()
}
