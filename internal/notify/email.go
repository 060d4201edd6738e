package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailSender delivers notifications as plain-text email through the
// Resend HTTP API.
type EmailSender struct {
	apiKey  string
	from    string
	to      string
	baseURL string
	client  *http.Client
}

// NewEmailSender creates an EmailSender. from must be a sender address
// verified with Resend (the test domain onboarding@resend.dev works for
// free accounts).
func NewEmailSender(apiKey, from, to string) *EmailSender {
	return &EmailSender{
		apiKey:  apiKey,
		from:    from,
		to:      to,
		baseURL: "https://api.resend.com",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers the notification with the title as subject.
func (e *EmailSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"from":    fmt.Sprintf("Polymarket Alerts <%s>", e.from),
		"to":      []string{e.to},
		"subject": title,
		"text":    message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("email: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("email: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (e *EmailSender) Name() string {
	return "email"
}
