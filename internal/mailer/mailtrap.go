// Package mailer sends transactional email through the Mailtrap send API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is a single outbound email.
type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Category string
}

// Mailtrap sends mail via the Mailtrap HTTP API.
type Mailtrap struct {
	URL        string
	APIKey     string
	FromEmail  string
	FromName   string
	HTTPClient *http.Client
}

// NewMailtrap returns a Mailtrap client. Returns nil when url or apiKey is
// empty so callers can treat mail as disabled.
func NewMailtrap(url, apiKey, fromEmail, fromName string) *Mailtrap {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &Mailtrap{
		URL:        url,
		APIKey:     apiKey,
		FromEmail:  fromEmail,
		FromName:   fromName,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	From     recipient   `json:"from"`
	To       []recipient `json:"to"`
	Subject  string      `json:"subject"`
	HTML     string      `json:"html,omitempty"`
	Text     string      `json:"text,omitempty"`
	Category string      `json:"category,omitempty"`
}

// Send delivers msg. Any non-2xx response is an error.
func (m *Mailtrap) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(sendRequest{
		From:     recipient{Email: m.FromEmail, Name: m.FromName},
		To:       []recipient{{Email: msg.ToEmail, Name: msg.ToName}},
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Text:     msg.Text,
		Category: msg.Category,
	})
	if err != nil {
		return fmt.Errorf("mailer: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailer: mailtrap returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// CredentialSetupMessage builds the "Set up your driver account" email carrying link.
func CredentialSetupMessage(toEmail, toName, link string) Message {
	name := toName
	if name == "" {
		name = "there"
	}
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Set up your driver account</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>Welcome aboard</h2>
		<p>Hello %s,</p>
		<p>A driver account has been created for you. Choose your password to finish setting it up:</p>
		<p style="margin: 30px 0;">
			<a href="%s" style="background-color: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">Set up account</a>
		</p>
		<p>Or copy and paste this link into your browser:</p>
		<p style="word-break: break-all; color: #007bff;">%s</p>
		<p>The link can be used once and expires soon.</p>
		<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
		<p style="font-size: 12px; color: #666;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`, html.EscapeString(name), html.EscapeString(link), html.EscapeString(link))

	textBody := fmt.Sprintf(`Welcome aboard

Hello %s,

A driver account has been created for you. Choose your password to finish setting it up:

%s

The link can be used once and expires soon.

---
This is an automated message, please do not reply.`, name, link)

	return Message{
		ToEmail:  toEmail,
		ToName:   toName,
		Subject:  "Set up your driver account",
		HTML:     htmlBody,
		Text:     textBody,
		Category: "driver_credential_setup",
	}
}
