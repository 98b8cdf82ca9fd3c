package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMailtrap_DisabledWithoutConfig(t *testing.T) {
	if m := NewMailtrap("", "key", "a@x.com", "A"); m != nil {
		t.Error("empty url should disable mailer")
	}
	if m := NewMailtrap("https://send.api.mailtrap.io/api/send", " ", "a@x.com", "A"); m != nil {
		t.Error("empty api key should disable mailer")
	}
}

func TestMailtrap_Send(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMailtrap(srv.URL, "secret", "noreply@fleet.example", "Fleet Ops")
	msg := CredentialSetupMessage("driver@x.com", "Dana", "https://id.example/recover?token=t")
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.From.Email != "noreply@fleet.example" || got.From.Name != "Fleet Ops" {
		t.Errorf("from = %+v", got.From)
	}
	if len(got.To) != 1 || got.To[0].Email != "driver@x.com" {
		t.Errorf("to = %+v", got.To)
	}
	if got.Subject != "Set up your driver account" || got.Category != "driver_credential_setup" {
		t.Errorf("subject/category = %q/%q", got.Subject, got.Category)
	}
}

func TestMailtrap_SendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":["Unauthorized"]}`))
	}))
	defer srv.Close()

	m := NewMailtrap(srv.URL, "bad", "noreply@fleet.example", "")
	err := m.Send(context.Background(), Message{ToEmail: "a@x.com", Subject: "s", Text: "t"})
	if err == nil {
		t.Fatal("Send should fail on 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestCredentialSetupMessage_EscapesHTML(t *testing.T) {
	msg := CredentialSetupMessage("a@x.com", "<b>Eve</b>", "https://id.example/r?a=1&b=2")
	if strings.Contains(msg.HTML, "<b>Eve</b>") {
		t.Error("name should be escaped in HTML body")
	}
	if !strings.Contains(msg.HTML, "a=1&amp;b=2") {
		t.Error("link should be escaped in HTML body")
	}
	if !strings.Contains(msg.Text, "https://id.example/r?a=1&b=2") {
		t.Error("text body should carry the raw link")
	}
}

func TestCredentialSetupMessage_DefaultGreeting(t *testing.T) {
	msg := CredentialSetupMessage("a@x.com", "", "https://l")
	if !strings.Contains(msg.Text, "Hello there,") {
		t.Errorf("text = %q", msg.Text)
	}
}
