package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendSigninCodeLogin(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://gather.test")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	err := client.SendSigninCode("alice@example.com", "482913", "login")
	if err != nil {
		t.Fatalf("send signin code: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "Sign in to Gather" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, "482913") {
		t.Errorf("text body missing code: %q", received.TextBody)
	}
}

func TestSendSigninCodeNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "https://gather.test")

	err := client.SendSigninCode("alice@example.com", "482913", "login")
	if err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendSigninCodeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://gather.test")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	err := client.SendSigninCode("alice@example.com", "482913", "login")
	if err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	c1 := NewClient("token", "from@test.com", "https://test.com")
	if !c1.Configured() {
		t.Error("expected Configured() = true")
	}

	c2 := NewClient("", "from@test.com", "https://test.com")
	if c2.Configured() {
		t.Error("expected Configured() = false")
	}
}

func TestUpdateConfig(t *testing.T) {
	client := NewClient("", "", "")
	if client.Configured() {
		t.Error("expected Configured() = false initially")
	}

	client.UpdateConfig("new-token", "new@example.com", "https://new.example.com")
	if !client.Configured() {
		t.Error("expected Configured() = true after UpdateConfig")
	}

	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}
	if err := client.SendSigninCode("alice@example.com", "111222", "login"); err != nil {
		t.Fatalf("send after update: %v", err)
	}
	if gotToken != "new-token" {
		t.Errorf("server token = %q, want %q", gotToken, "new-token")
	}

	client.UpdateConfig("", "", "")
	if client.Configured() {
		t.Error("expected Configured() = false after clearing")
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
