// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

type Client struct {
	mu          sync.RWMutex
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverToken != ""
}

// UpdateConfig hot-reloads the Postmark settings.
func (c *Client) UpdateConfig(serverToken, fromEmail, baseURL string) {
	c.mu.Lock()
	c.serverToken = serverToken
	c.fromEmail = fromEmail
	c.baseURL = baseURL
	c.mu.Unlock()
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendSigninCode emails a one-time sign-in code.
func (c *Client) SendSigninCode(toEmail, code, purpose string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	c.mu.RLock()
	from := c.fromEmail
	token := c.serverToken
	c.mu.RUnlock()

	var subject string
	switch purpose {
	case "login":
		subject = "Sign in to Gather"
	case "register":
		subject = "Welcome to Gather"
	default:
		subject = "Your Gather code"
	}

	textBody := fmt.Sprintf("Your sign-in code is:\n\n%s\n\nIt expires in 15 minutes.", code)
	htmlBody := fmt.Sprintf(
		`<p>Your sign-in code is:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in 15 minutes.</p>`,
		code,
	)

	payload := postmarkEmail{
		From:     from,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
