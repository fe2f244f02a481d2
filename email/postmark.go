package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	postmarkAuthHeader    = "X-Postmark-Server-Token"
	postmarkMessageStream = "outbound"
	defaultTimeout        = 10 * time.Second
)

// ErrDelivery is returned when the provider rejects or fails a send.
var ErrDelivery = errors.New("email delivery failed")

type postmarkRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

// PostmarkConfig configures [Postmark].
type PostmarkConfig struct {
	BaseURL string
	Sender  string
	Token   string
	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client
}

// Postmark sends mail through the Postmark HTTP API.
type Postmark struct {
	endpoint string
	sender   string
	token    string
	client   *http.Client
}

// NewPostmark validates cfg and returns a client posting to <BaseURL>/email.
func NewPostmark(cfg PostmarkConfig) (*Postmark, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("postmark base url %q is invalid", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("postmark sender is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("postmark token is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Postmark{
		endpoint: base.JoinPath("email").String(),
		sender:   cfg.Sender,
		token:    cfg.Token,
		client:   client,
	}, nil
}

// Send posts one message. The body is sent as both HTML and text. Any non-2xx
// status is an error.
func (p *Postmark) Send(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(postmarkRequest{
		From:          p.sender,
		To:            recipient,
		Subject:       subject,
		HtmlBody:      body,
		TextBody:      body,
		MessageStream: postmarkMessageStream,
	})
	if err != nil {
		return fmt.Errorf("encode postmark request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create postmark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(postmarkAuthHeader, p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: postmark status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}
