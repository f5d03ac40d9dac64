// Package graph is the shared Graph API transport for the Facebook and Instagram publishers.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
)

const (
	DefaultBaseURL = "https://graph.facebook.com"
	DefaultVersion = "v19.0"

	maxBodySize = 1 << 20
)

// Client sends form-encoded Graph API calls on behalf of one channel.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Version string
	Channel channel.Kind
}

func NewClient(kind channel.Kind, baseURL, version string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
		Version: version,
		Channel: kind,
	}
}

// Endpoint builds {base}/{version}/{path...}.
func (c *Client) Endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.BaseURL + "/" + c.Version + "/" + strings.Join(escaped, "/")
}

// PostForm sends form values plus access_token and decodes the JSON answer into dest.
func (c *Client) PostForm(ctx context.Context, op, endpoint, token string, form url.Values, dest any) ([]byte, error) {
	if form == nil {
		form = url.Values{}
	}
	form.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, op, dest)
}

// Get sends a GET with the query plus access_token.
func (c *Client) Get(ctx context.Context, op, endpoint, token string, query url.Values, dest any) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, op, dest)
}

func (c *Client) do(req *http.Request, op string, dest any) ([]byte, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.Channel, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", c.Channel, op, err)
	}

	if resp.StatusCode >= 300 {
		return body, &channel.PublishError{
			Channel:    c.Channel,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    ErrorMessage(body, resp.Status),
			Raw:        body,
		}
	}

	if dest != nil && len(body) > 0 {
		if err := json.Unmarshal(body, dest); err != nil {
			return body, fmt.Errorf("%s %s: decode response: %w", c.Channel, op, err)
		}
	}
	return body, nil
}

// ErrorMessage extracts error.message from a Graph error body.
func ErrorMessage(body []byte, fallback string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fallback
}
