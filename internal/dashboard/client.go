package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"consent-app/internal/domain/plans"
)

// Client talks to the consent API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status          int
	Message         string
	UpgradeRequired bool
}

func (e *APIError) Error() string {
	return e.Message
}

// WriteResult is the answer to a mutating call. API-level failures are
// carried in it rather than returned as an error.
type WriteResult struct {
	Status int
	Failed *APIError
}

func (r WriteResult) Err() error {
	if r.Failed == nil {
		return nil
	}
	return r.Failed
}

type Account struct {
	UserID uint         `json:"-"`
	Email  string       `json:"-"`
	Plan   plans.Tier   `json:"plan"`
	Limits plans.Limits `json:"limits"`
}

type Website struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Status string `json:"status"`
}

func (w Website) EntityID() string { return w.ID }

type Webhook struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	WebsiteID *string  `json:"website_id,omitempty"`
	Enabled   bool     `json:"enabled"`
}

func (w Webhook) EntityID() string { return w.ID }

func (c *Client) Me(ctx context.Context) (*Account, error) {
	var body struct {
		User struct {
			ID    uint   `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
		Plan   plans.Tier   `json:"plan"`
		Limits plans.Limits `json:"limits"`
	}
	if err := c.get(ctx, "/me", &body); err != nil {
		return nil, err
	}
	return &Account{UserID: body.User.ID, Email: body.User.Email, Plan: body.Plan, Limits: body.Limits}, nil
}

func (c *Client) Websites(ctx context.Context) ([]Website, error) {
	var out []Website
	return out, c.get(ctx, "/websites", &out)
}

func (c *Client) Webhooks(ctx context.Context) ([]Webhook, error) {
	var out []Webhook
	return out, c.get(ctx, "/webhooks", &out)
}

func (c *Client) PatchWebsite(ctx context.Context, id string, fields map[string]any) (WriteResult, error) {
	return c.write(ctx, http.MethodPatch, "/websites/"+id, fields)
}

func (c *Client) PatchWebhook(ctx context.Context, id string, fields map[string]any) (WriteResult, error) {
	return c.write(ctx, http.MethodPatch, "/webhooks/"+id, fields)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if apiErr := readError(resp); apiErr != nil {
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, path string, body any) (WriteResult, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return WriteResult{}, err
	}
	defer resp.Body.Close()

	failed := readError(resp)
	if failed == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	}
	return WriteResult{Status: resp.StatusCode, Failed: failed}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// readError consumes the body of a failed response and returns it as an
// APIError; successful responses are left untouched.
func readError(resp *http.Response) *APIError {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body struct {
		Error           string `json:"error"`
		UpgradeRequired bool   `json:"upgrade_required"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error, UpgradeRequired: body.UpgradeRequired}
}

// IsUpgradeRequired reports whether err is a plan-limit refusal.
func IsUpgradeRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.UpgradeRequired
}
