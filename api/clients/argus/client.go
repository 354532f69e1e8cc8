// Package argus is a thin HTTP client for the case engine API. It covers
// alert ingestion and the review workflow, which is what integrating
// services (alert routers, review UIs) actually call.
package argus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Actor identifies the caller on workflow requests. Roles are passed through
// to the server-side capability policy.
type Actor struct {
	ID    string
	Roles []string
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Actor      Actor
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.Actor = actor
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Alert mirrors the ingest request body. Sensitive customer fields are masked
// by the server before the case is stored.
type Alert struct {
	AlertID      string        `json:"alert_id"`
	AccountID    string        `json:"account_id"`
	Customer     Customer      `json:"customer"`
	Transactions []Transaction `json:"transactions"`
	RiskRating   string        `json:"risk_rating,omitempty"`
	Description  string        `json:"description,omitempty"`
}

type Customer struct {
	Name          string   `json:"name"`
	CustomerID    string   `json:"customer_id,omitempty"`
	AccountNumber string   `json:"account_number,omitempty"`
	SSN           string   `json:"ssn,omitempty"`
	Address       string   `json:"address,omitempty"`
	Email         string   `json:"email,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	DateOfBirth   string   `json:"dob,omitempty"`
	PEPFlags      []string `json:"pep_flags,omitempty"`
}

type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Direction     string    `json:"direction"`
	Counterparty  string    `json:"counterparty,omitempty"`
	Country       string    `json:"country,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Case is the subset of the case response integrators act on.
type Case struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Version      int64    `json:"version"`
	EvidenceRefs []string `json:"evidence_refs"`
	SubmittedBy  string   `json:"submitted_by,omitempty"`
	Risk         *struct {
		Level      string  `json:"level"`
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	} `json:"risk,omitempty"`
}

// APIError carries the structured error body the server returns on refusals.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("argus api: status %d code %s: %s", e.StatusCode, e.Code, e.Message)
}

// IngestAlert submits an alert and returns the fully processed case.
func (c *Client) IngestAlert(ctx context.Context, alert Alert) (Case, error) {
	return c.caseRequest(ctx, http.MethodPost, "/v1/alerts", alert)
}

// GetCase fetches the case head, or a pinned version when version >= 0.
func (c *Client) GetCase(ctx context.Context, caseID string, version int64) (Case, error) {
	path := "/v1/cases/" + url.PathEscape(caseID)
	if version >= 0 {
		path += fmt.Sprintf("?version=%d", version)
	}
	return c.caseRequest(ctx, http.MethodGet, path, nil)
}

// Submit moves a draft case into review as the configured actor.
func (c *Client) Submit(ctx context.Context, caseID string) (Case, error) {
	return c.workflow(ctx, caseID, "submit", "")
}

func (c *Client) Approve(ctx context.Context, caseID string) (Case, error) {
	return c.workflow(ctx, caseID, "approve", "")
}

// Reject sends a case back with a mandatory reviewer comment.
func (c *Client) Reject(ctx context.Context, caseID, comment string) (Case, error) {
	return c.workflow(ctx, caseID, "reject", comment)
}

func (c *Client) Rework(ctx context.Context, caseID string) (Case, error) {
	return c.workflow(ctx, caseID, "rework", "")
}

func (c *Client) Finalize(ctx context.Context, caseID string) (Case, error) {
	return c.workflow(ctx, caseID, "finalize", "")
}

func (c *Client) workflow(ctx context.Context, caseID, action, comment string) (Case, error) {
	if c.Actor.ID == "" {
		return Case{}, fmt.Errorf("workflow actions require an actor, use WithActor")
	}
	body := map[string]any{
		"actor_id": c.Actor.ID,
		"roles":    c.Actor.Roles,
	}
	if comment != "" {
		body["comment"] = comment
	}
	path := "/v1/cases/" + url.PathEscape(caseID) + "/" + action
	return c.caseRequest(ctx, http.MethodPost, path, body)
}

func (c *Client) caseRequest(ctx context.Context, method, path string, payload any) (Case, error) {
	if c == nil {
		return Case{}, fmt.Errorf("argus client is nil")
	}
	if c.BaseURL == "" {
		return Case{}, fmt.Errorf("base URL is required")
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Case{}, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return Case{}, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Case{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Case{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return Case{}, apiErr
	}

	var out Case
	if err := json.Unmarshal(raw, &out); err != nil {
		return Case{}, fmt.Errorf("decode case: %w", err)
	}
	return out, nil
}
