// Package provider is the narrow HTTP boundary to the external e-signature
// service. It is a faithful, typed wrapper: one method per endpoint, no
// retry or backoff logic (that policy belongs to the orchestrator).
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/models"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateTemplate registers a document template from rendered HTML and the
// role list. Administrative one-time operation, not part of the per-order
// hot path.
func (c *Client) CreateTemplate(ctx context.Context, name, html string, roles []string) (string, error) {
	payload := map[string]interface{}{
		"name":  name,
		"html":  html,
		"roles": roles,
	}

	body, err := c.do(ctx, http.MethodPost, "/templates/html", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.NewProviderDecodeError("createTemplate", err)
	}
	if resp.ID.String() == "" {
		return "", errors.NewProviderDecodeError("createTemplate", fmt.Errorf("no template id in response"))
	}

	return resp.ID.String(), nil
}

// CreateSubmission opens a signing session (envelope) for the template with
// the given submitters and prefilled read-only fields.
//
// The provider's response shape is not uniform: sometimes a bare array of
// submitter records, sometimes an object wrapping them. Both are normalized
// into the internal Envelope here; the ambiguity never leaks past this
// layer.
// Metadata is echoed back verbatim in provider webhook payloads and is the
// only way to correlate a webhook with an order and pack.
func (c *Client) CreateSubmission(ctx context.Context, templateID string, submitters []models.Submitter, fields map[string]string, metadata map[string]string) (*models.Envelope, error) {
	subs := make([]map[string]interface{}, 0, len(submitters))
	for _, s := range submitters {
		values := map[string]string{}
		for name, value := range fields {
			values[name] = value
		}
		subs = append(subs, map[string]interface{}{
			"name":   s.Name,
			"email":  s.Email,
			"role":   string(s.Role),
			"values": values,
		})
	}

	payload := map[string]interface{}{
		"template_id": templateID,
		"submitters":  subs,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}

	body, err := c.do(ctx, http.MethodPost, "/submissions", payload)
	if err != nil {
		return nil, err
	}

	return normalizeSubmissionResponse(body)
}

// GetSubmission fetches the live state of an envelope: its mapped status
// plus the document references available for download once completed.
func (c *Client) GetSubmission(ctx context.Context, envelopeID string) (*Submission, error) {
	body, err := c.do(ctx, http.MethodGet, "/submissions/"+url.PathEscape(envelopeID), nil)
	if err != nil {
		return nil, err
	}

	var resp submissionRecord
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewProviderDecodeError("getSubmission", err)
	}

	sub := &Submission{
		ID:     resp.ID.String(),
		Status: mapStatus(resp.Status),
	}
	for _, d := range resp.Documents {
		sub.Documents = append(sub.Documents, Document{Name: d.Name, URL: d.URL})
	}
	return sub, nil
}

// GetStatus fetches just the live status of an envelope. Advisory and
// cacheable for short windows only.
func (c *Client) GetStatus(ctx context.Context, envelopeID string) (models.PackStatus, error) {
	sub, err := c.GetSubmission(ctx, envelopeID)
	if err != nil {
		return "", err
	}
	return sub.Status, nil
}

// Download fetches a completed document by its provider file reference.
func (c *Client) Download(ctx context.Context, fileRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError("provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError("provider", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewProviderError(resp.StatusCode, string(body))
	}

	return body, nil
}

// SigningURL recomputes the per-submitter signing link from the envelope id
// and the submitter email. Never persisted.
func (c *Client) SigningURL(envelopeID, email string) string {
	return fmt.Sprintf("%s/sign/%s?email=%s", c.baseURL, url.PathEscape(envelopeID), url.QueryEscape(email))
}

// Ping verifies reachability and credentials with a cheap listing call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/templates?limit=1", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Auth-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError("provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError("provider", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewProviderError(resp.StatusCode, string(body))
	}

	return body, nil
}
