// Package gemini is a minimal client for the Gemini generateContent REST API.
package gemini

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
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// ErrNoCandidates is returned when a response carries no usable text.
var ErrNoCandidates = errors.New("gemini returned no candidates")

// Client handles communication with the Gemini API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Gemini client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// GenerateRequest represents the payload for models/{model}:generateContent.
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// GenerateResponse represents the result of generateContent.
type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateResponse) Text() (string, error) {
	if len(r.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// Generate calls generateContent for model.
func (c *Client) Generate(ctx context.Context, model string, req GenerateRequest) (*GenerateResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(c.APIKey))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(hreq)
	if err != nil {
		// url.Error would echo the key back
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("gemini request failed: %w", uerr.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(body))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, err
	}
	return &genResp, nil
}

// Model serves a single named Gemini model as an agent backend.
type Model struct {
	Client *Client
	Name   string
}

// Complete implements agent.Model.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.Client.Generate(ctx, m.Name, GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", m.Name, err)
	}
	text, err := resp.Text()
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", m.Name, err)
	}
	return text, nil
}
