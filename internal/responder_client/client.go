package responder_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the generative responder service. The engine
// treats the responder as a black box that turns free text plus a
// transcript into a reply and an optional profile call-to-action hint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// GenerateRequest represents a single response generation request.
type GenerateRequest struct {
	Text    string `json:"text"`
	History string `json:"history"`
	Channel string `json:"channel"`
}

// Reply represents the responder's result.
type Reply struct {
	Reply          string `json:"reply"`
	ShowProfileCTA bool   `json:"show_profile_cta"`
	CTAType        string `json:"cta_type,omitempty"` // "talent", "company", or empty for both
}

// NewClient creates a new responder service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Generate produces a reply for the new text given the transcript so far.
func (c *Client) Generate(ctx context.Context, text, history, channel string) (*Reply, error) {
	reqBody := GenerateRequest{
		Text:    text,
		History: history,
		Channel: channel,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/respond", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("responder service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Reply
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
