// Package advisory produces short AI-generated blurbs for the interface: a
// per-streamer pulse check and a community trends digest. Generation failures
// of any kind degrade to fixed placeholder copy; the surfaces these blurbs sit
// on are decorative and must never error out.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	pulseFallback  = "Pulse check unavailable for this streamer at the moment."
	trendsFallback = "Unable to fetch AI insights."

	defaultModel = "gemini-2.0-flash"
)

// Client calls the Gemini generateContent endpoint with a plain API key. An
// empty APIKey disables generation entirely; every call returns fallback copy.
type Client struct {
	APIKey     string
	HTTPClient *http.Client
	BaseURL    string // defaults to https://generativelanguage.googleapis.com
	Model      string // defaults to gemini-2.0-flash
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://generativelanguage.googleapis.com"
}

func (c *Client) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModel
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.APIKey != "" }

// Pulse returns a one-paragraph vibe check for the streamer, or placeholder
// copy when generation is unavailable.
func (c *Client) Pulse(ctx context.Context, streamerName string) string {
	if !c.Enabled() || streamerName == "" {
		return pulseFallback
	}
	prompt := fmt.Sprintf(
		"Give a short, hype one-paragraph pulse check on the streamer %s for a fan community app. No markdown, max 60 words.",
		streamerName)
	text, err := c.generate(ctx, prompt)
	if err != nil {
		slog.Warn("pulse generation failed", slog.String("streamer", streamerName), slog.Any("err", err), slog.String("component", "advisory"))
		return pulseFallback
	}
	return text
}

// Trends returns a short digest of what is trending across the tracked
// streamers, or placeholder copy when generation is unavailable.
func (c *Client) Trends(ctx context.Context, streamerNames []string) string {
	if !c.Enabled() || len(streamerNames) == 0 {
		return trendsFallback
	}
	prompt := fmt.Sprintf(
		"Summarize in one short paragraph what is trending among these live streamers right now: %v. No markdown, max 80 words.",
		streamerNames)
	text, err := c.generate(ctx, prompt)
	if err != nil {
		slog.Warn("trends generation failed", slog.Any("err", err), slog.String("component", "advisory"))
		return trendsFallback
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.base(), c.model(), c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate failed: %s: %s", resp.Status, string(b))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("empty generation response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
