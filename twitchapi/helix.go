// Package twitchapi contains minimal helpers to query live stream status from
// Twitch Helix using an app access (client credentials) token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/streampulse/feed"
)

const helixMaxRetries = 3

// HelixClient provides the minimal methods needed for live status enrichment.
type HelixClient struct {
	TokenSource oauth2.TokenSource
	ClientID    string
	HTTPClient  *http.Client
	BaseURL     string // defaults to https://api.twitch.tv/helix
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return "https://api.twitch.tv/helix"
}

// Stream is one live channel as reported by the streams endpoint.
type Stream struct {
	UserLogin   string `json:"user_login"`
	UserName    string `json:"user_name"`
	GameName    string `json:"game_name"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
	Type        string `json:"type"`
	StartedAt   string `json:"started_at"`
}

// GetStreams returns the currently live channels among the given logins.
// Channels that are offline simply do not appear in the result. Retries
// transient upstream failures (429, 5xx) a few times before giving up.
func (hc *HelixClient) GetStreams(ctx context.Context, logins []string) ([]Stream, error) {
	if len(logins) == 0 {
		return nil, nil
	}
	if len(logins) > 100 {
		logins = logins[:100]
	}
	tok, err := hc.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("app token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+"/streams", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	for _, login := range logins {
		q.Add("user_login", login)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	var lastErr error
	for attempt := 1; attempt <= helixMaxRetries; attempt++ {
		resp, err := hc.http().Do(req)
		if err != nil {
			lastErr = err
		} else {
			streams, retryable, err := decodeStreams(resp)
			if err == nil {
				return streams, nil
			}
			lastErr = err
			if !retryable {
				return nil, lastErr
			}
		}
		if attempt < helixMaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}
	return nil, lastErr
}

func decodeStreams(resp *http.Response) (streams []Stream, retryable bool, err error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("err", cerr))
		}
	}()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return nil, true, fmt.Errorf("helix streams failed: %s: %s", resp.Status, string(b))
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("helix streams failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, err
	}
	return body.Data, false, nil
}

// Platform identifies this client as the Twitch live source.
func (hc *HelixClient) Platform() feed.Platform { return feed.PlatformTwitch }

// Live adapts GetStreams to the enrichment interface. Only channels reported
// as live are returned; "type" values other than live (reruns) are skipped.
func (hc *HelixClient) Live(ctx context.Context, names []string) ([]feed.LiveStatus, error) {
	streams, err := hc.GetStreams(ctx, names)
	if err != nil {
		return nil, err
	}
	out := make([]feed.LiveStatus, 0, len(streams))
	for _, s := range streams {
		if s.Type != "live" {
			continue
		}
		name := s.UserName
		if name == "" {
			name = s.UserLogin
		}
		out = append(out, feed.LiveStatus{Name: name, Category: s.GameName, Viewers: s.ViewerCount})
	}
	return out, nil
}
