package youtubeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"

	"github.com/onnwee/streampulse/feed"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	svc, err := New(context.Background(), "test-key",
		option.WithEndpoint(server.URL),
		option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func TestLiveChannelBroadcasting(t *testing.T) {
	searchCalls := 0
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/youtube/v3/search" && r.URL.Query().Get("type") == "channel":
			searchCalls++
			if got := r.URL.Query().Get("q"); got != "IShowSpeed" {
				t.Errorf("channel query q = %q, want IShowSpeed", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{
					{"id": map[string]string{"channelId": "UC-speed"}},
				},
			})
		case r.URL.Path == "/youtube/v3/search" && r.URL.Query().Get("eventType") == "live":
			if got := r.URL.Query().Get("channelId"); got != "UC-speed" {
				t.Errorf("live search channelId = %q, want UC-speed", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{
					{"id": map[string]string{"videoId": "vid-1"}},
				},
			})
		case r.URL.Path == "/youtube/v3/videos":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{
					{"liveStreamingDetails": map[string]interface{}{"concurrentViewers": "31000"}},
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	got, err := svc.Live(context.Background(), []string{"IShowSpeed"})
	if err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	want := []feed.LiveStatus{{Name: "IShowSpeed", Viewers: 31000}}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Live() = %+v, want %+v", got, want)
	}

	// Channel id resolution is cached across probes.
	if _, err := svc.Live(context.Background(), []string{"IShowSpeed"}); err != nil {
		t.Fatalf("second Live() error = %v", err)
	}
	if searchCalls != 1 {
		t.Errorf("channel lookups = %d, want 1 (cached)", searchCalls)
	}
}

func TestLiveChannelOffline(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/youtube/v3/search" && r.URL.Query().Get("type") == "channel":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{
					{"id": map[string]string{"channelId": "UC-x"}},
				},
			})
		case r.URL.Path == "/youtube/v3/search" && r.URL.Query().Get("eventType") == "live":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	}))

	got, err := svc.Live(context.Background(), []string{"SomeChannel"})
	if err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Live() = %+v, want empty for offline channel", got)
	}
}

func TestLiveUnknownChannelSkipped(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	}))

	got, err := svc.Live(context.Background(), []string{"NoSuchChannel"})
	if err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Live() = %+v, want empty when channel cannot be resolved", got)
	}
}

func TestPlatform(t *testing.T) {
	s := &Service{}
	if s.Platform() != feed.PlatformYouTube {
		t.Errorf("Platform() = %s", s.Platform())
	}
}
