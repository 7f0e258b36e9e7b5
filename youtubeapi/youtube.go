// Package youtubeapi wraps the YouTube Data API for the single purpose of
// probing whether tracked channels are currently live. It runs on a plain API
// key; no OAuth flow is involved.
package youtubeapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/streampulse/feed"
)

// Service queries live broadcast status for channels by display name. Channel
// id lookups are cached for the process lifetime; display names of tracked
// streamers do not change underneath a running instance.
type Service struct {
	svc *yt.Service

	mu         sync.Mutex
	channelIDs map[string]string
}

// New builds a Service from an API key. Extra options are mainly for tests
// (custom endpoint and HTTP client).
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Service, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Service{svc: svc, channelIDs: make(map[string]string)}, nil
}

// Platform identifies this service as the YouTube live source.
func (s *Service) Platform() feed.Platform { return feed.PlatformYouTube }

// Live reports which of the named channels are broadcasting right now. A name
// that cannot be resolved to a channel is skipped with a warning rather than
// failing the whole probe.
func (s *Service) Live(ctx context.Context, names []string) ([]feed.LiveStatus, error) {
	var out []feed.LiveStatus
	for _, name := range names {
		chID, err := s.channelID(ctx, name)
		if err != nil {
			return nil, err
		}
		if chID == "" {
			slog.Warn("youtube channel not found", slog.String("name", name), slog.String("component", "youtubeapi"))
			continue
		}
		status, live, err := s.liveStatus(ctx, name, chID)
		if err != nil {
			return nil, err
		}
		if live {
			out = append(out, status)
		}
	}
	return out, nil
}

func (s *Service) channelID(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	id, ok := s.channelIDs[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	res, err := s.svc.Search.List([]string{"snippet"}).
		Q(name).Type("channel").MaxResults(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("resolve channel %q: %w", name, err)
	}
	if len(res.Items) == 0 || res.Items[0].Id == nil {
		return "", nil
	}
	id = res.Items[0].Id.ChannelId

	s.mu.Lock()
	s.channelIDs[name] = id
	s.mu.Unlock()
	return id, nil
}

func (s *Service) liveStatus(ctx context.Context, name, channelID string) (feed.LiveStatus, bool, error) {
	res, err := s.svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).EventType("live").Type("video").MaxResults(1).Context(ctx).Do()
	if err != nil {
		return feed.LiveStatus{}, false, fmt.Errorf("live search %q: %w", name, err)
	}
	if len(res.Items) == 0 || res.Items[0].Id == nil || res.Items[0].Id.VideoId == "" {
		return feed.LiveStatus{}, false, nil
	}
	videoID := res.Items[0].Id.VideoId

	vres, err := s.svc.Videos.List([]string{"liveStreamingDetails"}).
		Id(videoID).Context(ctx).Do()
	if err != nil {
		return feed.LiveStatus{}, false, fmt.Errorf("live details %q: %w", name, err)
	}
	viewers := 0
	if len(vres.Items) > 0 && vres.Items[0].LiveStreamingDetails != nil {
		viewers = int(vres.Items[0].LiveStreamingDetails.ConcurrentViewers)
	}
	return feed.LiveStatus{Name: name, Viewers: viewers}, true, nil
}
