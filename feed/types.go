// Package feed owns the reconciled view model: the clip and streamer
// collections shown to the interface, merged from the remote content gateway
// (when configured), the built-in fallback seed, and live-status enrichment,
// with optimistic local mutation for votes, sightings, and submissions.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Platform is the streaming service a streamer broadcasts on.
type Platform string

const (
	PlatformTwitch  Platform = "Twitch"
	PlatformYouTube Platform = "YouTube"
	PlatformKick    Platform = "Kick"
	PlatformOther   Platform = "Other"
)

// Status is a streamer's live state as of the last refresh.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ID is a tagged record identifier. An id whose value is a well-formed UUID is
// backend-durable and may be round-tripped to the remote store; any other
// shape marks the record as local/demo-only and suppresses remote persistence.
// The classification happens once, when the id enters the system.
type ID struct {
	value  string
	remote bool
}

// ParseID classifies an id arriving from an external boundary (HTTP, storage).
func ParseID(s string) ID {
	return ID{value: s, remote: uuid.Validate(s) == nil}
}

// LocalID tags an id as local-only regardless of shape.
func LocalID(s string) ID { return ID{value: s} }

// RemoteID tags an id handed out by the backend as durable.
func RemoteID(s string) ID { return ID{value: s, remote: true} }

func (id ID) String() string { return id.value }

// Remote reports whether the record behind this id may be persisted remotely.
func (id ID) Remote() bool { return id.remote }

// IsZero reports an unset id.
func (id ID) IsZero() bool { return id.value == "" }

func (id ID) MarshalJSON() ([]byte, error) { return json.Marshal(id.value) }

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ParseID(s)
	return nil
}

// Streamer is one roster entry. Location is always a valid coordinate pair;
// Status, Category, and ViewerCount are overwritten wholesale by each
// live-status refresh.
type Streamer struct {
	ID           ID         `json:"id"`
	Name         string     `json:"name"`
	Platform     Platform   `json:"platform"`
	Status       Status     `json:"status"`
	Location     [2]float64 `json:"location"` // [lat, lng]
	LocationName string     `json:"locationName"`
	Category     string     `json:"category"`
	Votes        int        `json:"votes"`
	Avatar       string     `json:"avatar"`
	Bio          string     `json:"bio"`
	ViewerCount  int        `json:"viewerCount"`
}

// Clip is one submitted moment. Votes never decrease from this client's
// perspective; there is no down-vote path.
type Clip struct {
	ID           ID        `json:"id"`
	StreamerName string    `json:"streamerName"`
	Title        string    `json:"title"`
	Thumbnail    string    `json:"thumbnail"`
	VideoURL     string    `json:"video_url"`
	Votes        int       `json:"votes"`
	Tags         []string  `json:"tags"`
	Timestamp    string    `json:"timestamp,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// ActivityType classifies feed events.
type ActivityType string

const (
	ActivityVote       ActivityType = "vote"
	ActivitySighting   ActivityType = "sighting"
	ActivitySubmission ActivityType = "submission"
)

// Activity is one human-readable event in the recent-activity window.
// Ephemeral: never persisted.
type Activity struct {
	ID   int64        `json:"id"`
	Text string       `json:"text"`
	Type ActivityType `json:"type"`
	Time string       `json:"time"`
}

// Submission carries the submit-form fields for a new clip.
type Submission struct {
	StreamerName string `json:"streamer_name"`
	Title        string `json:"title"`
	VideoURL     string `json:"video_url"`
}

// LiveStatus is one live channel as reported by an enrichment source.
type LiveStatus struct {
	Name     string
	Category string
	Viewers  int
}

// LiveSource reports live status for a set of streamer names on one platform.
// Matching downstream is by case-insensitive exact name.
type LiveSource interface {
	Platform() Platform
	Live(ctx context.Context, names []string) ([]LiveStatus, error)
}

// Gateway is the remote content store. A nil Gateway on the Feed selects
// degraded mode: no call is ever attempted.
type Gateway interface {
	ListClips(ctx context.Context) ([]Clip, error)
	ListStreamers(ctx context.Context) ([]Streamer, error)
	InsertClip(ctx context.Context, c Clip) (Clip, error)
	IncrementClipVotes(ctx context.Context, id ID) error
	UpdateStreamerLocation(ctx context.Context, id ID, lat, lng float64) error
}
