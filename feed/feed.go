package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/streampulse/telemetry"
	"github.com/onnwee/streampulse/user"
)

const activityWindow = 5

// Rewards are the point grants for community actions.
type Rewards struct {
	Vote       int
	Sighting   int
	Submission int
}

// Feed reconciles remote content, fallback seed content, and optimistic local
// edits into the in-memory collections consumed by the HTTP layer. All
// collections are owned exclusively by the Feed; mutation happens under one
// mutex, mirroring the single cooperative thread of the original client.
type Feed struct {
	mu         sync.Mutex
	gw         Gateway // nil: degraded mode, no remote call is ever attempted
	users      *user.Store
	sources    []LiveSource
	rewards    Rewards
	clips      []Clip
	streamers  []Streamer
	activities []Activity
	loading    bool
	initErr    string

	now func() time.Time
}

// New builds a Feed seeded with the fallback roster. gw may be nil (degraded
// mode); sources may be empty (everything reads offline).
func New(gw Gateway, users *user.Store, rewards Rewards, sources ...LiveSource) *Feed {
	return &Feed{
		gw:        gw,
		users:     users,
		sources:   sources,
		rewards:   rewards,
		streamers: fallbackStreamers(),
		loading:   true,
		now:       time.Now,
	}
}

// Result reports the outcome of a mutation's asynchronous persistence attempt.
// The channel is closed after the attempt completes; receiving yields the
// persistence error, or nil when persistence succeeded or was never attempted
// (degraded mode, local-only id). Callers are free to ignore it.
type Result struct {
	Applied   bool
	Clip      Clip // SubmitClip only: the optimistic record as first shown
	Persisted <-chan error
}

// Err blocks until the persistence attempt settles and returns its error.
func (r Result) Err() error { return <-r.Persisted }

func settled() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}

// Load populates the collections. Degraded mode takes the fallback seed
// directly; otherwise remote clips are merged additively ahead of the
// fallback (fallback content is never fully hidden) and a non-empty remote
// streamer snapshot replaces the roster wholesale. Live enrichment runs in
// both modes. Whatever happens, the view is never left with an empty clip
// list and the loading flag clears exactly once.
func (f *Feed) Load(ctx context.Context) {
	defer func() {
		f.mu.Lock()
		f.loading = false
		telemetry.SetClipCount(len(f.clips))
		f.mu.Unlock()
	}()

	if f.gw == nil {
		f.mu.Lock()
		f.clips = fallbackClips()
		f.mu.Unlock()
		f.RefreshLive(ctx)
		return
	}

	clips, err := f.gw.ListClips(ctx)
	if err != nil {
		slog.Warn("clip fetch failed, serving fallback", slog.Any("err", err), slog.String("component", "feed"))
		f.mu.Lock()
		f.clips = fallbackClips()
		f.initErr = "failed to sync clips: " + err.Error()
		f.mu.Unlock()
	} else {
		f.mu.Lock()
		f.clips = append(clips, fallbackClips()...)
		f.mu.Unlock()
	}

	streamers, err := f.gw.ListStreamers(ctx)
	if err != nil {
		slog.Warn("streamer fetch failed, keeping fallback roster", slog.Any("err", err), slog.String("component", "feed"))
		f.mu.Lock()
		if f.initErr == "" {
			f.initErr = "failed to sync streamers: " + err.Error()
		}
		f.mu.Unlock()
	} else if len(streamers) > 0 {
		f.mu.Lock()
		f.streamers = streamers
		f.mu.Unlock()
	}

	f.RefreshLive(ctx)
}

// RefreshLive re-polls every registered live source and rewrites live state
// across the whole roster: a case-insensitive name match means online (with
// category and viewer count overwritten from the match), anything else reads
// offline with zero viewers. A failed source contributes no matches.
func (f *Feed) RefreshLive(ctx context.Context) {
	start := f.now()
	live := make(map[string]LiveStatus)
	for _, src := range f.sources {
		names := f.namesFor(src.Platform())
		if len(names) == 0 {
			continue
		}
		statuses, err := src.Live(ctx, names)
		if err != nil {
			slog.Warn("live status query failed", slog.String("platform", string(src.Platform())), slog.Any("err", err), slog.String("component", "feed"))
			continue
		}
		for _, st := range statuses {
			live[strings.ToLower(st.Name)] = st
		}
	}

	f.mu.Lock()
	online := 0
	for i := range f.streamers {
		st, ok := live[strings.ToLower(f.streamers[i].Name)]
		if ok {
			f.streamers[i].Status = StatusOnline
			if st.Category != "" {
				f.streamers[i].Category = st.Category
			}
			f.streamers[i].ViewerCount = st.Viewers
			online++
		} else {
			f.streamers[i].Status = StatusOffline
			f.streamers[i].ViewerCount = 0
		}
	}
	f.mu.Unlock()

	telemetry.SetLiveStreamers(online)
	telemetry.ObserveLiveRefresh(f.now().Sub(start))
}

func (f *Feed) namesFor(p Platform) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, s := range f.streamers {
		if s.Platform == p {
			names = append(names, s.Name)
		}
	}
	return names
}

// Vote applies one vote to the clip. An id that matches no clip is rejected
// outright, no reward and no vote mark. Idempotent per user: a repeated vote
// on the same id is a no-op. The optimistic increment, reward, and activity
// are visible before any persistence is attempted; persistence runs only for
// backend-durable ids against a configured gateway and is never rolled back.
func (f *Feed) Vote(ctx context.Context, id ID) Result {
	f.mu.Lock()
	idx := -1
	for i := range f.clips {
		if f.clips[i].ID.String() == id.String() {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return Result{Applied: false, Persisted: settled()}
	}
	if !f.users.MarkVoted(id.String(), f.rewards.Vote) {
		f.mu.Unlock()
		telemetry.IncVoteDuplicate()
		return Result{Applied: false, Persisted: settled()}
	}
	f.clips[idx].Votes++
	username := f.users.Current().Username
	f.addActivityLocked(fmt.Sprintf("%s voted for a viral moment", username), ActivityVote)
	f.mu.Unlock()
	telemetry.IncVote()

	if f.gw == nil || !id.Remote() {
		return Result{Applied: true, Persisted: settled()}
	}
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		err := f.gw.IncrementClipVotes(context.WithoutCancel(ctx), id)
		if err != nil {
			telemetry.IncPersistFailure("vote")
			slog.Warn("vote persistence failed", slog.String("clip", id.String()), slog.Any("err", err), slog.String("component", "feed"))
		}
		ch <- err
	}()
	return Result{Applied: true, Persisted: ch}
}

// ReportLocation overwrites a streamer's coordinates from a community
// sighting. Always succeeds locally when the streamer exists; persistence is
// attempted only for backend-durable streamer ids.
func (f *Feed) ReportLocation(ctx context.Context, id ID, lat, lng float64) Result {
	f.mu.Lock()
	var name string
	for i := range f.streamers {
		if f.streamers[i].ID.String() == id.String() {
			f.streamers[i].Location = [2]float64{lat, lng}
			name = f.streamers[i].Name
			break
		}
	}
	if name == "" {
		f.mu.Unlock()
		return Result{Applied: false, Persisted: settled()}
	}
	username := f.users.Current().Username
	f.addActivityLocked(fmt.Sprintf("%s spotted %s at new coordinates!", username, name), ActivitySighting)
	f.mu.Unlock()

	f.users.AddPoints(f.rewards.Sighting)
	telemetry.IncSighting()

	if f.gw == nil || !id.Remote() {
		return Result{Applied: true, Persisted: settled()}
	}
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		err := f.gw.UpdateStreamerLocation(context.WithoutCancel(ctx), id, lat, lng)
		if err != nil {
			telemetry.IncPersistFailure("sighting")
			slog.Warn("sighting persistence failed", slog.String("streamer", id.String()), slog.Any("err", err), slog.String("component", "feed"))
		}
		ch <- err
	}()
	return Result{Applied: true, Persisted: ch}
}

// SubmitClip builds the canonical clip record from the submission and prepends
// it optimistically. Against a configured gateway the insert runs in the
// background and the stored row (with its backend id) replaces the optimistic
// entry on success; on failure the local entry simply stays. The submitter is
// rewarded either way.
func (f *Feed) SubmitClip(ctx context.Context, sub Submission) Result {
	streamerName := strings.TrimSpace(sub.StreamerName)
	if streamerName == "" {
		streamerName = "Unknown"
	}
	u := f.users.Current()
	clip := Clip{
		StreamerName: streamerName,
		Title:        sub.Title,
		VideoURL:     sub.VideoURL,
		Thumbnail:    "https://picsum.photos/seed/" + uuid.NewString()[:8] + "/400/225",
		Tags:         []string{"NEW"},
		Timestamp:    "just now",
		CreatedAt:    f.now().UTC(),
	}
	if ParseID(u.ID).Remote() {
		clip.UserID = u.ID
	}
	clip.ID = LocalID("local-" + strconv.FormatInt(f.now().UnixMilli(), 10))

	f.mu.Lock()
	f.clips = append([]Clip{clip}, f.clips...)
	telemetry.SetClipCount(len(f.clips))
	f.addActivityLocked(fmt.Sprintf("%s shared a moment!", u.Username), ActivitySubmission)
	f.mu.Unlock()

	f.users.AddPoints(f.rewards.Submission)
	telemetry.IncSubmission()

	if f.gw == nil {
		return Result{Applied: true, Clip: clip, Persisted: settled()}
	}
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		stored, err := f.gw.InsertClip(context.WithoutCancel(ctx), clip)
		if err != nil {
			// The optimistic local entry stays; the clip is just not durable.
			telemetry.IncPersistFailure("submission")
			slog.Warn("submission persistence failed, keeping local clip", slog.Any("err", err), slog.String("component", "feed"))
			ch <- err
			return
		}
		f.mu.Lock()
		for i := range f.clips {
			if f.clips[i].ID.String() == clip.ID.String() {
				f.clips[i] = stored
				break
			}
		}
		f.mu.Unlock()
		ch <- nil
	}()
	return Result{Applied: true, Clip: clip, Persisted: ch}
}

func (f *Feed) addActivityLocked(text string, typ ActivityType) {
	a := Activity{ID: f.now().UnixNano(), Text: text, Type: typ, Time: "Just now"}
	f.activities = append([]Activity{a}, f.activities...)
	if len(f.activities) > activityWindow {
		f.activities = f.activities[:activityWindow]
	}
}

// HasClip reports whether a clip with the id is currently in the view.
func (f *Feed) HasClip(id ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clips {
		if f.clips[i].ID.String() == id.String() {
			return true
		}
	}
	return false
}

// Clips returns a copy of the clip collection in display order.
func (f *Feed) Clips() []Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Clip(nil), f.clips...)
}

// Streamers returns a copy of the roster.
func (f *Feed) Streamers() []Streamer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Streamer(nil), f.streamers...)
}

// Leaderboard returns the roster ordered by votes, highest first.
func (f *Feed) Leaderboard() []Streamer {
	out := f.Streamers()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	return out
}

// Activities returns the recent-activity window, newest first.
func (f *Feed) Activities() []Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Activity(nil), f.activities...)
}

// Loading reports whether the initial load is still in flight.
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// InitError returns the non-blocking banner text from a failed initial sync,
// or empty. Degraded/local mode continues to work behind it.
func (f *Feed) InitError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initErr
}

// Connected reports whether a remote content gateway is configured.
func (f *Feed) Connected() bool { return f.gw != nil }
