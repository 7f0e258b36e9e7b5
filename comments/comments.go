// Package comments manages per-clip discussion threads: merged history from
// the remote store and the local cache, optimistic posting with temporary ids,
// and live fan-out of newly inserted comments to subscribers.
package comments

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/streampulse/feed"
	"github.com/onnwee/streampulse/localstore"
	"github.com/onnwee/streampulse/telemetry"
	"github.com/onnwee/streampulse/user"
)

// Comment is one thread entry. Ordering within a thread is by CreatedAt
// ascending, oldest first.
type Comment struct {
	ID        string    `json:"id"`
	ClipID    string    `json:"clip_id"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend is the remote comment store. A nil Backend on the Service selects
// local-only threads persisted through the cache.
type Backend interface {
	ListComments(ctx context.Context, clipID string) ([]Comment, error)
	InsertComment(ctx context.Context, c Comment) (Comment, error)
}

// Service owns every open thread. Threads are created lazily on first Load
// and live for the process lifetime.
type Service struct {
	mu      sync.Mutex
	backend Backend
	local   *localstore.Store
	users   *user.Store
	threads map[string]*thread

	now func() time.Time
}

type thread struct {
	mu       sync.Mutex
	clipID   string
	comments []Comment
	subs     map[int]chan Comment
	nextSub  int
}

// NewService builds a Service. backend may be nil (local-only mode).
func NewService(backend Backend, local *localstore.Store, users *user.Store) *Service {
	return &Service{
		backend: backend,
		local:   local,
		users:   users,
		threads: make(map[string]*thread),
		now:     time.Now,
	}
}

func (s *Service) thread(clipID string) *thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[clipID]
	if !ok {
		t = &thread{clipID: clipID, subs: make(map[int]chan Comment)}
		s.threads[clipID] = t
	}
	return t
}

// Load returns the thread for clipID, merging the locally cached copy with the
// remote history. Entries are deduplicated by id with the remote copy winning,
// then ordered oldest first. A remote fetch failure degrades to the cached
// copy alone. Threads on local-only clip ids never touch the backend.
func (s *Service) Load(ctx context.Context, clipID string) []Comment {
	t := s.thread(clipID)

	var cached []Comment
	if raw, ok := s.local.GetComments(clipID); ok {
		if err := json.Unmarshal(raw, &cached); err != nil {
			slog.Warn("cached thread invalid, ignoring", slog.String("clip", clipID), slog.Any("err", err), slog.String("component", "comments"))
			cached = nil
		}
	}

	var remote []Comment
	if s.backend != nil && feed.ParseID(clipID).Remote() {
		fetched, err := s.backend.ListComments(ctx, clipID)
		if err != nil {
			slog.Warn("comment fetch failed, serving cached thread", slog.String("clip", clipID), slog.Any("err", err), slog.String("component", "comments"))
		} else {
			remote = fetched
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range cached {
		t.upsertLocked(c)
	}
	for _, c := range remote {
		t.upsertLocked(c)
	}
	t.sortLocked()
	return append([]Comment(nil), t.comments...)
}

// Subscribe registers for comments appearing on the clip's thread after this
// call, from both local posts and remote inserts. The returned cancel func
// must be called to release the subscription; the channel is closed by it.
func (s *Service) Subscribe(clipID string) (<-chan Comment, func()) {
	t := s.thread(clipID)
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan Comment, 16)
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// PostResult reports a posted comment. The comment carries a temporary id
// until the persistence attempt settles; Persisted yields the insert error,
// or nil when the post is local-only.
type PostResult struct {
	Applied   bool
	Comment   Comment
	Persisted <-chan error
}

// Post appends the current user's comment optimistically under a temporary id
// and fans it out to subscribers before persistence is attempted. Blank or
// whitespace-only content is rejected. The insert runs in the background only
// when a backend is configured and the clip id is backend-durable, and the
// stored row then replaces the temporary entry; on failure, and always for
// local-only threads, the thread is written to the local cache instead.
func (s *Service) Post(ctx context.Context, clipID, content string) PostResult {
	if strings.TrimSpace(content) == "" {
		return PostResult{Persisted: settled()}
	}
	u := s.users.Current()
	c := Comment{
		ID:        "temp-" + uuid.NewString()[:13],
		ClipID:    clipID,
		Username:  u.Username,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if uuid.Validate(u.ID) == nil {
		c.UserID = u.ID
	}

	t := s.thread(clipID)
	t.mu.Lock()
	t.upsertLocked(c)
	t.notifyLocked(c)
	t.mu.Unlock()
	telemetry.IncCommentPosted()

	if s.backend == nil || !feed.ParseID(clipID).Remote() {
		s.persistThread(t)
		return PostResult{Applied: true, Comment: c, Persisted: settled()}
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		stored, err := s.backend.InsertComment(context.WithoutCancel(ctx), c)
		if err != nil {
			telemetry.IncPersistFailure("comment")
			slog.Warn("comment insert failed, caching locally", slog.String("clip", clipID), slog.Any("err", err), slog.String("component", "comments"))
			s.persistThread(t)
			ch <- err
			return
		}
		t.mu.Lock()
		t.removeLocked(c.ID)
		t.upsertLocked(stored)
		t.sortLocked()
		t.mu.Unlock()
		ch <- nil
	}()
	return PostResult{Applied: true, Comment: c, Persisted: ch}
}

func settled() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}

// Dispatch feeds a remotely inserted comment into its thread. Safe to call
// with comments this process posted itself: entries are deduplicated by id.
func (s *Service) Dispatch(c Comment) {
	t := s.thread(c.ClipID)
	t.mu.Lock()
	if t.containsLocked(c.ID) {
		t.mu.Unlock()
		return
	}
	t.upsertLocked(c)
	t.sortLocked()
	t.notifyLocked(c)
	t.mu.Unlock()
}

// Thread returns a copy of the in-memory thread without touching the backend.
func (s *Service) Thread(clipID string) []Comment {
	t := s.thread(clipID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Comment(nil), t.comments...)
}

func (s *Service) persistThread(t *thread) {
	t.mu.Lock()
	raw, err := json.Marshal(t.comments)
	t.mu.Unlock()
	if err != nil {
		slog.Error("marshal thread", slog.Any("err", err), slog.String("component", "comments"))
		return
	}
	if err := s.local.PutComments(t.clipID, raw); err != nil {
		slog.Warn("cache thread failed", slog.String("clip", t.clipID), slog.Any("err", err), slog.String("component", "comments"))
	}
}

func (t *thread) containsLocked(id string) bool {
	for _, c := range t.comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (t *thread) upsertLocked(c Comment) {
	for i := range t.comments {
		if t.comments[i].ID == c.ID {
			t.comments[i] = c
			return
		}
	}
	t.comments = append(t.comments, c)
}

func (t *thread) removeLocked(id string) {
	for i := range t.comments {
		if t.comments[i].ID == id {
			t.comments = append(t.comments[:i], t.comments[i+1:]...)
			return
		}
	}
}

func (t *thread) sortLocked() {
	sort.SliceStable(t.comments, func(i, j int) bool {
		return t.comments[i].CreatedAt.Before(t.comments[j].CreatedAt)
	})
}

// notifyLocked fans out without blocking; a subscriber that stopped draining
// misses the entry rather than stalling the thread.
func (t *thread) notifyLocked(c Comment) {
	for _, ch := range t.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
