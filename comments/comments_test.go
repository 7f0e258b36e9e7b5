package comments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/streampulse/localstore"
	"github.com/onnwee/streampulse/user"
)

// A backend-durable clip id; threads on any other shape stay local.
const remoteClip = "9f1c8f6e-0000-4000-8000-00000000aa01"

func newService(t *testing.T, backend Backend) (*Service, *localstore.Store) {
	t.Helper()
	local, err := localstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("localstore.Open() error = %v", err)
	}
	return NewService(backend, local, user.Open(local)), local
}

type fakeBackend struct {
	mu          sync.Mutex
	history     map[string][]Comment
	listErr     error
	insertErr   error
	listCalls   int
	insertCalls int
	inserted    []Comment
}

func (b *fakeBackend) ListComments(ctx context.Context, clipID string) ([]Comment, error) {
	b.mu.Lock()
	b.listCalls++
	b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]Comment(nil), b.history[clipID]...), nil
}

func (b *fakeBackend) InsertComment(ctx context.Context, c Comment) (Comment, error) {
	b.mu.Lock()
	b.insertCalls++
	b.mu.Unlock()
	if b.insertErr != nil {
		return Comment{}, b.insertErr
	}
	stored := c
	stored.ID = "9f1c8f6e-0000-4000-8000-0000000000cc"
	b.mu.Lock()
	b.inserted = append(b.inserted, stored)
	b.mu.Unlock()
	return stored, nil
}

func TestLoadMergesCachedAndRemote(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	shared := Comment{ID: "9f1c8f6e-0000-4000-8000-000000000001", ClipID: remoteClip, Username: "a", Content: "cached text", CreatedAt: base}
	cachedOnly := Comment{ID: "temp-abc", ClipID: remoteClip, Username: "b", Content: "offline post", CreatedAt: base.Add(time.Minute)}
	remoteShared := shared
	remoteShared.Content = "remote text"
	remoteOnly := Comment{ID: "9f1c8f6e-0000-4000-8000-000000000002", ClipID: remoteClip, Username: "c", Content: "from backend", CreatedAt: base.Add(-time.Minute)}

	backend := &fakeBackend{history: map[string][]Comment{remoteClip: {remoteShared, remoteOnly}}}
	svc, local := newService(t, backend)
	raw, _ := json.Marshal([]Comment{shared, cachedOnly})
	if err := local.PutComments(remoteClip, raw); err != nil {
		t.Fatal(err)
	}

	got := svc.Load(context.Background(), remoteClip)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 after dedupe", len(got))
	}
	// Oldest first, remote copy wins the shared id.
	if got[0].ID != remoteOnly.ID {
		t.Errorf("got[0] = %s, want the oldest entry", got[0].ID)
	}
	if got[1].Content != "remote text" {
		t.Errorf("shared comment content = %q, want remote copy", got[1].Content)
	}
	if got[2].ID != "temp-abc" {
		t.Errorf("got[2] = %s, want cached-only entry last", got[2].ID)
	}
}

func TestLoadRemoteFailureServesCache(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("timeout")}
	svc, local := newService(t, backend)
	raw, _ := json.Marshal([]Comment{{ID: "x", ClipID: remoteClip, Content: "survives", CreatedAt: time.Now()}})
	if err := local.PutComments(remoteClip, raw); err != nil {
		t.Fatal(err)
	}
	got := svc.Load(context.Background(), remoteClip)
	if len(got) != 1 || got[0].Content != "survives" {
		t.Errorf("Load() = %+v, want cached thread", got)
	}
}

func TestLocalClipNeverTouchesBackend(t *testing.T) {
	backend := &fakeBackend{}
	svc, local := newService(t, backend)

	res := svc.Post(context.Background(), "c1", "hello")
	if !res.Applied {
		t.Fatal("Post on local clip not applied")
	}
	if err := <-res.Persisted; err != nil {
		t.Fatalf("Persisted = %v", err)
	}
	if !strings.HasPrefix(res.Comment.ID, "temp-") {
		t.Errorf("comment id = %q, want temp- prefix kept on local clips", res.Comment.ID)
	}
	if raw, ok := local.GetComments("c1"); !ok || !strings.Contains(string(raw), "hello") {
		t.Error("comment not persisted to local storage")
	}

	svc.Load(context.Background(), "c1")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.insertCalls != 0 {
		t.Errorf("backend InsertComment calls = %d for local clip id, want 0", backend.insertCalls)
	}
	if backend.listCalls != 0 {
		t.Errorf("backend ListComments calls = %d for local clip id, want 0", backend.listCalls)
	}
}

func TestPostRejectsBlankContent(t *testing.T) {
	backend := &fakeBackend{}
	svc, _ := newService(t, backend)

	for _, content := range []string{"", "   ", "\n\t"} {
		res := svc.Post(context.Background(), remoteClip, content)
		if res.Applied {
			t.Errorf("Post(%q) applied, want rejected", content)
		}
		if err := <-res.Persisted; err != nil {
			t.Errorf("Persisted = %v for rejected post", err)
		}
	}
	if th := svc.Thread(remoteClip); len(th) != 0 {
		t.Errorf("thread = %+v after blank posts, want empty", th)
	}
	if backend.insertCalls != 0 {
		t.Errorf("backend InsertComment calls = %d for blank posts, want 0", backend.insertCalls)
	}
}

func TestPostOptimisticThenSwap(t *testing.T) {
	backend := &fakeBackend{}
	svc, _ := newService(t, backend)

	res := svc.Post(context.Background(), remoteClip, "first!")
	if !strings.HasPrefix(res.Comment.ID, "temp-") {
		t.Errorf("optimistic id = %q, want temp- prefix", res.Comment.ID)
	}
	// Visible before the insert settles.
	if th := svc.Thread(remoteClip); len(th) != 1 || th[0].Content != "first!" {
		t.Fatalf("Thread() = %+v, want the optimistic entry", th)
	}
	if err := <-res.Persisted; err != nil {
		t.Fatalf("Persisted = %v", err)
	}
	th := svc.Thread(remoteClip)
	if len(th) != 1 {
		t.Fatalf("len = %d after swap, want 1", len(th))
	}
	if strings.HasPrefix(th[0].ID, "temp-") {
		t.Errorf("id = %q after swap, want stored id", th[0].ID)
	}
}

func TestPostInsertFailureCachesLocally(t *testing.T) {
	backend := &fakeBackend{insertErr: errors.New("denied")}
	svc, local := newService(t, backend)

	res := svc.Post(context.Background(), remoteClip, "kept offline")
	if err := <-res.Persisted; err == nil {
		t.Fatal("Persisted = nil, want insert failure")
	}
	if th := svc.Thread(remoteClip); len(th) != 1 {
		t.Fatalf("thread lost the failed post: %+v", th)
	}
	raw, ok := local.GetComments(remoteClip)
	if !ok || !strings.Contains(string(raw), "kept offline") {
		t.Error("failed post not written to the local cache")
	}
}

func TestPostLocalOnlyMode(t *testing.T) {
	svc, local := newService(t, nil)
	res := svc.Post(context.Background(), "c1", "no backend")
	if err := <-res.Persisted; err != nil {
		t.Errorf("Persisted = %v in local-only mode", err)
	}
	if _, ok := local.GetComments("c1"); !ok {
		t.Error("local-only post not cached")
	}
}

func TestPostGuestOmitsUserID(t *testing.T) {
	svc, _ := newService(t, nil)
	res := svc.Post(context.Background(), "c1", "hi")
	if res.Comment.UserID != "" {
		t.Errorf("UserID = %q for guest, want empty", res.Comment.UserID)
	}
	if !strings.HasPrefix(res.Comment.Username, "Chaser") {
		t.Errorf("Username = %q, want guest name", res.Comment.Username)
	}
}

func TestSubscribeReceivesPostsAndDispatches(t *testing.T) {
	svc, _ := newService(t, nil)
	ch, cancel := svc.Subscribe("c1")
	defer cancel()

	svc.Post(context.Background(), "c1", "local post")
	select {
	case c := <-ch:
		if c.Content != "local post" {
			t.Errorf("received %q, want local post", c.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber missed the local post")
	}

	svc.Dispatch(Comment{ID: "r1", ClipID: "c1", Content: "remote insert", CreatedAt: time.Now()})
	select {
	case c := <-ch:
		if c.Content != "remote insert" {
			t.Errorf("received %q, want remote insert", c.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber missed the dispatched insert")
	}
}

func TestDispatchDeduplicatesByID(t *testing.T) {
	svc, _ := newService(t, nil)
	c := Comment{ID: "r1", ClipID: "c1", Content: "once", CreatedAt: time.Now()}
	svc.Dispatch(c)
	svc.Dispatch(c)
	if th := svc.Thread("c1"); len(th) != 1 {
		t.Errorf("len = %d after duplicate dispatch, want 1", len(th))
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	svc, _ := newService(t, nil)
	ch, cancel := svc.Subscribe("c1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	// Posting after cancel must not panic on the closed channel.
	svc.Post(context.Background(), "c1", "after cancel")
}
