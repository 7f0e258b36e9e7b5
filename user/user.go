// Package user maintains the single current user identity for the session:
// a locally persisted record of id, display name, point balance, and the set
// of clip ids already voted on. The record is created on first load when
// absent and re-persisted on every change.
package user

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/streampulse/localstore"
)

const startingPoints = 100

// User is the current identity. VotedIDs only grows and Points only increase;
// there is no spend path.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Points   int      `json:"points"`
	VotedIDs []string `json:"votedIds"`
}

// Session carries the identity fields delivered by the auth collaborator.
type Session struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Store owns the current user record and keeps it in sync with local storage.
type Store struct {
	mu    sync.Mutex
	local *localstore.Store
	cur   User
}

// Open loads the saved record from local storage, or synthesizes a fresh guest
// identity when the record is absent, malformed, or missing an id.
func Open(local *localstore.Store) *Store {
	s := &Store{local: local}
	if raw, ok := local.GetUser(); ok {
		var u User
		if err := json.Unmarshal(raw, &u); err == nil && u.ID != "" {
			s.cur = u
			return s
		}
		slog.Warn("saved user record invalid, synthesizing guest", slog.String("component", "user"))
	}
	s.cur = newGuest(startingPoints, nil)
	s.persistLocked()
	return s
}

// Current returns a copy of the user record.
func (s *Store) Current() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// HasVoted reports whether the user already voted on the given clip id.
func (s *Store) HasVoted(clipID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsID(s.cur.VotedIDs, clipID)
}

// MarkVoted records a vote for clipID and grants reward points in one step.
// Returns false without changing anything if the clip was already voted on.
func (s *Store) MarkVoted(clipID string, reward int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if containsID(s.cur.VotedIDs, clipID) {
		return false
	}
	s.cur.VotedIDs = append(s.cur.VotedIDs, clipID)
	s.cur.Points += reward
	s.persistLocked()
	return true
}

// AddPoints grants reward points. Negative amounts are ignored: the balance is
// monotone by contract.
func (s *Store) AddPoints(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Points += n
	s.persistLocked()
}

// ApplySession overwrites identity fields from a signed-in session while
// preserving accumulated points and voted history.
func (s *Store) ApplySession(sess Session) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.ID = sess.ID
	s.cur.Username = sess.Username
	s.cur.Email = sess.Email
	s.persistLocked()
	return s.snapshotLocked()
}

// SignOut replaces the identity with a fresh guest. Points and voted history
// are carried over: the voted set is device-scoped double-vote protection and
// dropping it would re-open repeat voting from this device.
func (s *Store) SignOut() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = newGuest(s.cur.Points, s.cur.VotedIDs)
	s.persistLocked()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() User {
	u := s.cur
	u.VotedIDs = append([]string(nil), s.cur.VotedIDs...)
	return u
}

func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.cur)
	if err != nil {
		slog.Error("marshal user record", slog.Any("err", err), slog.String("component", "user"))
		return
	}
	if err := s.local.PutUser(raw); err != nil {
		slog.Warn("persist user record failed", slog.Any("err", err), slog.String("component", "user"))
	}
}

// newGuest synthesizes a guest identity. Guest ids are deliberately not UUIDs:
// the non-UUID shape marks the user as local-only so submissions and comments
// never attach a bogus backend user id.
func newGuest(points int, voted []string) User {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8])
	suffix := strconv.FormatUint(n, 36)
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	tag := binary.BigEndian.Uint16(id[14:]) % 1000
	return User{
		ID:       "u" + suffix,
		Username: "Chaser" + strconv.Itoa(int(tag)),
		Points:   points,
		VotedIDs: voted,
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
