package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/streampulse/advisory"
	"github.com/onnwee/streampulse/comments"
	"github.com/onnwee/streampulse/feed"
	"github.com/onnwee/streampulse/localstore"
	"github.com/onnwee/streampulse/user"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "0")

	local, err := localstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("localstore.Open() error = %v", err)
	}
	users := user.Open(local)
	f := feed.New(nil, users, feed.Rewards{Vote: 10, Sighting: 50, Submission: 100})
	f.Load(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, Deps{
		Feed:     f,
		Comments: comments.NewService(nil, local, users),
		Users:    users,
		Advisor:  &advisory.Client{},
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHealthzDegradedMode(t *testing.T) {
	server := newTestServer(t)
	resp := getJSON(t, server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d, want 200 without a database", resp.StatusCode)
	}
}

func TestReadyzAfterLoad(t *testing.T) {
	server := newTestServer(t)
	var body map[string]string
	resp := getJSON(t, server.URL+"/readyz", &body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ready" {
		t.Errorf("status = %q, want ready", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(t)
	var body map[string]any
	getJSON(t, server.URL+"/status", &body)
	if body["connected"] != false {
		t.Errorf("connected = %v, want false in degraded mode", body["connected"])
	}
	if body["loading"] != false {
		t.Errorf("loading = %v, want false after Load", body["loading"])
	}
	if body["clips"].(float64) != 3 {
		t.Errorf("clips = %v, want 3", body["clips"])
	}
}

func TestClipsListAndSubmit(t *testing.T) {
	server := newTestServer(t)

	var clips []feed.Clip
	getJSON(t, server.URL+"/clips", &clips)
	if len(clips) != 3 {
		t.Fatalf("len(clips) = %d, want fallback 3", len(clips))
	}

	resp := postJSON(t, server.URL+"/clips", `{"streamer_name":"KaiCenat","title":"w moment","video_url":"https://clips.example/w"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit = %d, want 201", resp.StatusCode)
	}
	var created feed.Clip
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created clip: %v", err)
	}
	if created.Title != "w moment" {
		t.Errorf("created title = %q", created.Title)
	}

	getJSON(t, server.URL+"/clips", &clips)
	if len(clips) != 4 || clips[0].Title != "w moment" {
		t.Errorf("submission not prepended: %d clips, first %q", len(clips), clips[0].Title)
	}
}

func TestClipsSubmitValidation(t *testing.T) {
	server := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"video_url":"#"}`},
		{"missing video_url", `{"title":"t"}`},
		{"invalid json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/clips", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestVoteOnceThenConflict(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/clips/c1/vote", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first vote = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Applied bool      `json:"applied"`
		User    user.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Applied || body.User.Points != 110 {
		t.Errorf("vote response = %+v, want applied with 110 points", body)
	}

	again := postJSON(t, server.URL+"/clips/c1/vote", "")
	again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Errorf("repeat vote = %d, want 409", again.StatusCode)
	}
}

func TestVoteUnknownClip(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/clips/made-up-id/vote", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("vote on unknown clip = %d, want 404", resp.StatusCode)
	}

	var me user.User
	getJSON(t, server.URL+"/me", &me)
	if me.Points != 100 {
		t.Errorf("points = %d after rejected vote, want starting 100", me.Points)
	}
}

func TestLocationReport(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/streamers/s1/location", `{"lat":51.5,"lng":-0.12}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("location = %d, want 200", resp.StatusCode)
	}

	var streamers []feed.Streamer
	getJSON(t, server.URL+"/streamers", &streamers)
	found := false
	for _, s := range streamers {
		if s.ID.String() == "s1" {
			found = true
			if s.Location != [2]float64{51.5, -0.12} {
				t.Errorf("location = %v, want updated pin", s.Location)
			}
		}
	}
	if !found {
		t.Fatal("s1 missing from roster")
	}

	bad := postJSON(t, server.URL+"/streamers/s1/location", `{"lat":123,"lng":0}`)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range lat = %d, want 400", bad.StatusCode)
	}

	missing := postJSON(t, server.URL+"/streamers/nope/location", `{"lat":0,"lng":0}`)
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown streamer = %d, want 404", missing.StatusCode)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	server := newTestServer(t)
	var lb []feed.Streamer
	getJSON(t, server.URL+"/leaderboard", &lb)
	if len(lb) != 4 {
		t.Fatalf("len = %d, want 4", len(lb))
	}
	if lb[0].Name != "IShowSpeed" {
		t.Errorf("lb[0] = %s, want IShowSpeed", lb[0].Name)
	}
}

func TestActivityAfterMutations(t *testing.T) {
	server := newTestServer(t)
	postJSON(t, server.URL+"/clips/c2/vote", "").Body.Close()

	var acts []feed.Activity
	getJSON(t, server.URL+"/activity", &acts)
	if len(acts) != 1 || acts[0].Type != feed.ActivityVote {
		t.Errorf("activity = %+v, want single vote entry", acts)
	}
}

func TestCommentsPostAndList(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/clips/c1/comments", `{"content":"first!"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post comment = %d, want 201", resp.StatusCode)
	}
	var posted comments.Comment
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(posted.ID, "temp-") {
		t.Errorf("comment id = %q, want temp- prefix in local-only mode", posted.ID)
	}

	var thread []comments.Comment
	getJSON(t, server.URL+"/clips/c1/comments", &thread)
	if len(thread) != 1 || thread[0].Content != "first!" {
		t.Errorf("thread = %+v", thread)
	}

	empty := postJSON(t, server.URL+"/clips/c1/comments", `{"content":"  "}`)
	empty.Body.Close()
	if empty.StatusCode != http.StatusBadRequest {
		t.Errorf("blank comment = %d, want 400", empty.StatusCode)
	}
}

func TestCommentStreamDeliversPost(t *testing.T) {
	server := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/clips/c1/comments/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	done := make(chan comments.Comment, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				var c comments.Comment
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &c); err == nil {
					done <- c
					return
				}
			}
		}
	}()

	// Give the subscription a moment to register before posting.
	time.Sleep(100 * time.Millisecond)
	postJSON(t, server.URL+"/clips/c1/comments", `{"content":"streamed"}`).Body.Close()

	select {
	case c := <-done:
		if c.Content != "streamed" {
			t.Errorf("streamed comment = %q", c.Content)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no SSE event received for posted comment")
	}
}

func TestSessionApplyAndSignOut(t *testing.T) {
	server := newTestServer(t)
	postJSON(t, server.URL+"/clips/c1/vote", "").Body.Close()

	resp := postJSON(t, server.URL+"/auth/session", `{"id":"9f1c8f6e-0000-4000-8000-000000000001","username":"realname","email":"r@example.com"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session post = %d, want 200", resp.StatusCode)
	}
	var u user.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		t.Fatal(err)
	}
	if u.Username != "realname" || u.Points != 110 {
		t.Errorf("session user = %+v, want applied identity with preserved points", u)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/auth/session", nil)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer dresp.Body.Close()
	var out user.User
	if err := json.NewDecoder(dresp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Email != "" || out.Username == "realname" {
		t.Errorf("signed-out user = %+v, want fresh guest", out)
	}
	if out.Points != 110 {
		t.Errorf("signed-out points = %d, want preserved 110", out.Points)
	}

	var me user.User
	getJSON(t, server.URL+"/me", &me)
	if me.ID != out.ID {
		t.Errorf("/me = %+v, want the signed-out guest", me)
	}
}

func TestPulseFallbackWithoutKey(t *testing.T) {
	server := newTestServer(t)
	var body map[string]string
	getJSON(t, server.URL+"/pulse?streamer=KaiCenat", &body)
	if !strings.Contains(body["pulse"], "unavailable") {
		t.Errorf("pulse = %q, want fallback copy", body["pulse"])
	}

	resp := getJSON(t, server.URL+"/pulse", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pulse without streamer = %d, want 400", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/clips", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Allow-Origin = %q, want * in dev mode", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	server := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want echoed corr-123", got)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "1")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "2")

	local, err := localstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	users := user.Open(local)
	f := feed.New(nil, users, feed.Rewards{Vote: 10, Sighting: 50, Submission: 100})
	f.Load(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server := httptest.NewServer(NewMux(ctx, Deps{
		Feed:     f,
		Comments: comments.NewService(nil, local, users),
		Users:    users,
		Advisor:  &advisory.Client{},
	}))
	defer server.Close()

	for i := 0; i < 2; i++ {
		resp := postJSON(t, server.URL+"/clips/c1/comments", `{"content":"hi"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("request %d = %d, want 201", i, resp.StatusCode)
		}
	}

	limited := postJSON(t, server.URL+"/clips/c1/comments", `{"content":"hi"}`)
	limited.Body.Close()
	if limited.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third mutation = %d, want 429", limited.StatusCode)
	}
	if limited.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", limited.Header.Get("Retry-After"))
	}

	// Reads are never limited.
	read := getJSON(t, server.URL+"/clips", nil)
	if read.StatusCode != http.StatusOK {
		t.Errorf("read after limit = %d, want 200", read.StatusCode)
	}
}

func TestUnknownSubresource(t *testing.T) {
	server := newTestServer(t)
	resp := postJSON(t, server.URL+"/clips/c1/boost", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown subresource = %d, want 404", resp.StatusCode)
	}
}
