package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onnwee/streampulse/comments"
	"github.com/onnwee/streampulse/feed"
)

// Store is the Postgres-backed content gateway and comment backend. It keeps
// the DSN alongside the pool because the notification listener needs its own
// dedicated session.
type Store struct {
	DB  *sql.DB
	dsn string
}

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB, dsn string) *Store {
	return &Store{DB: db, dsn: dsn}
}

// ListClips returns all clips, newest first.
func (s *Store) ListClips(ctx context.Context) ([]feed.Clip, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, streamer_name, title, thumbnail, video_url, votes, tags, user_id, created_at
		 FROM clips ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []feed.Clip
	for rows.Next() {
		var (
			c      feed.Clip
			id     string
			tags   []byte
			userID sql.NullString
		)
		if err := rows.Scan(&id, &c.StreamerName, &c.Title, &c.Thumbnail, &c.VideoURL, &c.Votes, &tags, &userID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		c.ID = feed.RemoteID(id)
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return nil, fmt.Errorf("decode clip tags: %w", err)
		}
		if userID.Valid {
			c.UserID = userID.String
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// ListStreamers returns the stored roster. An empty table yields an empty
// slice; the caller keeps its fallback roster in that case.
func (s *Store) ListStreamers(ctx context.Context) ([]feed.Streamer, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, platform, status, lat, lng, location_name, category, votes, avatar, bio
		 FROM streamers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list streamers: %w", err)
	}
	defer rows.Close()

	var streamers []feed.Streamer
	for rows.Next() {
		var (
			st       feed.Streamer
			id       string
			lat, lng float64
		)
		if err := rows.Scan(&id, &st.Name, &st.Platform, &st.Status, &lat, &lng, &st.LocationName, &st.Category, &st.Votes, &st.Avatar, &st.Bio); err != nil {
			return nil, fmt.Errorf("scan streamer: %w", err)
		}
		st.ID = feed.RemoteID(id)
		st.Location = [2]float64{lat, lng}
		streamers = append(streamers, st)
	}
	return streamers, rows.Err()
}

// InsertClip stores a submitted clip and returns the row as stored, carrying
// the generated id and timestamp.
func (s *Store) InsertClip(ctx context.Context, c feed.Clip) (feed.Clip, error) {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return feed.Clip{}, fmt.Errorf("encode clip tags: %w", err)
	}
	var userID sql.NullString
	if c.UserID != "" {
		userID = sql.NullString{String: c.UserID, Valid: true}
	}

	stored := c
	var id string
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO clips(streamer_name, title, thumbnail, video_url, votes, tags, user_id)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id, created_at`,
		c.StreamerName, c.Title, c.Thumbnail, c.VideoURL, c.Votes, tags, userID,
	).Scan(&id, &stored.CreatedAt)
	if err != nil {
		return feed.Clip{}, fmt.Errorf("insert clip: %w", err)
	}
	stored.ID = feed.RemoteID(id)
	return stored, nil
}

// IncrementClipVotes adds one vote atomically on the server side, so
// concurrent voters never lose increments to a read-modify-write race.
func (s *Store) IncrementClipVotes(ctx context.Context, id feed.ID) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE clips SET votes = votes + 1 WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("increment votes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("increment votes: clip %s not found", id)
	}
	return nil
}

// UpdateStreamerLocation overwrites a streamer's coordinates.
func (s *Store) UpdateStreamerLocation(ctx context.Context, id feed.ID, lat, lng float64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE streamers SET lat = $2, lng = $3 WHERE id = $1`, id.String(), lat, lng)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update location: streamer %s not found", id)
	}
	return nil
}

// ListComments returns a clip's thread, oldest first.
func (s *Store) ListComments(ctx context.Context, clipID string) ([]comments.Comment, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, clip_id, user_id, username, content, created_at
		 FROM comments WHERE clip_id = $1 ORDER BY created_at ASC`, clipID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []comments.Comment
	for rows.Next() {
		var (
			c      comments.Comment
			userID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ClipID, &userID, &c.Username, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if userID.Valid {
			c.UserID = userID.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertComment stores a comment and returns the row as stored. The temporary
// client-side id is discarded in favor of the generated one.
func (s *Store) InsertComment(ctx context.Context, c comments.Comment) (comments.Comment, error) {
	var userID sql.NullString
	if c.UserID != "" {
		userID = sql.NullString{String: c.UserID, Valid: true}
	}
	stored := c
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO comments(clip_id, user_id, username, content)
		 VALUES($1,$2,$3,$4)
		 RETURNING id, created_at`,
		c.ClipID, userID, c.Username, c.Content,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return comments.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return stored, nil
}
