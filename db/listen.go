package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/onnwee/streampulse/comments"
)

// ListenComments blocks on a dedicated session subscribed to the
// comments_insert channel and calls handle for every committed comment row.
// Returns nil when ctx is cancelled, otherwise the connection error that
// ended the session.
func (s *Store) ListenComments(ctx context.Context, handle func(comments.Comment)) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("listen connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN comments_insert"); err != nil {
		return fmt.Errorf("listen comments_insert: %w", err)
	}
	slog.Info("comment listener attached", slog.String("component", "db_listen"))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		var c comments.Comment
		if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
			slog.Warn("malformed comment notification", slog.Any("err", err), slog.String("component", "db_listen"))
			continue
		}
		handle(c)
	}
}

// StartCommentListener runs ListenComments in a goroutine, reconnecting with
// a fixed delay after connection failures, until ctx is cancelled.
func (s *Store) StartCommentListener(ctx context.Context, handle func(comments.Comment)) {
	go func() {
		for {
			err := s.ListenComments(ctx, handle)
			if ctx.Err() != nil {
				slog.Info("comment listener stopped", slog.String("component", "db_listen"))
				return
			}
			slog.Warn("comment listener lost, reconnecting", slog.Any("err", err), slog.String("component", "db_listen"))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}
