package repository

import (
	"context"
	"time"
)

// AppendTurn stores one conversation message.
func (r *Repo) AppendTurn(ctx context.Context, userID, role, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_history(user_id, role, content, created_at) VALUES (?,?,?,?)`,
		userID, role, content, r.now().UnixMilli(),
	)
	return err
}

// RecentTurns returns the user's last limit messages, oldest first.
func (r *Repo) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, role, content, created_at FROM (
	    SELECT id, user_id, role, content, created_at
	    FROM chat_history WHERE user_id = ?
	    ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var created int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = time.UnixMilli(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// PruneTurns drops all but the newest keep messages of a user.
func (r *Repo) PruneTurns(ctx context.Context, userID string, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM chat_history
	WHERE user_id = ? AND id NOT IN (
	    SELECT id FROM chat_history WHERE user_id = ? ORDER BY id DESC LIMIT ?
	)`, userID, userID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
