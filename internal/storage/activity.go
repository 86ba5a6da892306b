package storage

import (
	"context"
	"database/sql"

	"github.com/rs/xid"

	"github.com/shaddad2189/sfconnect-v11/internal/model"
)

type Activity struct {
	db *sql.DB
}

func NewActivity(db *sql.DB) *Activity {
	a := Activity{db: db}

	return &a
}

func (a *Activity) Record(ctx context.Context, userID, action, details, ipAddress, userAgent string) error {
	_, err := a.db.ExecContext(ctx,
		"insert into activity_log (id, user_id, action, details, ip_address, user_agent) values (?, ?, ?, ?, ?, ?)",
		xid.New().String(), userID, action, details, ipAddress, userAgent)

	return err
}

func (a *Activity) ListRecent(ctx context.Context, limit int) ([]model.Activity, error) {
	rows, err := a.db.QueryContext(ctx,
		"select id, user_id, action, details, ip_address, user_agent, created_at from activity_log order by created_at desc, id desc limit ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Activity
	for rows.Next() {
		var e model.Activity
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
