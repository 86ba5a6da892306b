package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Setup persists system configuration rows such as the token signing secret.
// The primary key on config_key makes concurrent first-run inserts safe: the
// losing writer gets a constraint error and re-reads the winner's value.
type Setup struct {
	db *sql.DB
}

func NewSetup(db *sql.DB) *Setup {
	s := Setup{db: db}

	return &s
}

func (s *Setup) GetValue(ctx context.Context, key string) (string, error) {
	r := s.db.QueryRowContext(ctx, "select config_value from setup_config where config_key = ?", key)
	if r.Err() != nil {
		return "", r.Err()
	}

	var value string
	err := r.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return value, nil
}

func (s *Setup) InsertValue(ctx context.Context, key string, value string, metadata string) error {
	_, err := s.db.ExecContext(ctx,
		"insert into setup_config (config_key, config_value, metadata) values (?, ?, ?)", key, value, metadata)
	if err != nil {
		return err
	}

	return nil
}
