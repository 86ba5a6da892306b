package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shaddad2189/sfconnect-v11/internal/model"
)

const userColumns = "id, email, name, role, mfa_enabled, email_verified, last_signed_in, created_at, updated_at"

type User struct {
	db *sql.DB
}

func NewUser(db *sql.DB) *User {
	us := User{db: db}

	return &us
}

func (u *User) FindByEmail(ctx context.Context, email string) (model.User, error) {
	r := u.db.QueryRowContext(ctx, "select "+userColumns+" from users where email = ?", email)

	return scanUser(r)
}

func (u *User) FindByID(ctx context.Context, userID string) (model.User, error) {
	r := u.db.QueryRowContext(ctx, "select "+userColumns+" from users where id = ?", userID)

	return scanUser(r)
}

func (u *User) GetHashedPassword(ctx context.Context, email string) (string, error) {
	r := u.db.QueryRowContext(ctx, "select password from users where email = ?", email)
	if r.Err() != nil {
		return "", r.Err()
	}

	var hashedPassword string
	err := r.Scan(&hashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return hashedPassword, nil
}

func (u *User) GetHashedPasswordByID(ctx context.Context, userID string) (string, error) {
	r := u.db.QueryRowContext(ctx, "select password from users where id = ?", userID)
	if r.Err() != nil {
		return "", r.Err()
	}

	var hashedPassword string
	err := r.Scan(&hashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return hashedPassword, nil
}

func (u *User) Create(ctx context.Context, user model.User, hashedPassword string) error {
	_, err := u.db.ExecContext(ctx,
		"insert into users (id, email, password, name, role, email_verified, last_signed_in) values (?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, hashedPassword, user.Name, user.Role, user.EmailVerified, user.LastSignedIn)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) Update(ctx context.Context, user model.User) error {
	_, err := u.db.ExecContext(ctx,
		"update users set name = ?, role = ?, email_verified = ?, updated_at = current_timestamp where id = ?",
		user.Name, user.Role, user.EmailVerified, user.ID)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) UpdatePassword(ctx context.Context, userID string, hashedPassword string) error {
	_, err := u.db.ExecContext(ctx,
		"update users set password = ?, updated_at = current_timestamp where id = ?", hashedPassword, userID)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) UpdateLastSignedIn(ctx context.Context, userID string, t time.Time) error {
	_, err := u.db.ExecContext(ctx,
		"update users set last_signed_in = ?, updated_at = current_timestamp where id = ?", t, userID)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) GetMFASecret(ctx context.Context, userID string) (string, error) {
	r := u.db.QueryRowContext(ctx, "select mfa_secret from users where id = ?", userID)
	if r.Err() != nil {
		return "", r.Err()
	}

	var secret string
	err := r.Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return secret, nil
}

// SaveMFASecret stores a pending or updated MFA blob without touching the
// enabled flag.
func (u *User) SaveMFASecret(ctx context.Context, userID string, secret string) error {
	_, err := u.db.ExecContext(ctx,
		"update users set mfa_secret = ?, updated_at = current_timestamp where id = ?", secret, userID)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) EnableMFA(ctx context.Context, userID string, secret string) error {
	_, err := u.db.ExecContext(ctx,
		"update users set mfa_enabled = 1, mfa_secret = ?, updated_at = current_timestamp where id = ?", secret, userID)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) DisableMFA(ctx context.Context, userID string) error {
	_, err := u.db.ExecContext(ctx,
		"update users set mfa_enabled = 0, mfa_secret = '', updated_at = current_timestamp where id = ?", userID)
	if err != nil {
		return err
	}

	return nil
}

func (u *User) Delete(ctx context.Context, userID string) error {
	_, err := u.db.ExecContext(ctx, "delete from users where id = ?", userID)

	return err
}

func (u *User) ListAll(ctx context.Context) ([]model.User, error) {
	rows, err := u.db.QueryContext(ctx, "select "+userColumns+" from users order by created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var usr model.User
		var lastSignedIn sql.NullTime
		err := rows.Scan(&usr.ID, &usr.Email, &usr.Name, &usr.Role, &usr.MFAEnabled, &usr.EmailVerified,
			&lastSignedIn, &usr.CreatedAt, &usr.UpdatedAt)
		if err != nil {
			return nil, err
		}
		usr.LastSignedIn = lastSignedIn.Time

		users = append(users, usr)
	}

	return users, rows.Err()
}

func scanUser(r *sql.Row) (model.User, error) {
	if r.Err() != nil {
		return model.User{}, r.Err()
	}

	var usr model.User
	var lastSignedIn sql.NullTime
	err := r.Scan(&usr.ID, &usr.Email, &usr.Name, &usr.Role, &usr.MFAEnabled, &usr.EmailVerified,
		&lastSignedIn, &usr.CreatedAt, &usr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	usr.LastSignedIn = lastSignedIn.Time

	return usr, nil
}
