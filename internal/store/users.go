package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Users struct {
	db *DB
}

func NewUsers(db *DB) *Users {
	return &Users{db: db}
}

func (u *Users) Create(ctx context.Context, email, hashedPassword, role string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Email:          strings.ToLower(email),
		HashedPassword: hashedPassword,
		Role:           role,
		CreatedAt:      now,
	}
	err := u.db.QueryRowContext(ctx, u.db.rebind(`
		INSERT INTO users (email, hashed_password, role, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), user.Email, user.HashedPassword, user.Role, now.UnixNano()).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return u.getOne(ctx, `WHERE email = ?`, strings.ToLower(email))
}

func (u *Users) GetByID(ctx context.Context, id int64) (*User, error) {
	return u.getOne(ctx, `WHERE id = ?`, id)
}

func (u *Users) getOne(ctx context.Context, where string, arg any) (*User, error) {
	var (
		user    User
		created int64
	)
	err := u.db.QueryRowContext(ctx, u.db.rebind(`
		SELECT id, email, hashed_password, role, created_at FROM users `+where), arg).
		Scan(&user.ID, &user.Email, &user.HashedPassword, &user.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	user.CreatedAt = time.Unix(0, created).UTC()
	return &user, nil
}

func (u *Users) List(ctx context.Context) ([]User, error) {
	rows, err := u.db.QueryContext(ctx, `SELECT id, email, hashed_password, role, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			user    User
			created int64
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.Role, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.CreatedAt = time.Unix(0, created).UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (u *Users) SetRole(ctx context.Context, email, role string) error {
	res, err := u.db.ExecContext(ctx, u.db.rebind(`UPDATE users SET role = ? WHERE email = ?`), role, strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
