package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"plantops.io/mis/internal/domain"
)

const profileColumns = `id, full_name, email, role, password, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Role, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileByEmail looks up an account for login. Emails compare case-insensitively.
func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	p, err := scanProfile(q.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// GetProfile returns an account by id.
func (q *Queries) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := scanProfile(q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// EmailExists reports whether an account already uses email.
func (q *Queries) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// CreateProfileParams is a new account with an already hashed password.
type CreateProfileParams struct {
	FullName     string
	Email        string
	Role         domain.Role
	PasswordHash string
}

// CreateProfile inserts an account.
func (q *Queries) CreateProfile(ctx context.Context, p CreateProfileParams) (*domain.Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, `
		INSERT INTO profiles (full_name, email, role, password)
		VALUES ($1, $2, $3, $4)
		RETURNING `+profileColumns,
		p.FullName, p.Email, p.Role, p.PasswordHash,
	))
}

// UpdatePassword replaces a stored credential.
func (q *Queries) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := q.db.Exec(ctx, `UPDATE profiles SET password = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRole changes an account's role.
func (q *Queries) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error) {
	p, err := scanProfile(q.db.QueryRow(ctx, `
		UPDATE profiles SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, role))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListProfiles returns all accounts ordered by email.
func (q *Queries) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := q.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
