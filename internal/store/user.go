// ABOUTME: Store methods for users: registration, lookup, and global role changes.
// ABOUTME: Users are global rows; workspace roles live in workspace_members.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/identity"
)

// bootstrapLockKey serializes registrations so only the first user becomes admin.
const bootstrapLockKey = 0x706d74776562

// User is a registered account.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	GlobalRole   authz.Role `json:"global_role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const userColumns = `id, email, display_name, COALESCE(password_hash, ''), global_role, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.GlobalRole, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// CreateUser inserts a new user. The first user ever registered receives the
// admin global role; everyone after that starts as member.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error) {
	var u *User
	err := s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return fmt.Errorf("lock bootstrap: %w", err)
		}
		row := q.QueryRowContext(ctx, `
			INSERT INTO users (email, display_name, password_hash, global_role)
			VALUES ($1, $2, NULLIF($3, ''),
				CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'member' ELSE 'admin' END)
			RETURNING `+userColumns,
			strings.TrimSpace(email), displayName, passwordHash)
		created, err := scanUser(row)
		if err != nil {
			return err
		}
		u = created
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or (nil, nil) if not found.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email (case-insensitive),
// or (nil, nil) if not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// FindIdentity implements identity.UserFinder.
func (s *Store) FindIdentity(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return &identity.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		GlobalRole:  u.GlobalRole,
	}, nil
}

// UserIDByEmail implements authz.LinkStore.
func (s *Store) UserIDByEmail(ctx context.Context, email string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE lower(email) = lower($1)`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user id by email: %w", err)
	}
	return &id, nil
}

// ListUsers returns all users ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY lower(email)`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return collectUsers(rows)
}

// GetUsersByIDs returns the users with the given ids, in no particular order.
// Unknown ids are skipped.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// UpdateUserGlobalRole changes a user's global role. Returns (nil, nil) if
// the user does not exist.
func (s *Store) UpdateUserGlobalRole(ctx context.Context, id uuid.UUID, role authz.Role) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET global_role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update user global role: %w", err)
	}
	return u, nil
}

// UpdateDisplayName sets the user's display name. Returns (nil, nil) if the
// user does not exist.
func (s *Store) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET display_name = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, displayName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	return u, nil
}

// UpdateLastLogin sets last_login_at to now for the given user.
func (s *Store) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
