package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, name, avatar_url, global_role, created_at, updated_at`

type UserService struct {
	db    *database.DB
	audit *AuditRecorder
}

func NewUserService(db *database.DB, audit *AuditRecorder) *UserService {
	return &UserService{db: db, audit: audit}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.GlobalRole, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("load user", err)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE lower(email) = $1
	`, normalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("load user", err)
	}
	return user, nil
}

// Ensure returns the user with email, creating it when missing. An empty name keeps the
// stored one.
func (s *UserService) Ensure(ctx context.Context, email, name string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	name = strings.TrimSpace(name)

	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name)
		VALUES ($1, COALESCE(NULLIF($2, ''), split_part($1, '@', 1)))
		ON CONFLICT (email) DO UPDATE SET
			name = COALESCE(NULLIF($2, ''), users.name),
			updated_at = NOW()
		RETURNING `+userColumns,
		email, name))
	if err != nil {
		return nil, persistenceErr("ensure user", err)
	}
	return user, nil
}

// List is the platform user directory. Superadmin only, checked live.
func (s *UserService) List(ctx context.Context, id Identity, limit, offset int) ([]models.User, error) {
	if err := requireSuperAdmin(ctx, s.db.Pool, id); err != nil {
		return nil, err
	}

	limit, offset = clampPage(limit, offset)
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, persistenceErr("list users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, persistenceErr("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list users", err)
	}
	return users, nil
}

// SetGlobalRole changes a user's platform role. Superadmin only; a superadmin cannot demote
// themselves.
func (s *UserService) SetGlobalRole(ctx context.Context, id Identity, targetID uuid.UUID, role string) (*models.User, error) {
	if role != models.GlobalRoleUser && role != models.GlobalRoleSuperAdmin {
		return nil, fmt.Errorf("%w: invalid global role %q", ErrInvalidInput, role)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := requireSuperAdmin(ctx, tx, id); err != nil {
		return nil, err
	}
	if targetID == id.UserID && role != models.GlobalRoleSuperAdmin {
		return nil, fmt.Errorf("%w: cannot demote yourself", ErrConflict)
	}

	user, err := s.setGlobalRole(ctx, tx, id.UserID, `id = $1`, targetID, role)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return user, nil
}

// Promote grants superadmin by email. It is the bootstrap path used from the command line, so
// there is no acting user.
func (s *UserService) Promote(ctx context.Context, email string) (*models.User, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	user, err := s.setGlobalRole(ctx, tx, uuid.Nil, `lower(email) = $1`, normalizeEmail(email), models.GlobalRoleSuperAdmin)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return user, nil
}

// setGlobalRole locks the user matched by where (keyed on $1), updates its role and audits
// the change.
func (s *UserService) setGlobalRole(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, where string, key any, role string) (*models.User, error) {
	var userID uuid.UUID
	var previous string
	err := tx.QueryRow(ctx, `SELECT id, global_role FROM users WHERE `+where+` FOR UPDATE`, key).Scan(&userID, &previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("load user", err)
	}

	user, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users SET global_role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns,
		role, userID))
	if err != nil {
		return nil, persistenceErr("update global role", err)
	}

	if previous == role {
		return user, nil
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      actorID,
		Action:       models.AuditRoleChange,
		ResourceType: models.ResourceUser,
		ResourceID:   userID.String(),
		Details:      map[string]string{"from": previous, "to": role},
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
