package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/blogsite/internal/telemetry/tracing"
	"github.com/2beens/blogsite/pkg"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Register stores a new user. The first user ever registered becomes the admin,
// everyone after that is a reader.
func (r *Repo) Register(ctx context.Context, user *User) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.Register")
	defer span.End()

	user.Email = strings.ToLower(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Errorf("register user, rollback: %s", err)
		}
	}()

	// serializes concurrent first registrations
	if _, err := tx.Exec(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock users: %w", err)
	}

	var adminExists bool
	if err := tx.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`,
		RoleAdmin,
	).Scan(&adminExists); err != nil {
		return fmt.Errorf("check admin exists: %w", err)
	}

	user.Role = RoleReader
	if !adminExists {
		user.Role = RoleAdmin
	}

	if err := tx.QueryRow(
		ctx,
		`INSERT INTO users (email, password, name, role, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		user.Email, user.PasswordHash, user.Name, user.Role, user.CreatedAt,
	).Scan(&user.ID); err != nil {
		if pkg.IsUniqueViolationError(err, "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", user.ID))
	log.Tracef("user %d registered with role %s", user.ID, user.Role)

	return nil
}

func (r *Repo) ByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.ByEmail")
	defer span.End()

	return r.getOne(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (r *Repo) ByID(ctx context.Context, id int) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.ByID")
	span.SetAttributes(attribute.Int("id", id))
	defer span.End()

	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *Repo) getOne(ctx context.Context, where string, arg any) (*User, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, email, password, name, role, created_at FROM users `+where,
		arg,
	)
	if err != nil {
		return nil, err
	}

	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func scanUser(row pgx.CollectableRow) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
