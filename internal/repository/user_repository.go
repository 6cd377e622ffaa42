package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cardledger/internal/database"
	"cardledger/internal/domain"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
)

const userColumns = `id, nome, email, created_at`

type UserRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewUserRepository(db *sql.DB, logger logger.Logger) domain.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (r *UserRepository) findOne(ctx context.Context, op string, query string, arg interface{}) (*domain.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation(op, "user", time.Since(start)) }()

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "User query failed", map[string]interface{}{"op": op, "arg": arg, "error": err.Error()})
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, "find_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "find_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("find_all", "user", time.Since(start)) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list users", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("create", "user", time.Since(start)) }()

	query := `
		INSERT INTO users (nome, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	user.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	err := r.db.QueryRowContext(ctx, query, user.Name, user.Email, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.WrapError(domain.KindConflict, err, "email %s is already registered", user.Email)
		}
		r.logger.ErrorContext(ctx, "Failed to create user", map[string]interface{}{"email": user.Email, "error": err.Error()})
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("update", "user", time.Since(start)) }()

	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET nome = $1, email = $2 WHERE id = $3`,
		user.Name, user.Email, user.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.WrapError(domain.KindConflict, err, "email %s is already registered", user.Email)
		}
		r.logger.ErrorContext(ctx, "Failed to update user", map[string]interface{}{"id": user.ID, "error": err.Error()})
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("delete", "user", time.Since(start)) }()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
