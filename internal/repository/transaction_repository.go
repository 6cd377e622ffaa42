package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cardledger/internal/domain"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
)

const transactionColumns = `id, usuario_id, descricao, valor, cartao_tipo, cartao_final, created_at`

type TransactionRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewTransactionRepository(db *sql.DB, logger logger.Logger) domain.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		cardType string
	)
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Description,
		&tx.Amount,
		&cardType,
		&tx.CardLast4,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.CardType = domain.CardType(cardType)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func (r *TransactionRepository) query(ctx context.Context, op string, query string, args ...interface{}) ([]*domain.Transaction, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation(op, "transaction", time.Since(start)) }()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Transaction query failed", map[string]interface{}{"op": op, "error": err.Error()})
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("find_by_id", "transaction", time.Since(start)) }()

	tx, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM lancamentos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Failed to find transaction", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

// FindByUserID returns the user's transactions, newest first.
func (r *TransactionRepository) FindByUserID(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	return r.query(ctx, "find_by_user", `
		SELECT `+transactionColumns+`
		FROM lancamentos
		WHERE usuario_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
}

func (r *TransactionRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	return r.query(ctx, "find_all", `
		SELECT `+transactionColumns+`
		FROM lancamentos
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lancamentos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("create", "transaction", time.Since(start)) }()

	query := `
		INSERT INTO lancamentos (usuario_id, descricao, valor, cartao_tipo, cartao_final, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	tx.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	err := r.db.QueryRowContext(ctx, query,
		tx.UserID,
		tx.Description,
		tx.Amount,
		string(tx.CardType),
		tx.CardLast4,
		tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create transaction", map[string]interface{}{"user_id": tx.UserID, "error": err.Error()})
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("update", "transaction", time.Since(start)) }()

	_, err := r.db.ExecContext(ctx, `
		UPDATE lancamentos
		SET descricao = $1, valor = $2, cartao_tipo = $3, cartao_final = $4
		WHERE id = $5
	`, tx.Description, tx.Amount, string(tx.CardType), tx.CardLast4, tx.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update transaction", map[string]interface{}{"id": tx.ID, "error": err.Error()})
		return fmt.Errorf("update transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	defer func() { metrics.RecordDatabaseOperation("delete", "transaction", time.Since(start)) }()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM lancamentos WHERE id = $1`, id); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete transaction", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("delete transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
