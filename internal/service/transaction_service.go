package service

import (
	"context"
	"fmt"

	"cardledger/internal/domain"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

type TransactionService struct {
	repo      domain.TransactionRepository
	directory domain.UserDirectory
	logger    logger.Logger
}

func NewTransactionService(repo domain.TransactionRepository, directory domain.UserDirectory, logger logger.Logger) domain.TransactionService {
	return &TransactionService{
		repo:      repo,
		directory: directory,
		logger:    logger,
	}
}

// CreateTransaction validates the payload locally, confirms the referenced
// user with exactly one directory lookup and persists only on LookupFound.
// A user removed between the lookup and the insert is not detected.
func (s *TransactionService) CreateTransaction(ctx context.Context, in domain.TransactionInput) (*domain.Transaction, error) {
	tx, err := in.Validate()
	if err != nil {
		metrics.RecordTransactionCreate(string(domain.KindInvalidInput))
		return nil, err
	}

	lookup := s.directory.LookupUser(ctx, tx.UserID)
	switch lookup.Outcome {
	case domain.LookupFound:
	case domain.LookupNotFound:
		metrics.RecordTransactionCreate(string(domain.KindReferenceNotFound))
		s.logger.InfoContext(ctx, "Transaction rejected, user does not exist", map[string]interface{}{"user_id": tx.UserID})
		return nil, domain.NewError(domain.KindReferenceNotFound, "user %d does not exist", tx.UserID)
	default:
		metrics.RecordTransactionCreate(string(domain.KindDependencyUnavailable))
		fields := map[string]interface{}{"user_id": tx.UserID, "outcome": lookup.Outcome.String()}
		if lookup.Err != nil {
			fields["error"] = lookup.Err.Error()
		}
		s.logger.WarnContext(ctx, "User service unavailable, transaction not created", fields)
		return nil, domain.WrapError(domain.KindDependencyUnavailable, lookup.Err,
			"user service unavailable, could not validate user %d", tx.UserID)
	}

	if err := s.repo.Create(ctx, tx); err != nil {
		metrics.RecordTransactionCreate(string(domain.KindInternal))
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	metrics.RecordTransactionCreate("created")
	s.logger.InfoContext(ctx, "Transaction created", map[string]interface{}{
		"transaction_id": tx.ID,
		"user_id":        tx.UserID,
		"valor":          tx.Amount.String(),
	})
	return tx, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	if id <= 0 {
		return nil, domain.InvalidInput("transaction id must be a positive integer")
	}

	tx, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	if tx == nil {
		return nil, domain.NotFound("transaction %d not found", id)
	}
	return tx, nil
}

// ListTransactions returns one page, newest first. A zero limit selects the
// default page size.
func (s *TransactionService) ListTransactions(ctx context.Context, limit, offset int) (*domain.TransactionPage, error) {
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 0 || limit > MaxPageLimit {
		return nil, domain.InvalidInput("limit must be between 1 and %d", MaxPageLimit)
	}
	if offset < 0 {
		return nil, domain.InvalidInput("offset must not be negative")
	}

	txs, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	return &domain.TransactionPage{
		Transactions: txs,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
		Count:        len(txs),
	}, nil
}

func (s *TransactionService) userTransactions(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	if userID <= 0 {
		return nil, domain.InvalidInput("usuario_id must be a positive integer")
	}
	txs, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of user %d: %w", userID, err)
	}
	return txs, nil
}

func (s *TransactionService) ListUserTransactions(ctx context.Context, userID int64) (*domain.UserTransactions, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserTransactions{
		UserID:       userID,
		Transactions: txs,
		Summary:      domain.Summarize(txs),
	}, nil
}

func (s *TransactionService) GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserStats{
		UserID:  userID,
		Summary: domain.Summarize(txs),
	}, nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, id int64, patch domain.TransactionPatch) (*domain.Transaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := patch.Apply(tx); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("update transaction %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Transaction updated", map[string]interface{}{"transaction_id": id})
	return tx, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted", map[string]interface{}{"transaction_id": id})
	return nil
}
