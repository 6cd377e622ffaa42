package gateway

import (
	"context"
	"fmt"
	"time"

	"cardledger/internal/domain"
)

// ReportBuilder composes the per-user report from the two backends. It
// fetches the user first and stops there on NotFound; the summary is folded
// from the fetched transactions rather than taken from the ledger.
type ReportBuilder struct {
	users   *Backend
	ledger  *Backend
	timeout time.Duration
	now     func() time.Time
}

func NewReportBuilder(users, ledger *Backend, timeout time.Duration) *ReportBuilder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReportBuilder{
		users:   users,
		ledger:  ledger,
		timeout: timeout,
		now:     time.Now,
	}
}

func (rb *ReportBuilder) Build(ctx context.Context, userID int64) (*domain.UserReport, error) {
	user, err := rb.fetchUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := rb.fetchTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.UserReport{
		User:         user,
		Transactions: txs,
		Summary:      domain.Summarize(txs),
		Metadata: domain.ReportMetadata{
			GeneratedAt:  rb.now().UTC(),
			TotalRecords: len(txs),
			Sources: domain.ReportSources{
				User:         rb.users.URL.String(),
				Transactions: rb.ledger.URL.String(),
			},
		},
	}, nil
}

func (rb *ReportBuilder) fetchUser(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, rb.timeout)
	defer cancel()

	var user domain.User
	err := rb.users.getJSON(ctx, "report_user", fmt.Sprintf("/users/%d", userID), &user)
	switch {
	case err == nil:
	case domain.IsKind(err, domain.KindNotFound), domain.IsKind(err, domain.KindDependencyUnavailable):
		return nil, err
	default:
		// Any other answer means the user service misbehaved, not the caller.
		return nil, domain.WrapError(domain.KindDependencyUnavailable, err,
			"%s gave an unexpected answer for user %d", rb.users.Name, userID)
	}
	if user.ID != userID {
		return nil, domain.NewError(domain.KindDependencyUnavailable,
			"%s returned user %d for %d", rb.users.Name, user.ID, userID)
	}
	return &user, nil
}

func (rb *ReportBuilder) fetchTransactions(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, rb.timeout)
	defer cancel()

	var listing domain.UserTransactions
	err := rb.ledger.getJSON(ctx, "report_transactions", fmt.Sprintf("/transactions/user/%d", userID), &listing)
	if err != nil {
		if domain.IsKind(err, domain.KindDependencyUnavailable) {
			return nil, err
		}
		// The listing never legitimately fails for a validated id.
		return nil, domain.WrapError(domain.KindDependencyUnavailable, err,
			"%s rejected the transaction listing", rb.ledger.Name)
	}

	txs := listing.Transactions
	if txs == nil {
		txs = make([]*domain.Transaction, 0)
	}
	return txs, nil
}
