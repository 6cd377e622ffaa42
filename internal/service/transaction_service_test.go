package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardledger/internal/domain"
	"cardledger/pkg/logger"
)

func ptr[T any](v T) *T { return &v }

func validInput(userID int64) domain.TransactionInput {
	amount := domain.MustAmount("10.50")
	return domain.TransactionInput{
		UserID:      ptr(userID),
		Description: ptr("Compra"),
		Amount:      &amount,
		CardType:    ptr("Crédito"),
		CardLast4:   ptr("1234"),
	}
}

func newTransactionServiceUnderTest(outcome domain.LookupOutcome) (domain.TransactionService, *fakeTransactionRepo, *fakeDirectory) {
	repo := &fakeTransactionRepo{}
	dir := &fakeDirectory{outcome: outcome, err: errors.New("dial tcp: connection refused")}
	return NewTransactionService(repo, dir, logger.NewNop()), repo, dir
}

func TestCreateTransaction_UserFound(t *testing.T) {
	ctx := context.Background()
	svc, repo, dir := newTransactionServiceUnderTest(domain.LookupFound)

	tx, err := svc.CreateTransaction(ctx, validInput(1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), tx.ID)
	assert.Equal(t, domain.CardTypeCredit, tx.CardType)
	assert.Equal(t, "10.50", tx.Amount.String())
	assert.Equal(t, []int64{1}, dir.calls)

	count, _ := repo.Count(ctx)
	assert.Equal(t, int64(1), count)
}

func TestCreateTransaction_UserNotFoundPersistsNothing(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTransactionServiceUnderTest(domain.LookupNotFound)

	_, err := svc.CreateTransaction(ctx, validInput(999))
	require.Error(t, err)
	assert.Equal(t, domain.KindReferenceNotFound, domain.KindOf(err))

	listed, err := svc.ListUserTransactions(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, listed.Transactions)
	count, _ := repo.Count(ctx)
	assert.Zero(t, count)
}

func TestCreateTransaction_DirectoryUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTransactionServiceUnderTest(domain.LookupUnavailable)

	_, err := svc.CreateTransaction(ctx, validInput(1))
	require.Error(t, err)
	assert.Equal(t, domain.KindDependencyUnavailable, domain.KindOf(err))
	assert.NotEqual(t, domain.KindReferenceNotFound, domain.KindOf(err))
	assert.ErrorContains(t, err, "connection refused")

	count, _ := repo.Count(ctx)
	assert.Zero(t, count)
}

func TestCreateTransaction_InvalidInputSkipsLookup(t *testing.T) {
	ctx := context.Background()

	cases := map[string]func(in *domain.TransactionInput){
		"missing usuario_id": func(in *domain.TransactionInput) { in.UserID = nil },
		"zero usuario_id":    func(in *domain.TransactionInput) { in.UserID = ptr(int64(0)) },
		"short descricao":    func(in *domain.TransactionInput) { in.Description = ptr("ab") },
		"unknown card type":  func(in *domain.TransactionInput) { in.CardType = ptr("Gold") },
		"card last4 letters": func(in *domain.TransactionInput) { in.CardLast4 = ptr("12a4") },
		"amount too large": func(in *domain.TransactionInput) {
			a := domain.MustAmount("100000.00")
			in.Amount = &a
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, dir := newTransactionServiceUnderTest(domain.LookupFound)
			in := validInput(1)
			mutate(&in)

			_, err := svc.CreateTransaction(ctx, in)
			require.Error(t, err)
			assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
			assert.Zero(t, dir.callCount(), "no lookup on invalid input")
		})
	}
}

func TestListTransactions_Pagination(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTransactionServiceUnderTest(domain.LookupFound)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTransaction(ctx, validInput(1))
		require.NoError(t, err)
	}

	page, err := svc.ListTransactions(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, page.Limit)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, int64(3), page.Transactions[0].ID)

	page, err = svc.ListTransactions(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, int64(2), page.Transactions[0].ID)

	_, err = svc.ListTransactions(ctx, MaxPageLimit+1, 0)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	_, err = svc.ListTransactions(ctx, 10, -1)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestGetUserStats_NeverCallsDirectory(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newTransactionServiceUnderTest(domain.LookupFound)

	_, err := svc.CreateTransaction(ctx, validInput(7))
	require.NoError(t, err)
	in := validInput(7)
	second := domain.MustAmount("4.50")
	in.Amount = &second
	in.CardType = ptr("Debit")
	_, err = svc.CreateTransaction(ctx, in)
	require.NoError(t, err)

	before := dir.callCount()
	stats, err := svc.GetUserStats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, before, dir.callCount())

	assert.Equal(t, 2, stats.Summary.Count)
	assert.Equal(t, "15.00", stats.Summary.Total.String())
	assert.Equal(t, "7.50", stats.Summary.Average.String())
	assert.Equal(t, 1, stats.Summary.ByCardType[domain.CardTypeDebit].Count)

	_, err = svc.GetUserStats(ctx, 0)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newTransactionServiceUnderTest(domain.LookupFound)

	created, err := svc.CreateTransaction(ctx, validInput(1))
	require.NoError(t, err)
	calls := dir.callCount()

	newAmount := domain.MustAmount("20,00")
	updated, err := svc.UpdateTransaction(ctx, created.ID, domain.TransactionPatch{Amount: &newAmount, CardType: ptr("Prepaid")})
	require.NoError(t, err)
	assert.Equal(t, "20.00", updated.Amount.String())
	assert.Equal(t, domain.CardTypePrepaid, updated.CardType)
	assert.Equal(t, calls, dir.callCount(), "update performs no lookup")

	_, err = svc.UpdateTransaction(ctx, created.ID, domain.TransactionPatch{UserID: ptr(int64(2))})
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	_, err = svc.UpdateTransaction(ctx, 404, domain.TransactionPatch{Description: ptr("Outra compra")})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTransactionServiceUnderTest(domain.LookupFound)

	created, err := svc.CreateTransaction(ctx, validInput(1))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(ctx, created.ID))

	_, err = svc.GetTransaction(ctx, created.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(svc.DeleteTransaction(ctx, created.ID)))
}
