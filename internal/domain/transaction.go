package domain

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

type CardType string

const (
	CardTypeCredit  CardType = "Crédito"
	CardTypeDebit   CardType = "Débito"
	CardTypePrepaid CardType = "Pré-pago"
)

var CardTypes = []CardType{CardTypeCredit, CardTypeDebit, CardTypePrepaid}

var cardTypeAliases = map[string]CardType{
	"crédito":  CardTypeCredit,
	"credito":  CardTypeCredit,
	"credit":   CardTypeCredit,
	"débito":   CardTypeDebit,
	"debito":   CardTypeDebit,
	"debit":    CardTypeDebit,
	"pré-pago": CardTypePrepaid,
	"pre-pago": CardTypePrepaid,
	"prepaid":  CardTypePrepaid,
}

// ParseCardType maps accepted spellings onto the canonical card type.
func ParseCardType(s string) (CardType, error) {
	if ct, ok := cardTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ct, nil
	}
	return "", InvalidInput("cartao_tipo must be one of: %s, %s, %s", CardTypeCredit, CardTypeDebit, CardTypePrepaid)
}

const (
	MinDescriptionLength = 3
	MaxDescriptionLength = 255
	CardLast4Length      = 4
)

type Transaction struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"usuario_id"`
	Description string    `json:"descricao"`
	Amount      Amount    `json:"valor"`
	CardType    CardType  `json:"cartao_tipo"`
	CardLast4   string    `json:"cartao_final"`
	CreatedAt   time.Time `json:"data_lancamento"`
}

// TransactionInput is the create payload. Pointer fields distinguish a missing
// field from a zero value.
type TransactionInput struct {
	UserID      *int64  `json:"usuario_id"`
	Description *string `json:"descricao"`
	Amount      *Amount `json:"valor"`
	CardType    *string `json:"cartao_tipo"`
	CardLast4   *string `json:"cartao_final"`
}

// TransactionPatch is the update payload. UserID is only decoded so that an
// attempt to change it can be rejected.
type TransactionPatch struct {
	UserID      *int64  `json:"usuario_id"`
	Description *string `json:"descricao"`
	Amount      *Amount `json:"valor"`
	CardType    *string `json:"cartao_tipo"`
	CardLast4   *string `json:"cartao_final"`
}

// Validate checks every local constraint and returns the normalized
// transaction, ready to persist once the referenced user is confirmed.
func (in TransactionInput) Validate() (*Transaction, error) {
	required := []struct {
		field   string
		missing bool
	}{
		{"usuario_id", in.UserID == nil},
		{"descricao", in.Description == nil},
		{"valor", in.Amount == nil},
		{"cartao_tipo", in.CardType == nil},
		{"cartao_final", in.CardLast4 == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, InvalidInput("field %q is required", r.field)
		}
	}

	if *in.UserID <= 0 {
		return nil, InvalidInput("usuario_id must be a positive integer")
	}

	description, err := normalizeDescription(*in.Description)
	if err != nil {
		return nil, err
	}

	if err := in.Amount.Validate(); err != nil {
		return nil, err
	}

	cardType, err := ParseCardType(*in.CardType)
	if err != nil {
		return nil, err
	}

	last4, err := normalizeCardLast4(*in.CardLast4)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		UserID:      *in.UserID,
		Description: description,
		Amount:      *in.Amount,
		CardType:    cardType,
		CardLast4:   last4,
	}, nil
}

// Apply validates the patch and applies it to tx in place. tx is left
// untouched when validation fails.
func (p TransactionPatch) Apply(tx *Transaction) error {
	if p.UserID != nil {
		return InvalidInput("usuario_id cannot be changed")
	}
	if p.Description == nil && p.Amount == nil && p.CardType == nil && p.CardLast4 == nil {
		return InvalidInput("at least one field must be provided")
	}

	updated := *tx

	if p.Description != nil {
		description, err := normalizeDescription(*p.Description)
		if err != nil {
			return err
		}
		updated.Description = description
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
		updated.Amount = *p.Amount
	}
	if p.CardType != nil {
		cardType, err := ParseCardType(*p.CardType)
		if err != nil {
			return err
		}
		updated.CardType = cardType
	}
	if p.CardLast4 != nil {
		last4, err := normalizeCardLast4(*p.CardLast4)
		if err != nil {
			return err
		}
		updated.CardLast4 = last4
	}

	*tx = updated
	return nil
}

func normalizeDescription(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	n := utf8.RuneCountInString(trimmed)
	if n < MinDescriptionLength {
		return "", InvalidInput("descricao must have at least %d characters", MinDescriptionLength)
	}
	if n > MaxDescriptionLength {
		return "", InvalidInput("descricao must have at most %d characters", MaxDescriptionLength)
	}
	return trimmed, nil
}

func normalizeCardLast4(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) != CardLast4Length {
		return "", InvalidInput("cartao_final must have exactly %d digits", CardLast4Length)
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return "", InvalidInput("cartao_final must be numeric")
		}
	}
	return trimmed, nil
}

type TransactionPage struct {
	Transactions []*Transaction `json:"transacoes"`
	Total        int64          `json:"total"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
	Count        int            `json:"count"`
}

type UserTransactions struct {
	UserID       int64              `json:"usuario_id"`
	Transactions []*Transaction     `json:"transacoes"`
	Summary      TransactionSummary `json:"resumo"`
}

type UserStats struct {
	UserID  int64              `json:"usuario_id"`
	Summary TransactionSummary `json:"resumo_geral"`
}

type TransactionRepository interface {
	FindByID(ctx context.Context, id int64) (*Transaction, error)
	FindByUserID(ctx context.Context, userID int64) ([]*Transaction, error)
	FindAll(ctx context.Context, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type TransactionService interface {
	CreateTransaction(ctx context.Context, in TransactionInput) (*Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int) (*TransactionPage, error)
	ListUserTransactions(ctx context.Context, userID int64) (*UserTransactions, error)
	GetUserStats(ctx context.Context, userID int64) (*UserStats, error)
	UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (*Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}
