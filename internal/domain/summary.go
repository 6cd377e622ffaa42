package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardTypeSummary struct {
	Count int    `json:"quantidade"`
	Total Amount `json:"total"`
}

// TransactionSummary is folded from a list of transactions. The ledger's stats
// endpoint and the gateway report both use Summarize so the two can never
// disagree on how an aggregate is computed.
type TransactionSummary struct {
	Count      int                          `json:"total_transacoes"`
	Total      Amount                       `json:"total_gasto"`
	Average    Amount                       `json:"valor_medio_transacao"`
	Min        *Amount                      `json:"menor_valor,omitempty"`
	Max        *Amount                      `json:"maior_valor,omitempty"`
	ByCardType map[CardType]CardTypeSummary `json:"por_tipo_cartao"`
	FirstAt    *time.Time                   `json:"primeira_transacao,omitempty"`
	LastAt     *time.Time                   `json:"ultima_transacao,omitempty"`
}

func Summarize(txs []*Transaction) TransactionSummary {
	summary := TransactionSummary{
		Total:      NewAmount(decimal.Zero),
		Average:    NewAmount(decimal.Zero),
		ByCardType: make(map[CardType]CardTypeSummary),
	}

	for _, tx := range txs {
		summary.Count++
		summary.Total = NewAmount(summary.Total.Add(tx.Amount.Decimal))

		amount := tx.Amount
		if summary.Min == nil || amount.LessThan(summary.Min.Decimal) {
			summary.Min = &amount
		}
		if summary.Max == nil || amount.GreaterThan(summary.Max.Decimal) {
			summary.Max = &amount
		}

		card := summary.ByCardType[tx.CardType]
		card.Count++
		card.Total = NewAmount(card.Total.Add(tx.Amount.Decimal))
		summary.ByCardType[tx.CardType] = card

		createdAt := tx.CreatedAt
		if summary.FirstAt == nil || createdAt.Before(*summary.FirstAt) {
			summary.FirstAt = &createdAt
		}
		if summary.LastAt == nil || createdAt.After(*summary.LastAt) {
			summary.LastAt = &createdAt
		}
	}

	if summary.Count > 0 {
		summary.Average = NewAmount(summary.Total.DivRound(decimal.NewFromInt(int64(summary.Count)), 2))
	}

	return summary
}
