package domain

import "time"

type ReportSources struct {
	User         string `json:"usuario"`
	Transactions string `json:"transacoes"`
}

type ReportMetadata struct {
	GeneratedAt  time.Time     `json:"gerado_em"`
	TotalRecords int           `json:"total_registros"`
	Sources      ReportSources `json:"fontes"`
}

// UserReport is composed by the gateway for a single request and never stored.
type UserReport struct {
	User         *User              `json:"usuario"`
	Transactions []*Transaction     `json:"transacoes"`
	Summary      TransactionSummary `json:"resumo"`
	Metadata     ReportMetadata     `json:"metadados"`
}
