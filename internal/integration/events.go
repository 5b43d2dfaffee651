package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the slice of a billing invoice the ledger needs.
type Invoice struct {
	ID                 int64
	TenantID           int64
	Number             string
	CustomerName       string
	TotalAmount        decimal.Decimal
	TotalTaxableAmount decimal.Decimal
	TotalVAT           decimal.Decimal
	IssueDate          time.Time
	StudentID          *int64
}

// Payment is the slice of a billing payment the ledger needs.
type Payment struct {
	ID            int64
	TenantID      int64
	InvoiceID     int64
	InvoiceNumber string
	TransactionID string
	Amount        decimal.Decimal
	Method        string
	PaymentDate   time.Time
	StudentID     *int64
}
