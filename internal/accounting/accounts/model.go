package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether the type grows on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// BalanceSide marks the side an opening balance is declared on.
type BalanceSide string

const (
	SideDebit  BalanceSide = "DEBIT"
	SideCredit BalanceSide = "CREDIT"
)

// Account models a chart of accounts node. Parent links form an arena keyed by ID.
type Account struct {
	ID                 int64           `json:"id"`
	TenantID           int64           `json:"tenant_id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	NameArabic         string          `json:"name_arabic"`
	Type               AccountType     `json:"type"`
	ParentID           *int64          `json:"parent_id,omitempty"`
	IsActive           bool            `json:"is_active"`
	IsSystem           bool            `json:"is_system"`
	AllowManualEntries bool            `json:"allow_manual_entries"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningSide        BalanceSide     `json:"opening_side"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	Description        string          `json:"description"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Totals holds summed posted amounts for an account.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// CreateAccountInput carries the fields accepted when opening an account.
type CreateAccountInput struct {
	TenantID           int64
	Code               string
	Name               string
	NameArabic         string
	Type               AccountType
	ParentID           *int64
	IsSystem           bool
	AllowManualEntries bool
	OpeningBalance     decimal.Decimal
	OpeningSide        BalanceSide
	Description        string
	ActorID            int64
}

// UpdateAccountInput replaces the mutable fields of an account. Code and type are fixed.
type UpdateAccountInput struct {
	ID                 int64
	Name               string
	NameArabic         string
	ParentID           *int64
	IsActive           bool
	AllowManualEntries bool
	OpeningBalance     decimal.Decimal
	OpeningSide        BalanceSide
	Description        string
	ActorID            int64
}

// ListFilter narrows account listings.
type ListFilter struct {
	ActiveOnly bool
	Types      []AccountType
}

// Node is a read-side view of the account tree.
type Node struct {
	Account  Account `json:"account"`
	Children []*Node `json:"children,omitempty"`
}
