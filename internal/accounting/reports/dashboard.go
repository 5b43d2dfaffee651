package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// EntrySummary is a compact view of a journal entry.
type EntrySummary struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
}

// Dashboard summarises a tenant's ledger from cached balances.
type Dashboard struct {
	FiscalYearID       *int64          `json:"fiscal_year_id,omitempty"`
	FiscalYearName     string          `json:"fiscal_year_name"`
	TotalAssets        decimal.Decimal `json:"total_assets"`
	TotalLiabilities   decimal.Decimal `json:"total_liabilities"`
	AccountsReceivable decimal.Decimal `json:"accounts_receivable"`
	NetWorth           decimal.Decimal `json:"net_worth"`
	RecentEntries      []EntrySummary  `json:"recent_entries,omitempty"`
}

// BuildDashboard totals cached balances of active accounts. receivableID
// selects the receivable account; zero falls back to code 1200.
func BuildDashboard(list []accounts.Account, receivableID int64, recent []EntrySummary) Dashboard {
	d := Dashboard{
		TotalAssets:        decimal.Zero,
		TotalLiabilities:   decimal.Zero,
		AccountsReceivable: decimal.Zero,
		RecentEntries:      recent,
	}
	for _, acc := range list {
		if !acc.IsActive {
			continue
		}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			d.TotalAssets = d.TotalAssets.Add(acc.CurrentBalance)
		case accounts.AccountTypeLiability:
			d.TotalLiabilities = d.TotalLiabilities.Add(acc.CurrentBalance)
		}
		if (receivableID != 0 && acc.ID == receivableID) || (receivableID == 0 && acc.Code == "1200") {
			d.AccountsReceivable = acc.CurrentBalance
		}
	}
	d.NetWorth = d.TotalAssets.Sub(d.TotalLiabilities)
	return d
}
