package mappings

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Role names an account the posting integrations need.
type Role string

const (
	RoleAccountsReceivable Role = "ACCOUNTS_RECEIVABLE"
	RoleDefaultRevenue     Role = "DEFAULT_REVENUE"
	RoleVATPayable         Role = "VAT_PAYABLE"
	RoleCash               Role = "CASH"
	RoleBank               Role = "BANK"
)

// Roles lists every role in resolution order.
var Roles = []Role{RoleAccountsReceivable, RoleDefaultRevenue, RoleVATPayable, RoleCash, RoleBank}

// ConventionalCodes maps each role to its code in the standard chart.
var ConventionalCodes = map[Role]string{
	RoleAccountsReceivable: "1200",
	RoleDefaultRevenue:     "4000",
	RoleVATPayable:         "2100",
	RoleCash:               "1100",
	RoleBank:               "1110",
}

// ConventionalTypes is the account type a fallback account must carry.
var ConventionalTypes = map[Role]accounts.AccountType{
	RoleAccountsReceivable: accounts.AccountTypeAsset,
	RoleDefaultRevenue:     accounts.AccountTypeRevenue,
	RoleVATPayable:         accounts.AccountTypeLiability,
	RoleCash:               accounts.AccountTypeAsset,
	RoleBank:               accounts.AccountTypeAsset,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := ConventionalCodes[r]
	return ok
}

// AccountMapping links a tenant role to a ledger account.
type AccountMapping struct {
	TenantID  int64     `json:"tenant_id"`
	Role      Role      `json:"role"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conventions is the resolved account set for one tenant.
type Conventions struct {
	TenantID   int64 `json:"tenant_id"`
	Receivable int64 `json:"receivable"`
	Revenue    int64 `json:"revenue"`
	VATPayable int64 `json:"vat_payable"`
	Cash       int64 `json:"cash"`
	Bank       int64 `json:"bank"`
}

// Account returns the account mapped to role.
func (c Conventions) Account(role Role) int64 {
	switch role {
	case RoleAccountsReceivable:
		return c.Receivable
	case RoleDefaultRevenue:
		return c.Revenue
	case RoleVATPayable:
		return c.VATPayable
	case RoleCash:
		return c.Cash
	case RoleBank:
		return c.Bank
	}
	return 0
}

func (c *Conventions) set(role Role, accountID int64) {
	switch role {
	case RoleAccountsReceivable:
		c.Receivable = accountID
	case RoleDefaultRevenue:
		c.Revenue = accountID
	case RoleVATPayable:
		c.VATPayable = accountID
	case RoleCash:
		c.Cash = accountID
	case RoleBank:
		c.Bank = accountID
	}
}
