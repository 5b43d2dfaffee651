package integration

import (
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

// Payment methods known to billing.
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodCreditCard   = "credit_card"
	MethodDebitCard    = "debit_card"
	MethodBankTransfer = "bank_transfer"
	MethodCheque       = "cheque"
	MethodOnline       = "online"
)

// DepositRole picks the account receiving a payment: cash and card takings go
// to the cash account, everything else to the bank.
func DepositRole(method string) mappings.Role {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case MethodCash, MethodCard, MethodCreditCard, MethodDebitCard:
		return mappings.RoleCash
	}
	return mappings.RoleBank
}
