package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

func TestDepositRole(t *testing.T) {
	cases := map[string]mappings.Role{
		"cash":          mappings.RoleCash,
		" Card ":        mappings.RoleCash,
		"credit_card":   mappings.RoleCash,
		"debit_card":    mappings.RoleCash,
		"bank_transfer": mappings.RoleBank,
		"cheque":        mappings.RoleBank,
		"online":        mappings.RoleBank,
		"":              mappings.RoleBank,
	}
	for method, want := range cases {
		assert.Equal(t, want, DepositRole(method), method)
	}
}

func TestSourceIDsAreStable(t *testing.T) {
	assert.Equal(t, InvoiceSourceID(42), InvoiceSourceID(42))
	assert.NotEqual(t, InvoiceSourceID(42), PaymentSourceID(42))
	assert.NotEqual(t, InvoiceSourceID(42), InvoiceSourceID(43))
}
