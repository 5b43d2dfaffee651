package accounts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeBalanceSignConvention(t *testing.T) {
	cases := []struct {
		name    string
		typ     AccountType
		side    BalanceSide
		opening string
		debit   string
		credit  string
		want    string
	}{
		{"asset debit opening", AccountTypeAsset, SideDebit, "100", "50", "0", "150"},
		{"asset credit opening", AccountTypeAsset, SideCredit, "100", "50", "0", "-50"},
		{"expense", AccountTypeExpense, SideDebit, "0", "80", "30", "50"},
		{"liability", AccountTypeLiability, SideCredit, "200", "20", "0", "180"},
		{"equity debit opening", AccountTypeEquity, SideDebit, "10", "0", "0", "-10"},
		{"revenue", AccountTypeRevenue, SideCredit, "0", "0", "115", "115"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeBalance(tc.typ, tc.side, dec(tc.opening), dec(tc.debit), dec(tc.credit))
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestMovement(t *testing.T) {
	assert.True(t, Movement(AccountTypeAsset, dec("200"), dec("50")).Equal(dec("150")))
	assert.True(t, Movement(AccountTypeRevenue, dec("200"), dec("50")).Equal(dec("-150")))
}

func TestBuildTree(t *testing.T) {
	root := int64(1)
	missing := int64(99)
	list := []Account{
		{ID: 3, Code: "1200", ParentID: &root},
		{ID: 1, Code: "1000"},
		{ID: 2, Code: "1100", ParentID: &root},
		{ID: 4, Code: "2000", ParentID: &missing},
	}
	tree := BuildTree(list)
	require.Len(t, tree, 2)
	assert.Equal(t, "1000", tree[0].Account.Code)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "1100", tree[0].Children[0].Account.Code)
	assert.Equal(t, "2000", tree[1].Account.Code)
}

func TestDefaultChart(t *testing.T) {
	chart, err := DefaultChart()
	require.NoError(t, err)
	require.Len(t, chart, 26)

	codes := make(map[string]AccountType, len(chart))
	for _, row := range chart {
		codes[row.Code] = row.Type
		assert.NotEmpty(t, row.NameArabic, row.Code)
	}
	for code, typ := range map[string]AccountType{
		"1100": AccountTypeAsset,
		"1110": AccountTypeAsset,
		"1200": AccountTypeAsset,
		"2100": AccountTypeLiability,
		"4000": AccountTypeRevenue,
	} {
		assert.Equal(t, typ, codes[code], code)
	}
}

func TestParseChartRejectsOrphans(t *testing.T) {
	_, err := ParseChart([]byte(`accounts:
  - {code: "1100", name: Cash, type: ASSET, parent: "1000"}
`))
	require.Error(t, err)

	_, err = ParseChart([]byte(`accounts:
  - {code: "1100", name: Cash, type: BOGUS}
`))
	require.Error(t, err)
}
