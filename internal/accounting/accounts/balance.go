package accounts

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ComputeBalance nets posted totals for an account. The opening balance is added
// on its declared side, then Asset/Expense accounts report debits - credits and
// all other types report credits - debits.
func ComputeBalance(t AccountType, openingSide BalanceSide, opening, debits, credits decimal.Decimal) decimal.Decimal {
	if openingSide == SideCredit {
		credits = credits.Add(opening)
	} else {
		debits = debits.Add(opening)
	}
	if t.DebitNormal() {
		return debits.Sub(credits)
	}
	return credits.Sub(debits)
}

// Balance applies ComputeBalance to the account's own opening balance.
func (a Account) Balance(t Totals) decimal.Decimal {
	return ComputeBalance(a.Type, a.OpeningSide, a.OpeningBalance, t.Debit, t.Credit)
}

// Movement is the balance effect of one line under the type's sign convention.
func Movement(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// BuildTree groups accounts by parent. Roots and children are ordered by code;
// accounts whose parent is missing from the slice are treated as roots.
func BuildTree(list []Account) []*Node {
	nodes := make(map[int64]*Node, len(list))
	for _, a := range list {
		nodes[a.ID] = &Node{Account: a}
	}
	var roots []*Node
	for _, a := range list {
		node := nodes[a.ID]
		if a.ParentID != nil {
			if parent, ok := nodes[*a.ParentID]; ok && *a.ParentID != a.ID {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Account.Code < nodes[j].Account.Code })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
