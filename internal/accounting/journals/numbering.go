package journals

import (
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const sequenceWidth = 6

// MaxSequence is the last sequence that fits the number format.
const MaxSequence = 999999

// NumberPrefix is "JE" followed by the year of the fiscal year's start date.
// The prefix is shared by every tenant whose year starts in the same calendar year.
func NumberPrefix(year periods.FiscalYear) string {
	return fmt.Sprintf("JE%d", year.StartDate.Year())
}

// FormatNumber renders JE<year><6-digit-seq>. Sequences outside
// 1..MaxSequence return ErrSequenceExhausted.
func FormatNumber(prefix string, seq int64) (string, error) {
	if seq < 1 || seq > MaxSequence {
		return "", fmt.Errorf("%w: %s sequence %d", shared.ErrSequenceExhausted, prefix, seq)
	}
	return fmt.Sprintf("%s%0*d", prefix, sequenceWidth, seq), nil
}

func sortInt64s(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
