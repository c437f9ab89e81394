// Package settlement turns a zero-sum ledger into the payments that clear it.
//
// Creditors and debtors are matched greedily, largest claim against largest
// debt, until every balance is zero. Each step fully resolves at least one
// participant, so n nonzero balances need at most n-1 payments. All
// arithmetic is on integer cents.
package settlement

import (
	"sort"

	"settle/internal/core"
)

// Settle computes the payments that zero every balance in ledger.
//
// The result is sorted by (Payee, Payer, Amount) and is identical across
// calls for the same ledger. It returns *ImbalancedLedgerError when the
// balances do not sum to zero. Participants with a zero balance never appear
// in the result.
func Settle(ledger core.Ledger) ([]core.Transaction, error) {
	if total := ledger.Total(); total != 0 {
		return nil, &ImbalancedLedgerError{Total: total}
	}

	var credits, debts []claim
	for name, amount := range ledger {
		switch {
		case amount > 0:
			credits = append(credits, claim{name: name, amount: amount})
		case amount < 0:
			debts = append(debts, claim{name: name, amount: amount})
		}
	}
	creditors := newClaimQueue(credits)
	debtors := newClaimQueue(debts)

	txs := make([]core.Transaction, 0, max(len(credits)+len(debts)-1, 0))
	for creditors.Len() > 0 && debtors.Len() > 0 {
		c := creditors.pop()
		d := debtors.pop()

		txs = append(txs, core.Transaction{
			Payee:  c.name,
			Payer:  d.name,
			Amount: min(c.amount, -d.amount),
		})

		switch remainder := c.amount + d.amount; {
		case remainder > 0:
			creditors.push(claim{name: c.name, amount: remainder})
		case remainder < 0:
			debtors.push(claim{name: d.name, amount: remainder})
		}
	}

	if creditors.Len() > 0 || debtors.Len() > 0 {
		remaining := creditors.remaining()
		for name, v := range debtors.remaining() {
			remaining[name] += v
		}
		return nil, &UnsettledLedgerError{Remaining: remaining}
	}

	sort.Slice(txs, func(i, j int) bool { return txs[i].Less(txs[j]) })
	return txs, nil
}

// Summary returns each participant's net position implied by txs:
// amounts received minus amounts paid. For a successful Settle it equals the
// nonzero part of the input ledger.
func Summary(txs []core.Transaction) core.Ledger {
	out := core.Ledger{}
	for _, tx := range txs {
		out[tx.Payee] += tx.Amount
		out[tx.Payer] -= tx.Amount
	}
	return out
}
