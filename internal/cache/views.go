package cache

import (
	"sort"

	"github.com/mkarpenko/moneta/internal/docs"
)

// Views are derived, non-persisted read models. They are recomputed from the
// cache on demand and must never be treated as the source of truth.

// AccountView is an account with its resolved transactions and running
// balance.
type AccountView struct {
	Doc *docs.Account

	// Transactions is ordered ascending by posting time (the order the
	// account's key range yields).
	Transactions []*docs.Transaction

	// Balance is the cumulative sum of all transaction amounts.
	Balance float64
}

// BuildAccountView collects the account's transactions by key range and
// computes the running balance in ascending time order.
func BuildAccountView(a *docs.Account, c *DocCache) *AccountView {
	view := &AccountView{Doc: a}

	bankID, accountID, ok := docs.ParseAccountKey(a.ID)
	if !ok {
		return view
	}
	r := docs.TransactionRangeFor(bankID, accountID)

	for id, tx := range c.Transactions {
		if id >= r.Start && id < r.End {
			view.Transactions = append(view.Transactions, tx)
		}
	}
	sort.Slice(view.Transactions, func(i, j int) bool {
		return view.Transactions[i].ID < view.Transactions[j].ID
	})

	for _, tx := range view.Transactions {
		view.Balance += tx.Amount
	}
	return view
}

// BankView is a bank with its account documents resolved.
type BankView struct {
	Doc      *docs.Bank
	Accounts []*docs.Account
}

// BuildBankView resolves the bank's account references against the cache.
// Dangling references are skipped.
func BuildBankView(b *docs.Bank, c *DocCache) *BankView {
	view := &BankView{Doc: b}
	for _, id := range b.Accounts {
		if a, ok := c.Accounts[id]; ok {
			view.Accounts = append(view.Accounts, a)
		}
	}
	return view
}

// BudgetView is a budget with its category documents resolved.
type BudgetView struct {
	Doc        *docs.Budget
	Categories []*docs.Category
}

// BuildBudgetView resolves the budget's category references against the
// cache. Dangling references are skipped.
func BuildBudgetView(b *docs.Budget, c *DocCache) *BudgetView {
	view := &BudgetView{Doc: b}
	for _, id := range b.Categories {
		if cat, ok := c.Categories[id]; ok {
			view.Categories = append(view.Categories, cat)
		}
	}
	return view
}
