package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarpenko/moneta/internal/docs"
)

func txAt(t *testing.T, bankID, accountID string, millis int64, amount float64) *docs.Transaction {
	t.Helper()
	id := docs.TransactionKey(bankID, accountID, fmt.Sprintf("%013d%04x", millis, millis))
	return &docs.Transaction{
		Meta:   docs.Meta{ID: id},
		Time:   millis,
		Name:   fmt.Sprintf("tx-%d", millis),
		Amount: amount,
	}
}

func TestBuildAccountViewOrdersByTimeAndSumsBalance(t *testing.T) {
	c := New()
	c.Accounts["account/b1/a1"] = &docs.Account{
		Meta: docs.Meta{ID: "account/b1/a1"}, Name: "Checking", Type: docs.AccountTypeChecking,
	}

	// inserted out of order on purpose
	for _, tx := range []*docs.Transaction{
		txAt(t, "b1", "a1", 200, -20),
		txAt(t, "b1", "a1", 50, 100),
		txAt(t, "b1", "a1", 100, -30),
		txAt(t, "b1", "a2", 10, 999),
		txAt(t, "b2", "a1", 10, 999),
	} {
		c.Transactions[tx.ID] = tx
	}

	view := BuildAccountView(c.Accounts["account/b1/a1"], c)

	require.Len(t, view.Transactions, 3)
	assert.Equal(t, int64(50), view.Transactions[0].Time)
	assert.Equal(t, int64(100), view.Transactions[1].Time)
	assert.Equal(t, int64(200), view.Transactions[2].Time)
	assert.Equal(t, 50.0, view.Balance)
}

func TestBuildAccountViewEmptyAccount(t *testing.T) {
	c := New()
	a := &docs.Account{Meta: docs.Meta{ID: "account/b1/a1"}, Name: "Empty", Type: docs.AccountTypeSavings}

	view := BuildAccountView(a, c)
	assert.Empty(t, view.Transactions)
	assert.Equal(t, 0.0, view.Balance)
}

func TestBuildBankViewSkipsDanglingReferences(t *testing.T) {
	c := New()
	c.Accounts["account/b1/a1"] = &docs.Account{Meta: docs.Meta{ID: "account/b1/a1"}, Name: "a1"}

	bank := &docs.Bank{
		Meta:     docs.Meta{ID: "bank/b1"},
		Name:     "Bank",
		Accounts: []string{"account/b1/a1", "account/b1/gone"},
	}

	view := BuildBankView(bank, c)
	require.Len(t, view.Accounts, 1)
	assert.Equal(t, "a1", view.Accounts[0].Name)
}

func TestBuildBudgetViewResolvesCategories(t *testing.T) {
	c := New()
	c.Categories["category/bg1/c1"] = &docs.Category{Meta: docs.Meta{ID: "category/bg1/c1"}, Name: "Food", Amount: 400}

	budget := &docs.Budget{
		Meta:       docs.Meta{ID: "budget/bg1"},
		Name:       "Monthly",
		Categories: []string{"category/bg1/c1", "category/bg1/missing"},
	}

	view := BuildBudgetView(budget, c)
	require.Len(t, view.Categories, 1)
	assert.Equal(t, "Food", view.Categories[0].Name)
}
