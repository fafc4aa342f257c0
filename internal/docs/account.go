package docs

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mkarpenko/moneta/internal/kv"
)

const accountPrefix = "account/"

// AccountType enumerates the supported account flavors.
type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeMoneyMrkt  AccountType = "MONEYMRKT"
	AccountTypeCreditLine AccountType = "CREDITLINE"
	AccountTypeCreditCard AccountType = "CREDITCARD"
)

var accountTypes = map[AccountType]struct{}{
	AccountTypeChecking:   {},
	AccountTypeSavings:    {},
	AccountTypeMoneyMrkt:  {},
	AccountTypeCreditLine: {},
	AccountTypeCreditCard: {},
}

// Account is a single account held at a bank.
type Account struct {
	Meta

	Name    string      `json:"name"`
	Type    AccountType `json:"type"`
	Number  string      `json:"number"`
	Color   string      `json:"color,omitempty"`
	Visible bool        `json:"visible"`
}

func (*Account) DocKind() Kind { return KindAccount }

// AccountKey builds the storage key for an account under a bank.
func AccountKey(bankID, accountID string) string {
	return accountPrefix + bankID + "/" + accountID
}

// ParseAccountKey splits an account key into its bank and account ids.
func ParseAccountKey(key string) (bankID, accountID string, ok bool) {
	rest, found := strings.CutPrefix(key, accountPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsAccountKey reports whether key addresses an Account document.
func IsAccountKey(key string) bool {
	_, _, ok := ParseAccountKey(key)
	return ok
}

// AccountRange scans every account document.
func AccountRange() kv.Range { return prefixRange(accountPrefix) }

// AccountRangeFor scans the accounts of one bank.
func AccountRangeFor(bankID string) kv.Range {
	return prefixRange(accountPrefix + bankID + "/")
}

// NewAccount constructs an account with a fresh id under the given bank.
func NewAccount(bankID, name string, typ AccountType, number string) (*Account, error) {
	a := &Account{
		Meta:    Meta{ID: AccountKey(bankID, uuid.NewString())},
		Name:    name,
		Type:    typ,
		Number:  number,
		Visible: true,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Account) Validate() error {
	if a.Name == "" {
		return validationErr("account name is required")
	}
	if _, ok := accountTypes[a.Type]; !ok {
		return validationErr("invalid account type %q", a.Type)
	}
	if !IsAccountKey(a.ID) {
		return validationErr("invalid account key %q", a.ID)
	}
	return nil
}
