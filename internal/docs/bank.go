package docs

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mkarpenko/moneta/internal/kv"
)

const bankPrefix = "bank/"

// Bank is a financial institution with OFX connection details and the list
// of account ids opened under it.
type Bank struct {
	Meta

	Name     string `json:"name"`
	Web      string `json:"web,omitempty"`
	Address  string `json:"address,omitempty"`
	Notes    string `json:"notes,omitempty"`
	FID      string `json:"fid,omitempty"`
	Org      string `json:"org,omitempty"`
	OFX      string `json:"ofx,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Accounts lists the Account document ids belonging to this bank.
	Accounts []string `json:"accounts"`
}

func (*Bank) DocKind() Kind { return KindBank }

// BankKey builds the storage key for a bank id.
func BankKey(bankID string) string { return bankPrefix + bankID }

// ParseBankKey returns the bank id embedded in key, or ok=false when key is
// not a bank key.
func ParseBankKey(key string) (bankID string, ok bool) {
	rest, found := strings.CutPrefix(key, bankPrefix)
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// IsBankKey reports whether key addresses a Bank document.
func IsBankKey(key string) bool {
	_, ok := ParseBankKey(key)
	return ok
}

// BankRange scans every bank document.
func BankRange() kv.Range { return prefixRange(bankPrefix) }

// NewBank constructs a bank with a fresh id.
func NewBank(name string) (*Bank, error) {
	b := &Bank{
		Meta:     Meta{ID: BankKey(uuid.NewString())},
		Name:     name,
		Accounts: []string{},
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every referenced account id is a valid Account key
// scoped to this bank.
func (b *Bank) Validate() error {
	if b.Name == "" {
		return validationErr("bank name is required")
	}
	bankID, ok := ParseBankKey(b.ID)
	if !ok {
		return validationErr("invalid bank key %q", b.ID)
	}
	for _, id := range b.Accounts {
		accBank, _, ok := ParseAccountKey(id)
		if !ok {
			return validationErr("bank %q references non-account id %q", b.ID, id)
		}
		if accBank != bankID {
			return validationErr("bank %q references account %q of another bank", b.ID, id)
		}
	}
	return nil
}
