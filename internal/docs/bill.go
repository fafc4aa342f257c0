package docs

import (
	"strings"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/mkarpenko/moneta/internal/kv"
)

const billPrefix = "bill/"

// Bill is a recurring obligation described by an RFC 5545 recurrence rule.
type Bill struct {
	Meta

	Name   string  `json:"name"`
	Group  string  `json:"group,omitempty"`
	Amount float64 `json:"amount"`

	// RRule is the recurrence rule string, e.g. "FREQ=MONTHLY;INTERVAL=1".
	RRule string `json:"rruleString"`

	Notes string `json:"notes,omitempty"`

	// Optional references to the paying account and budget category.
	AccountID  string `json:"account,omitempty"`
	CategoryID string `json:"category,omitempty"`
}

func (*Bill) DocKind() Kind { return KindBill }

// BillKey builds the storage key for a bill id.
func BillKey(billID string) string { return billPrefix + billID }

// ParseBillKey returns the bill id embedded in key.
func ParseBillKey(key string) (billID string, ok bool) {
	rest, found := strings.CutPrefix(key, billPrefix)
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// IsBillKey reports whether key addresses a Bill document.
func IsBillKey(key string) bool {
	_, ok := ParseBillKey(key)
	return ok
}

// BillRange scans every bill document.
func BillRange() kv.Range { return prefixRange(billPrefix) }

// NewBill constructs a bill with a fresh id. The recurrence rule must parse.
func NewBill(name string, amount float64, rruleString string) (*Bill, error) {
	b := &Bill{
		Meta:   Meta{ID: BillKey(uuid.NewString())},
		Name:   name,
		Amount: amount,
		RRule:  rruleString,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Rule parses the bill's recurrence rule.
func (b *Bill) Rule() (*rrule.RRule, error) {
	return rrule.StrToRRule(b.RRule)
}

func (b *Bill) Validate() error {
	if b.Name == "" {
		return validationErr("bill name is required")
	}
	if !IsBillKey(b.ID) {
		return validationErr("invalid bill key %q", b.ID)
	}
	if _, err := b.Rule(); err != nil {
		return validationErr("bill %q has invalid recurrence rule %q: %s", b.ID, b.RRule, err)
	}
	if b.AccountID != "" && !IsAccountKey(b.AccountID) {
		return validationErr("bill %q references non-account id %q", b.ID, b.AccountID)
	}
	if b.CategoryID != "" && !IsCategoryKey(b.CategoryID) {
		return validationErr("bill %q references non-category id %q", b.ID, b.CategoryID)
	}
	return nil
}
