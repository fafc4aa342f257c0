package docs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/kv"
)

const transactionPrefix = "transaction/"

// txIDMillisDigits is the fixed width of the epoch-milliseconds component of
// a transaction id. Fixed width keeps lexicographic key order identical to
// chronological order.
const txIDMillisDigits = 13

// Transaction is a single posted transaction on an account. The transaction
// id embeds its timestamp as the leading component, so iterating the
// account's key range yields transactions in time order with no sort step.
type Transaction struct {
	Meta

	// Time is the posting time in epoch milliseconds.
	Time   int64   `json:"time"`
	Name   string  `json:"name"`
	Memo   string  `json:"memo,omitempty"`
	Amount float64 `json:"amount"`

	// Split maps category ids to the portion of Amount assigned to them.
	Split map[string]float64 `json:"split,omitempty"`

	// ServerID is the institution-assigned id from an OFX download, used to
	// dedupe re-imported statements.
	ServerID string `json:"serverid,omitempty"`
}

func (*Transaction) DocKind() Kind { return KindTransaction }

// NewTxID generates a transaction id: the fixed-width epoch-millisecond
// timestamp followed by 4 random bytes in hex. Same-millisecond collisions
// are broken by the random suffix; uniqueness needs no coordination.
func NewTxID(timeMillis int64) string {
	return fmt.Sprintf("%0*d%s", txIDMillisDigits, timeMillis,
		common.MakeRandHexString(4))
}

// TransactionKey builds the storage key for a transaction.
func TransactionKey(bankID, accountID, txID string) string {
	return transactionPrefix + bankID + "/" + accountID + "/" + txID
}

// ParseTransactionKey splits a transaction key into its id segments.
func ParseTransactionKey(key string) (bankID, accountID, txID string, ok bool) {
	rest, found := strings.CutPrefix(key, transactionPrefix)
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// IsTransactionKey reports whether key addresses a Transaction document.
func IsTransactionKey(key string) bool {
	_, _, _, ok := ParseTransactionKey(key)
	return ok
}

// TxIDTime extracts the epoch-millisecond timestamp embedded in a
// transaction id.
func TxIDTime(txID string) (int64, bool) {
	if len(txID) < txIDMillisDigits {
		return 0, false
	}
	millis, err := strconv.ParseInt(txID[:txIDMillisDigits], 10, 64)
	if err != nil {
		return 0, false
	}
	return millis, true
}

// TransactionRange scans every transaction document.
func TransactionRange() kv.Range { return prefixRange(transactionPrefix) }

// TransactionRangeFor scans all transactions of one account.
func TransactionRangeFor(bankID, accountID string) kv.Range {
	return prefixRange(transactionPrefix + bankID + "/" + accountID + "/")
}

// TransactionTimeRange scans one account's transactions posted in
// [fromMillis, toMillis). The bound works on the key alone because the
// timestamp leads the transaction id.
func TransactionTimeRange(bankID, accountID string, fromMillis, toMillis int64) kv.Range {
	prefix := transactionPrefix + bankID + "/" + accountID + "/"
	return kv.Range{
		Start: prefix + fmt.Sprintf("%0*d", txIDMillisDigits, fromMillis),
		End:   prefix + fmt.Sprintf("%0*d", txIDMillisDigits, toMillis),
	}
}

// NewTransaction constructs a transaction with a fresh time-embedding id.
func NewTransaction(bankID, accountID string, timeMillis int64, name string, amount float64) (*Transaction, error) {
	t := &Transaction{
		Meta:   Meta{ID: TransactionKey(bankID, accountID, NewTxID(timeMillis))},
		Time:   timeMillis,
		Name:   name,
		Amount: amount,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transaction) Validate() error {
	if !IsTransactionKey(t.ID) {
		return validationErr("invalid transaction key %q", t.ID)
	}
	if t.Time < 0 {
		return validationErr("transaction time must not be negative")
	}
	return nil
}
