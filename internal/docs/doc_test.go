package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		key  string
		want Kind
	}{
		{"bank/b1", KindBank},
		{"account/b1/a1", KindAccount},
		{"transaction/b1/a1/0000000000100abcd", KindTransaction},
		{"category/bg1/c1", KindCategory},
		{"budget/bg1", KindBudget},
		{"bill/x1", KindBill},
		{"_local/sync/s1", KindSync},
		{LocalDocsKey, KindLocal},
		{"local/keyDoc", KindUnknown},
		{"garbage", KindUnknown},
		{"", KindUnknown},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, KindOf(tc.key), "key %q", tc.key)
	}
}

func TestDecodeSelectsKindFromKey(t *testing.T) {
	doc, kind, err := Decode("bank/b1", []byte(`{"name":"Test Bank","accounts":[]}`))
	require.NoError(t, err)
	require.Equal(t, KindBank, kind)

	bank, ok := doc.(*Bank)
	require.True(t, ok)
	assert.Equal(t, "Test Bank", bank.Name)
	// the key wins over any id in the body
	assert.Equal(t, "bank/b1", bank.Key())
}

func TestDecodeUnknownKeyIsNotAnError(t *testing.T) {
	doc, kind, err := Decode("mystery/x", []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, KindUnknown, kind)
}

func TestDecodeBadPayload(t *testing.T) {
	_, kind, err := Decode("bank/b1", []byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, KindBank, kind)
}

func TestNakedStripsStorageMetadata(t *testing.T) {
	raw := []byte(`{"id":"bank/b1","revision":"r1","_deleted":false,"$deltas":[],"name":"X","accounts":["account/b1/a1"]}`)

	naked, err := NakedRaw(raw)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":     "X",
		"accounts": []any{"account/b1/a1"},
	}, naked)
}

func TestValidateDispatchesToKind(t *testing.T) {
	bank := &Bank{Meta: Meta{ID: "bank/b1"}}
	assert.Error(t, Validate(bank), "missing name must fail")

	bank.Name = "ok"
	assert.NoError(t, Validate(bank))
}

func TestPrefixRange(t *testing.T) {
	r := BankRange()
	assert.Equal(t, "bank/", r.Start)
	assert.Equal(t, "bank/"+KeyRangeEnd, r.End)
	assert.Less(t, "bank/zzzz", r.End)
}
