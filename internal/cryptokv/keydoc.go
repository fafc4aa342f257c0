// Package cryptokv wraps a raw kv.Store with transparent value encryption.
// A per-store master key is unlocked by a user password through a wrapped-key
// document persisted in the store itself; values are encrypted with AES-GCM
// under the master key, one fresh IV per value.
package cryptokv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/mkarpenko/moneta/internal/common"
)

// KeyDocKey is the well-known raw key the wrapped master key lives under.
// The key document itself is stored in plaintext JSON; it never passes
// through the encrypting adapter.
const KeyDocKey = "local/keyDoc"

const masterKeySize = 32

// KeyDoc is the persisted wrapped-key document. The master key is wrapped
// with AES-GCM under a key derived from the user password; Verifier is a
// hash of the unwrapped master key used to reject wrong passwords even if
// AEAD authentication were ever bypassed.
type KeyDoc struct {
	Id         string `json:"id"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	WrappedKey []byte `json:"wrappedKey"`
	Verifier   []byte `json:"verifier"`
}

// DeriveKey derives the key-encryption key from a password and salt using
// argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, masterKeySize)
}

// MakeVerifier returns the verifier hash for a master key.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// CreateKeyDoc generates a fresh random master key and wraps it under the
// given password. The caller owns both results; the master key should be
// wiped when the session ends.
func CreateKeyDoc(password []byte) (masterKey []byte, doc *KeyDoc, err error) {
	salt := common.GenerateRandByteArray(16)
	masterKey = common.GenerateRandByteArray(masterKeySize)

	kek := DeriveKey(password, salt)
	defer common.WipeByteArray(kek)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	wrapped := aesgcm.Seal(nil, nonce, masterKey, nil)

	doc = &KeyDoc{
		Id:         uuid.NewString(),
		Salt:       salt,
		Nonce:      nonce,
		WrappedKey: wrapped,
		Verifier:   MakeVerifier(masterKey),
	}
	return masterKey, doc, nil
}

// DecryptMasterKeyDoc unwraps the master key using the supplied password.
// A wrong password surfaces as common.ErrPassword, never as a silent
// fallback.
func DecryptMasterKeyDoc(doc *KeyDoc, password []byte) ([]byte, error) {
	kek := DeriveKey(password, doc.Salt)
	defer common.WipeByteArray(kek)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	masterKey, err := aesgcm.Open(nil, doc.Nonce, doc.WrappedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: key unwrap failed", common.ErrPassword)
	}

	if subtle.ConstantTimeCompare(MakeVerifier(masterKey), doc.Verifier) != 1 {
		common.WipeByteArray(masterKey)
		return nil, fmt.Errorf("%w: verifier mismatch", common.ErrPassword)
	}
	return masterKey, nil
}
