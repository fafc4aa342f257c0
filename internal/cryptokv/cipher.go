package cryptokv

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mkarpenko/moneta/internal/common"
)

// Value wire format: [1-byte ivLen][iv][ciphertext], base64-framed so the
// underlying storage only ever sees text-safe bytes.

var errMalformedValue = errors.New("malformed encrypted value")

// encryptValue encrypts plaintext under key with a fresh random IV and
// returns the framed, base64-encoded bytes.
func encryptValue(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(aesgcm.NonceSize())
	ciphertext := aesgcm.Seal(nil, iv, plaintext, nil)

	framed := make([]byte, 0, 1+len(iv)+len(ciphertext))
	framed = append(framed, byte(len(iv)))
	framed = append(framed, iv...)
	framed = append(framed, ciphertext...)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(framed)))
	base64.StdEncoding.Encode(out, framed)
	return out, nil
}

// decryptValue reverses encryptValue. Authentication failures mean the value
// was encrypted under a different key or corrupted.
func decryptValue(key, value []byte) ([]byte, error) {
	framed := make([]byte, base64.StdEncoding.DecodedLen(len(value)))
	n, err := base64.StdEncoding.Decode(framed, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errMalformedValue, err)
	}
	framed = framed[:n]

	if len(framed) < 1 {
		return nil, errMalformedValue
	}
	ivLen := int(framed[0])
	if len(framed) < 1+ivLen {
		return nil, errMalformedValue
	}
	iv := framed[1 : 1+ivLen]
	ciphertext := framed[1+ivLen:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	// A corrupted ivLen byte must fail like any other malformed frame;
	// aesgcm.Open panics on a wrong nonce length instead of erroring.
	if ivLen != aesgcm.NonceSize() || len(ciphertext) == 0 {
		return nil, errMalformedValue
	}

	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt value: %w", err)
	}
	return plaintext, nil
}
