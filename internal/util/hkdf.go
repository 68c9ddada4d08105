package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const HKDFKeyLength = 32

// HKDF expands secret into a HKDFKeyLength subkey bound to label. Distinct
// labels yield independent subkeys from the same secret.
func HKDF(secret, salt []byte, label string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("hkdf secret must not be empty")
	}
	h := hkdf.New(sha256.New, secret, salt, []byte(label))
	k := make([]byte, HKDFKeyLength)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
