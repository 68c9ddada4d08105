package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Params configures PBKDF2-HMAC-SHA256 password stretching.
type PBKDF2Params struct {
	Iterations int `json:"iterations" yaml:"iterations"`
	KeyLen     int `json:"key_len" yaml:"key_len"`
}

// Minimum acceptable PBKDF2 parameters. Anything weaker is rejected.
const (
	MinPBKDF2Iterations = 100_000
	PBKDF2KeyLen        = 32
)

// Named KDF profiles.
const (
	KDFProfileInteractive = "interactive"
	KDFProfileModerate    = "moderate"
	KDFProfileSensitive   = "sensitive"
)

func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: MinPBKDF2Iterations,
		KeyLen:     PBKDF2KeyLen,
	}
}

// PBKDF2Profile returns the parameters for a named profile.
func PBKDF2Profile(name string) (PBKDF2Params, error) {
	switch name {
	case KDFProfileInteractive:
		return DefaultPBKDF2Params(), nil
	case KDFProfileModerate:
		return PBKDF2Params{Iterations: 310_000, KeyLen: PBKDF2KeyLen}, nil
	case KDFProfileSensitive:
		return PBKDF2Params{Iterations: 600_000, KeyLen: PBKDF2KeyLen}, nil
	default:
		return PBKDF2Params{}, fmt.Errorf("unknown KDF profile %q", name)
	}
}

// ValidatePBKDF2Params checks that p meets the minimum thresholds.
func ValidatePBKDF2Params(p PBKDF2Params) error {
	if p.KeyLen != PBKDF2KeyLen {
		return fmt.Errorf("pbkdf2 key length must be %d bytes, got %d", PBKDF2KeyLen, p.KeyLen)
	}
	if p.Iterations < MinPBKDF2Iterations {
		return fmt.Errorf("pbkdf2 iterations %d below minimum %d", p.Iterations, MinPBKDF2Iterations)
	}
	return nil
}

func DerivePBKDF2Key(passphrase string, salt []byte, params PBKDF2Params) ([]byte, error) {
	if err := ValidatePBKDF2Params(params); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("pbkdf2 salt must not be empty")
	}
	return pbkdf2.Key([]byte(passphrase), salt, params.Iterations, params.KeyLen, sha256.New), nil
}

// ConstantTimeEqual reports whether a and b are equal without leaking timing.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
