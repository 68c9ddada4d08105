// Package crypto implements the password-based encryption used for every
// stored record: PBKDF2-HMAC-SHA256 stretching, HKDF domain separation between
// the encryption key and the login verifier, and AES-256-GCM sealing with a
// fresh nonce per call.
package crypto

import (
	"errors"
	"fmt"

	"github.com/jmcleod/stopit/internal/util"
)

// ErrCrypto is returned for any failure to open a ciphertext blob. Wrong
// passwords and corrupted data are indistinguishable and share this error.
var ErrCrypto = errors.New("decryption failed")

// ErrEmptyPassword is returned when key derivation is asked to stretch an
// empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// SaltSize is the length in bytes of salts produced by NewSalt.
const SaltSize = 16

const (
	encryptionKeyInfo = "stopit:encryption-key:v1"
	passwordHashInfo  = "stopit:password-hash:v1"
)

// Params configures PBKDF2 password stretching.
type Params = util.PBKDF2Params

// Named KDF profiles.
const (
	KDFProfileInteractive = util.KDFProfileInteractive
	KDFProfileModerate    = util.KDFProfileModerate
	KDFProfileSensitive   = util.KDFProfileSensitive
)

// MinIterations is the lowest PBKDF2 iteration count accepted.
const MinIterations = util.MinPBKDF2Iterations

// DefaultParams returns the default PBKDF2 parameters (100,000 iterations).
func DefaultParams() Params {
	return util.DefaultPBKDF2Params()
}

// ParamsProfile returns the Params for a named profile.
func ParamsProfile(name string) (Params, error) {
	return util.PBKDF2Profile(name)
}

// ValidateParams checks p against the minimum acceptable thresholds.
func ValidateParams(p Params) error {
	return util.ValidatePBKDF2Params(p)
}

// Option configures a derivation.
type Option func(*options)

type options struct {
	params Params
}

// WithParams overrides the PBKDF2 parameters.
func WithParams(p Params) Option {
	return func(o *options) {
		o.params = p
	}
}

func buildOptions(opts []Option) options {
	o := options{params: DefaultParams()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	return util.RandomBytes(SaltSize)
}

func stretch(password string, salt []byte, o options) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return util.DerivePBKDF2Key(util.Normalize(password), salt, o.params)
}

// DeriveKey derives the record encryption key for (password, salt).
// The caller owns the returned Key and should Destroy it when done.
func DeriveKey(password string, salt []byte, opts ...Option) (*Key, error) {
	master, err := stretch(password, salt, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(master)
	return keyFromMaster(master, salt)
}

func keyFromMaster(master, salt []byte) (*Key, error) {
	raw, err := util.HKDF(master, salt, encryptionKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving encryption key: %w", err)
	}
	return NewKey(raw), nil
}

// HashPassword derives the login verifier for (password, salt). It is
// independent from the encryption key: knowing one does not reveal the other.
func HashPassword(password string, salt []byte, opts ...Option) ([]byte, error) {
	master, err := stretch(password, salt, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(master)
	return util.HKDF(master, salt, passwordHashInfo)
}

// DeriveKeys runs a single stretch and returns both the encryption key and the
// login verifier.
func DeriveKeys(password string, salt []byte, opts ...Option) (*Key, []byte, error) {
	master, err := stretch(password, salt, buildOptions(opts))
	if err != nil {
		return nil, nil, err
	}
	defer util.WipeBytes(master)

	hash, err := util.HKDF(master, salt, passwordHashInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving password hash: %w", err)
	}
	key, err := keyFromMaster(master, salt)
	if err != nil {
		return nil, nil, err
	}
	return key, hash, nil
}

// VerifyPassword reports whether password hashes to expected under salt.
func VerifyPassword(password string, salt, expected []byte, opts ...Option) (bool, error) {
	hash, err := HashPassword(password, salt, opts...)
	if err != nil {
		return false, err
	}
	return util.ConstantTimeEqual(hash, expected), nil
}

// Encrypt derives the key for (password, salt) and seals value with it.
func Encrypt(value any, password string, salt []byte, opts ...Option) (string, error) {
	key, err := DeriveKey(password, salt, opts...)
	if err != nil {
		return "", err
	}
	defer key.Destroy()
	return key.Seal(value)
}

// Decrypt derives the key for (password, salt) and opens blob, returning the
// canonical plaintext. A password that cannot be stretched fails with
// ErrCrypto like any other wrong password.
func Decrypt(blob string, password string, salt []byte, opts ...Option) ([]byte, error) {
	key, err := DeriveKey(password, salt, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	defer key.Destroy()
	return key.Open(blob)
}

// DecryptValue is like Decrypt but decodes the plaintext into out.
func DecryptValue(blob string, password string, salt []byte, out any, opts ...Option) error {
	key, err := DeriveKey(password, salt, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	defer key.Destroy()
	return key.OpenValue(blob, out)
}

// GeneratePassword returns a random password of length n (16 when n <= 0).
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		n = 16
	}
	return util.RandomChars(n)
}
