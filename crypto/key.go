package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/stopit/internal/util"
)

// ErrKeyDestroyed is returned when a destroyed Key is used.
var ErrKeyDestroyed = errors.New("key destroyed")

// Key is a derived AES-256-GCM key kept in a memguard Enclave (encrypted at
// rest in memory). Seal and Open only expose the raw bytes for the duration of
// a single operation.
type Key struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
}

// NewKey moves raw into an enclave. raw is wiped.
func NewKey(raw []byte) *Key {
	return &Key{enclave: memguard.NewEnclave(raw)}
}

// Destroy drops the enclave. Further use returns ErrKeyDestroyed.
func (k *Key) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enclave = nil
}

// Destroyed reports whether Destroy has been called.
func (k *Key) Destroyed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.enclave == nil
}

func (k *Key) with(fn func(raw []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.enclave == nil {
		return ErrKeyDestroyed
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Seal encrypts the canonical text form of value and returns the base64
// encoding of nonce || ciphertext.
func (k *Key) Seal(value any) (string, error) {
	plain, err := canonical(value)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(plain)

	var blob []byte
	err = k.with(func(raw []byte) error {
		blob, err = util.EncryptAES(plain, raw)
		return err
	})
	if err != nil {
		return "", err
	}
	return EncodeBase64(blob), nil
}

// Open authenticates and decrypts blob. Every failure other than a destroyed
// key is reported as ErrCrypto.
func (k *Key) Open(blob string) ([]byte, error) {
	raw, err := DecodeBase64(blob)
	if err != nil {
		return nil, ErrCrypto
	}
	var plain []byte
	err = k.with(func(key []byte) error {
		var openErr error
		plain, openErr = util.DecryptAES(raw, key)
		if openErr != nil {
			return ErrCrypto
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// OpenValue opens blob and decodes it into out. *string and *[]byte receive the
// plaintext verbatim; anything else is JSON-decoded.
func (k *Key) OpenValue(blob string, out any) error {
	plain, err := k.Open(blob)
	if err != nil {
		return err
	}
	defer util.WipeBytes(plain)

	switch v := out.(type) {
	case *string:
		*v = string(plain)
	case *[]byte:
		*v = util.CopyBytes(plain)
	default:
		if err := json.Unmarshal(plain, out); err != nil {
			return fmt.Errorf("decoding plaintext: %w", err)
		}
	}
	return nil
}

// canonical returns the text that gets encrypted: strings and byte slices as-is,
// everything else as JSON.
func canonical(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return util.CopyBytes(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding plaintext: %w", err)
		}
		return b, nil
	}
}
