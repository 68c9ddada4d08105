package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func newSalt(t *testing.T) []byte {
	t.Helper()
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltSize)
	return salt
}

func TestEncryptDecrypt_RoundTripValue(t *testing.T) {
	salt := newSalt(t)
	in := sample{Name: "coffee", Count: 3, Tags: []string{"a", "b"}}

	blob, err := Encrypt(in, "password123", salt)
	require.NoError(t, err)

	var out sample
	require.NoError(t, DecryptValue(blob, "password123", salt, &out))
	assert.Equal(t, in, out)
}

func TestEncryptDecrypt_RoundTripString(t *testing.T) {
	salt := newSalt(t)

	blob, err := Encrypt("just a note", "password123", salt)
	require.NoError(t, err)

	plain, err := Decrypt(blob, "password123", salt)
	require.NoError(t, err)
	assert.Equal(t, "just a note", string(plain))

	var s string
	require.NoError(t, DecryptValue(blob, "password123", salt, &s))
	assert.Equal(t, "just a note", s)
}

func TestDecrypt_WrongPassword(t *testing.T) {
	salt := newSalt(t)
	blob, err := Encrypt(map[string]int{"x": 1}, "password123", salt)
	require.NoError(t, err)

	_, err = Decrypt(blob, "password124", salt)
	require.ErrorIs(t, err, ErrCrypto)
}

func TestDecrypt_EmptyPassword(t *testing.T) {
	salt := newSalt(t)
	blob, err := Encrypt("secret", "password123", salt)
	require.NoError(t, err)

	_, err = Decrypt(blob, "", salt)
	require.ErrorIs(t, err, ErrCrypto)
	require.ErrorIs(t, err, ErrEmptyPassword)

	var out string
	require.ErrorIs(t, DecryptValue(blob, "", salt, &out), ErrCrypto)

	_, err = DeriveKey("", salt)
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestDecrypt_TamperedAndMalformed(t *testing.T) {
	salt := newSalt(t)
	key, err := DeriveKey("password123", salt)
	require.NoError(t, err)
	defer key.Destroy()

	blob, err := key.Seal("payload")
	require.NoError(t, err)

	raw, err := DecodeBase64(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	cases := map[string]string{
		"tampered":   EncodeBase64(raw),
		"not base64": "%%%",
		"too short":  EncodeBase64([]byte("abc")),
		"empty":      "",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := key.Open(in)
			require.ErrorIs(t, err, ErrCrypto)
			assert.Equal(t, ErrCrypto.Error(), err.Error())
		})
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key, err := DeriveKey("password123", newSalt(t))
	require.NoError(t, err)
	defer key.Destroy()

	a, err := key.Seal("same")
	require.NoError(t, err)
	b, err := key.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword(t *testing.T) {
	salt := newSalt(t)

	h1, err := HashPassword("password123", salt)
	require.NoError(t, err)
	h2, err := HashPassword("password123", salt)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := HashPassword("password123", newSalt(t))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	ok, err := VerifyPassword("password123", salt, h1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong-password", salt, h1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_IndependentFromEncryptionKey(t *testing.T) {
	salt := newSalt(t)
	hash, err := HashPassword("password123", salt)
	require.NoError(t, err)

	// A blob sealed under the real key must not open under the verifier.
	blob, err := Encrypt("secret", "password123", salt)
	require.NoError(t, err)

	verifierKey := NewKey(append([]byte(nil), hash...))
	defer verifierKey.Destroy()
	_, err = verifierKey.Open(blob)
	require.ErrorIs(t, err, ErrCrypto)
}

func TestDeriveKeys_MatchesSeparateDerivations(t *testing.T) {
	salt := newSalt(t)
	key, hash, err := DeriveKeys("password123", salt)
	require.NoError(t, err)
	defer key.Destroy()

	separate, err := HashPassword("password123", salt)
	require.NoError(t, err)
	assert.Equal(t, separate, hash)

	blob, err := key.Seal("x")
	require.NoError(t, err)
	plain, err := Decrypt(blob, "password123", salt)
	require.NoError(t, err)
	assert.Equal(t, "x", string(plain))
}

func TestDeriveKey_Validation(t *testing.T) {
	_, err := DeriveKey("", newSalt(t))
	require.Error(t, err)

	_, err = DeriveKey("password123", nil)
	require.Error(t, err)

	weak := DefaultParams()
	weak.Iterations = 1000
	_, err = DeriveKey("password123", newSalt(t), WithParams(weak))
	require.Error(t, err)
}

func TestKey_Destroyed(t *testing.T) {
	key, err := DeriveKey("password123", newSalt(t))
	require.NoError(t, err)
	key.Destroy()

	assert.True(t, key.Destroyed())
	_, err = key.Seal("x")
	require.ErrorIs(t, err, ErrKeyDestroyed)
	_, err = key.Open("AAAA")
	require.ErrorIs(t, err, ErrKeyDestroyed)
}

func TestEncodingHelpers_RoundTrip(t *testing.T) {
	salt := newSalt(t)
	got, err := DecodeSalt(EncodeSalt(salt))
	require.NoError(t, err)
	assert.Equal(t, salt, got)

	got, err = DecodeHex(EncodeHex(salt))
	require.NoError(t, err)
	assert.Equal(t, salt, got)

	got, err = DecodeBase64(EncodeBase64([]byte{}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGeneratePassword(t *testing.T) {
	p, err := GeneratePassword(0)
	require.NoError(t, err)
	assert.Len(t, p, 16)

	q, err := GeneratePassword(24)
	require.NoError(t, err)
	assert.Len(t, q, 24)
	assert.NotEqual(t, p, q)
}
