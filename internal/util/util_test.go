package util

import (
	"bytes"
	"testing"
)

func TestAES(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	plainText := []byte("hello world")

	t.Run("EncryptDecrypt", func(t *testing.T) {
		cipherText, err := EncryptAES(plainText, key)
		if err != nil {
			t.Fatalf("EncryptAES failed: %v", err)
		}
		decrypted, err := DecryptAES(cipherText, key)
		if err != nil {
			t.Fatalf("DecryptAES failed: %v", err)
		}
		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("FreshNonce", func(t *testing.T) {
		a, _ := EncryptAES(plainText, key)
		b, _ := EncryptAES(plainText, key)
		if bytes.Equal(a[:AESNonceSize], b[:AESNonceSize]) {
			t.Error("nonce reused across calls")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := EncryptAES(plainText, key)
		cipherText[len(cipherText)-1] ^= 0xFF
		if _, err := DecryptAES(cipherText, key); err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		cipherText, _ := EncryptAES(plainText, key)
		other, _ := RandomBytes(AESKeySize)
		if _, err := DecryptAES(cipherText, other); err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("ShortCipherText", func(t *testing.T) {
		if _, err := DecryptAES([]byte("short"), key); err == nil {
			t.Error("expected error with short ciphertext, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		if _, err := EncryptAES(plainText, []byte("too short")); err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestPBKDF2(t *testing.T) {
	params := DefaultPBKDF2Params()
	salt := []byte("random salt")

	key, err := DerivePBKDF2Key("correct horse battery staple", salt, params)
	if err != nil {
		t.Fatalf("DerivePBKDF2Key failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	again, _ := DerivePBKDF2Key("correct horse battery staple", salt, params)
	if !ConstantTimeEqual(key, again) {
		t.Error("PBKDF2 should be deterministic")
	}

	other, _ := DerivePBKDF2Key("correct horse battery staple", []byte("other salt"), params)
	if ConstantTimeEqual(key, other) {
		t.Error("different salts should produce different keys")
	}

	t.Run("EmptySalt", func(t *testing.T) {
		if _, err := DerivePBKDF2Key("pw", nil, params); err == nil {
			t.Error("expected error for empty salt")
		}
	})
}

func TestValidatePBKDF2Params(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		if err := ValidatePBKDF2Params(DefaultPBKDF2Params()); err != nil {
			t.Errorf("default params should be valid: %v", err)
		}
	})
	t.Run("TooFewIterations", func(t *testing.T) {
		p := DefaultPBKDF2Params()
		p.Iterations = 99_999
		if err := ValidatePBKDF2Params(p); err == nil {
			t.Error("expected error for iterations below minimum")
		}
	})
	t.Run("KeyLenNot32", func(t *testing.T) {
		p := DefaultPBKDF2Params()
		p.KeyLen = 16
		if err := ValidatePBKDF2Params(p); err == nil {
			t.Error("expected error for KeyLen != 32")
		}
	})
}

func TestPBKDF2Profile(t *testing.T) {
	inter, err := PBKDF2Profile(KDFProfileInteractive)
	if err != nil {
		t.Fatal(err)
	}
	mod, _ := PBKDF2Profile(KDFProfileModerate)
	sens, _ := PBKDF2Profile(KDFProfileSensitive)
	for _, p := range []PBKDF2Params{inter, mod, sens} {
		if err := ValidatePBKDF2Params(p); err != nil {
			t.Errorf("profile failed validation: %v", err)
		}
	}
	if inter.Iterations > mod.Iterations || mod.Iterations > sens.Iterations {
		t.Error("profiles should be ordered by cost")
	}
	if _, err := PBKDF2Profile("nonexistent"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestHKDF(t *testing.T) {
	seed := []byte("seed")
	salt := []byte("salt")

	key1, err := HKDF(seed, salt, "info")
	if err != nil {
		t.Fatalf("HKDF failed: %v", err)
	}
	if len(key1) != 32 {
		t.Errorf("expected key length 32, got %d", len(key1))
	}
	key2, _ := HKDF(seed, salt, "info")
	if !bytes.Equal(key1, key2) {
		t.Error("HKDF should be deterministic")
	}
	key3, _ := HKDF(seed, salt, "different info")
	if bytes.Equal(key1, key3) {
		t.Error("HKDF should produce different output with different info")
	}
	if _, err := HKDF(nil, salt, "info"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestBytes(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}
	copied := CopyBytes(a)
	if !bytes.Equal(copied, a) {
		t.Error("CopyBytes failed")
	}
	copied[0] = 0xFF
	if a[0] == 0xFF {
		t.Error("CopyBytes should return a new slice")
	}
	if CopyBytes(nil) != nil {
		t.Error("CopyBytes(nil) should be nil")
	}

	WipeBytes(copied)
	if !bytes.Equal(copied, make([]byte, 3)) {
		t.Error("WipeBytes should zero the slice")
	}
}

func TestEncoding(t *testing.T) {
	raw := []byte{0x00, 0xFF, 0x10, 'a'}

	hexed := HexEncode(raw)
	decoded, err := HexDecode(hexed)
	if err != nil {
		t.Fatalf("HexDecode failed: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Errorf("hex round trip: expected %v, got %v", raw, decoded)
	}

	b64 := Base64Encode(raw)
	decoded, err = Base64Decode(b64)
	if err != nil {
		t.Fatalf("Base64Decode failed: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Errorf("base64 round trip: expected %v, got %v", raw, decoded)
	}

	if Normalize("caf\u00e9") != "cafe\u0301" {
		t.Error("Normalize should decompose to NFKD")
	}
}

func TestRandom(t *testing.T) {
	t.Run("RandomBytes", func(t *testing.T) {
		b1, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		b2, _ := RandomBytes(32)
		if len(b1) != 32 {
			t.Errorf("expected 32 bytes, got %d", len(b1))
		}
		if bytes.Equal(b1, b2) {
			t.Error("RandomBytes should produce different outputs")
		}
	})

	t.Run("RandomChars", func(t *testing.T) {
		s1, err := RandomChars(16)
		if err != nil {
			t.Fatalf("RandomChars failed: %v", err)
		}
		s2, _ := RandomChars(16)
		if len(s1) != 16 {
			t.Errorf("expected length 16, got %d", len(s1))
		}
		if s1 == s2 {
			t.Error("RandomChars should produce different outputs")
		}
	})

	t.Run("RandomIntn", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			n, err := RandomIntn(10)
			if err != nil {
				t.Fatalf("RandomIntn failed: %v", err)
			}
			if n < 0 || n >= 10 {
				t.Errorf("RandomIntn(10) returned %d out of range", n)
			}
		}
	})
}
