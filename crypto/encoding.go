package crypto

import "github.com/jmcleod/stopit/internal/util"

// EncodeBase64 encodes b for storage in a text field.
func EncodeBase64(b []byte) string {
	return util.Base64Encode(b)
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	return util.Base64Decode(s)
}

// EncodeSalt encodes a salt for storage.
func EncodeSalt(salt []byte) string {
	return util.Base64Encode(salt)
}

// DecodeSalt reverses EncodeSalt.
func DecodeSalt(s string) ([]byte, error) {
	return util.Base64Decode(s)
}

// EncodeHex encodes a password hash for storage.
func EncodeHex(b []byte) string {
	return util.HexEncode(b)
}

// DecodeHex reverses EncodeHex.
func DecodeHex(s string) ([]byte, error) {
	return util.HexDecode(s)
}
