package helpers

import "encoding/hex"

// MustHex decodes hex string, whitespace is not allowed. Panics on error, use in tests and constants only.
func MustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
