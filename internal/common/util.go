package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes read from crypto/rand. It is used
// for salts and nonces.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return b
}

// WipeByteArray zeroes b in place. Keys and passphrase buffers go through it
// once they are no longer needed.
func WipeByteArray(b []byte) {
	clear(b)
}
