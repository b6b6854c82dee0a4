// Package cryptox adapts the conventional primitives chronovault relies on:
// argon2id for passphrase stretching, AES-256-GCM for authenticated
// encryption and SHA-256 for digests.
//
// The adapter performs no passphrase policy checks; callers validate the
// passphrase format before anything reaches this package.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/chronovault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	formatVersion byte = 1

	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	// version | time(4) | memory(4) | threads(1) | salt | nonce
	headerSize = 1 + 4 + 4 + 1 + saltSize + nonceSize

	maxTime      = 16
	maxMemoryKiB = 1 << 20 // 1 GiB
)

// KDFParams are the argon2id cost parameters used for every key derivation.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultKDFParams mirrors the parameters used for master-key derivation:
// one pass, 64 MiB, four lanes.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}
}

// Validate reports whether p is usable and within the bounds Decrypt accepts.
func (p KDFParams) Validate() error {
	if p.Time == 0 || p.Time > maxTime {
		return fmt.Errorf("kdf time must be in [1, %d], got %d", maxTime, p.Time)
	}
	if p.Threads == 0 {
		return fmt.Errorf("kdf threads must be positive")
	}
	if p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxMemoryKiB {
		return fmt.Errorf("kdf memory must be in [%d, %d] KiB, got %d", 8*uint32(p.Threads), maxMemoryKiB, p.MemoryKiB)
	}
	return nil
}

// Cipher encrypts and decrypts payloads under a passphrase.
//
// Each Encrypt call draws a fresh salt and nonce, so encrypting the same
// plaintext twice never yields related ciphertexts. The cost parameters are
// stored in the ciphertext header; Decrypt honours the header, which lets the
// configured cost change without breaking older archives.
type Cipher struct {
	params KDFParams
}

func NewCipher(params KDFParams) (*Cipher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Cipher{params: params}, nil
}

// Params returns the cost parameters new ciphertexts are produced with.
func (c *Cipher) Params() KDFParams {
	return c.params
}

// DeriveKey stretches passphrase with argon2id.
func DeriveKey(passphrase []byte, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, keySize)
}

// Encrypt seals plaintext and returns the base64 text form of
// header || ciphertext. The header is authenticated as additional data.
func (c *Cipher) Encrypt(plaintext []byte, passphrase string) (string, error) {
	header := make([]byte, headerSize)
	header[0] = formatVersion
	binary.BigEndian.PutUint32(header[1:5], c.params.Time)
	binary.BigEndian.PutUint32(header[5:9], c.params.MemoryKiB)
	header[9] = c.params.Threads

	salt := common.GenerateRandByteArray(saltSize)
	nonce := common.GenerateRandByteArray(nonceSize)
	copy(header[10:10+saltSize], salt)
	copy(header[10+saltSize:], nonce)

	key := DeriveKey([]byte(passphrase), salt, c.params)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, header)

	out := make([]byte, 0, len(header)+len(sealed))
	out = append(out, header...)
	out = append(out, sealed...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt byte for byte. Any malformed input or
// authentication failure is reported as common.ErrDecryptionFailure.
func (c *Cipher) Decrypt(ciphertext string, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding: %v", common.ErrDecryptionFailure, err)
	}

	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrDecryptionFailure)
	}

	header := raw[:headerSize]
	if header[0] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", common.ErrDecryptionFailure, header[0])
	}

	p := KDFParams{
		Time:      binary.BigEndian.Uint32(header[1:5]),
		MemoryKiB: binary.BigEndian.Uint32(header[5:9]),
		Threads:   header[9],
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}

	salt := header[10 : 10+saltSize]
	nonce := header[10+saltSize:]

	key := DeriveKey([]byte(passphrase), salt, p)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, raw[headerSize:], header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}

	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

// Digest returns the lowercase hex SHA-256 of input.
func Digest(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}
	return aesgcm, nil
}
