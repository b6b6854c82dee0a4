package common

const (
	// RegistryKey is the fixed key the capsule registry blob is stored under.
	RegistryKey = "chronovault-capsules"

	// MetadataEntryName is the archive entry holding the encrypted manifest.
	MetadataEntryName = "metadata.json.encrypted"

	// UnlockHintEntryName is the plaintext archive entry exposing the unlock
	// instant so lock state can be evaluated before decryption.
	UnlockHintEntryName = "unlock.json"

	// EncryptedSuffix is appended to every encrypted archive entry name.
	EncryptedSuffix = ".encrypted"

	// PassphraseLength is the number of decimal digits a passphrase must have.
	PassphraseLength = 12

	// ISOLayout mirrors the millisecond-precision UTC format used in manifests,
	// registry records and identifier derivation.
	ISOLayout = "2006-01-02T15:04:05.000Z"
)
