// Package archive builds and reads capsule archives.
//
// A capsule archive is a zip container holding one "<name>.encrypted" entry
// per user file, a "metadata.json.encrypted" entry with the encrypted
// manifest, and a plaintext "unlock.json" hint carrying the unlock instant.
// Every encrypted entry is produced by an independent Encrypt call, so each
// has its own salt and nonce.
package archive
