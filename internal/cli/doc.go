// Package cli provides the interactive chronovault command-line front end.
//
// App wires configuration, the registry backend, the archive codec, the
// capsule service and the export store, then runs a REPL. A typical session
// adds files, sets a passphrase and an unlock instant, creates the capsule
// and later opens the exported archive once it unlocks.
//
// Commands:
//   - add, remove, files, passphrase, unlock, create, reset: compose a capsule
//   - check, watch, verify: inspect a registered capsule
//   - open: unlock and extract an archive into the export store
//   - list, forget: manage the local registry
package cli
