// Package services implements the capsule lifecycle: collecting inputs in a
// Session, sealing them into an archive, registering the capsule, and later
// evaluating its lock state and extracting it once unlocked.
//
// Lifecycle: Building -> Sealed -> {LockedView, UnlockedView} -> Extracted.
package services
