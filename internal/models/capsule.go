package models

import (
	"time"
)

// FileEntry is a file selected for inclusion in a capsule, payload included.
// It is treated as immutable once added to a session.
type FileEntry struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// Info strips the payload from e.
func (e FileEntry) Info() FileInfo {
	return FileInfo{Name: e.Name, Size: e.Size, ContentType: e.ContentType}
}

// FileInfo describes a capsule file without its payload.
type FileInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

// Manifest describes a capsule's contents and unlock instant. It travels
// encrypted inside the archive.
type Manifest struct {
	Files     []FileInfo
	UnlockAt  time.Time
	CreatedAt time.Time
}

// FileNames returns the manifest file names in manifest order.
func (m Manifest) FileNames() []string {
	names := make([]string, len(m.Files))
	for i, f := range m.Files {
		names[i] = f.Name
	}
	return names
}

// Record is the registry's view of a capsule.
//
// Passphrase is empty when the registry is configured not to keep secrets;
// otherwise the storage medium backing the registry is secret-bearing.
type Record struct {
	ID         string
	UnlockAt   time.Time
	Passphrase string
	Files      []string
}

// HasPassphrase reports whether the record can be used to decrypt without
// asking the caller.
func (r Record) HasPassphrase() bool {
	return r.Passphrase != ""
}
