package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/models"
	"github.com/klauspost/compress/flate"
)

// MaxEntrySize bounds the decompressed size of a single archive entry.
const MaxEntrySize int64 = 1 << 30

// Archive is a structurally valid capsule archive. Entry contents are read
// lazily, so a damaged entry only affects itself.
type Archive struct {
	names []string
	files map[string]*zip.File
}

// Parse checks the zip structure of data. It does not decrypt anything.
func Parse(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	a := &Archive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if _, dup := a.files[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", common.ErrCorruptArchive, f.Name)
		}
		a.files[f.Name] = f
		a.names = append(a.names, f.Name)
	}

	if _, ok := a.files[common.MetadataEntryName]; !ok {
		return nil, common.ErrMissingMetadata
	}
	return a, nil
}

// Names lists every entry in archive order.
func (a *Archive) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// FileEntries lists the capsule file names found in the archive, that is the
// encrypted entries other than the manifest, with the suffix removed.
func (a *Archive) FileEntries() []string {
	var out []string
	for _, n := range a.names {
		if n == common.MetadataEntryName || !strings.HasSuffix(n, common.EncryptedSuffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(n, common.EncryptedSuffix))
	}
	return out
}

// Has reports whether the archive contains the named entry.
func (a *Archive) Has(entry string) bool {
	_, ok := a.files[entry]
	return ok
}

// UnlockHint returns the plaintext unlock instant. ok is false for archives
// written without a hint.
func (a *Archive) UnlockHint() (unlockAt time.Time, ok bool, err error) {
	if !a.Has(common.UnlockHintEntryName) {
		return time.Time{}, false, nil
	}
	raw, err := a.read(common.UnlockHintEntryName)
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := unmarshalUnlockHint(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (a *Archive) read(entry string) ([]byte, error) {
	f, ok := a.files[entry]
	if !ok {
		return nil, common.ErrEntryNotFound
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
	}
	if int64(len(data)) > MaxEntrySize {
		return nil, fmt.Errorf("%w: entry exceeds %d bytes", common.ErrCorruptArchive, MaxEntrySize)
	}
	return data, nil
}

// unexpected returns entries that neither the manifest nor the archive
// layout account for.
func (a *Archive) unexpected(m models.Manifest) []string {
	known := map[string]struct{}{
		common.MetadataEntryName:   {},
		common.UnlockHintEntryName: {},
	}
	for _, f := range m.Files {
		known[EntryName(f.Name)] = struct{}{}
	}
	var out []string
	for _, n := range a.names {
		if _, ok := known[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
