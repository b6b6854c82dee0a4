package archive

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/chronovault/internal/common"
)

var reservedNames = map[string]struct{}{
	"metadata.json":            {},
	common.MetadataEntryName:   {},
	common.UnlockHintEntryName: {},
}

// ValidateName checks that name can be stored as a capsule file. Names are
// flat: path separators, dot segments and control characters are refused, as
// are names that would collide with the archive's own entries.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", common.ErrInvalidFileName, name)
	}
	if !utf8.ValidString(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", common.ErrInvalidFileName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", common.ErrInvalidFileName, name)
		}
	}
	if _, ok := reservedNames[name]; ok {
		return fmt.Errorf("%w: %q is reserved", common.ErrInvalidFileName, name)
	}
	if _, ok := reservedNames[EntryName(name)]; ok {
		return fmt.Errorf("%w: %q is reserved", common.ErrInvalidFileName, name)
	}
	return nil
}

// EntryName maps a capsule file name to its archive entry name.
func EntryName(name string) string {
	return name + common.EncryptedSuffix
}
