package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/capsuleid"
	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/models"
)

type manifestJSON struct {
	UnlockDate   string            `json:"unlockDate"`
	CreationDate string            `json:"creationDate"`
	FilesCount   int               `json:"filesCount"`
	FilesList    []models.FileInfo `json:"filesList"`
}

type unlockHintJSON struct {
	UnlockDate string `json:"unlockDate"`
}

// MarshalManifest encodes m in its archive JSON form.
func MarshalManifest(m models.Manifest) ([]byte, error) {
	files := m.Files
	if files == nil {
		files = []models.FileInfo{}
	}
	return json.Marshal(manifestJSON{
		UnlockDate:   capsuleid.FormatInstant(m.UnlockAt),
		CreationDate: capsuleid.FormatInstant(m.CreatedAt),
		FilesCount:   len(files),
		FilesList:    files,
	})
}

// UnmarshalManifest decodes the archive JSON form of a manifest. Any
// malformed content, including file names a capsule could not have been
// built with, is reported as ErrCorruptArchive.
func UnmarshalManifest(b []byte) (models.Manifest, error) {
	var raw manifestJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return models.Manifest{}, fmt.Errorf("%w: manifest: %v", common.ErrCorruptArchive, err)
	}

	unlockAt, err := capsuleid.ParseInstant(raw.UnlockDate)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("%w: manifest unlockDate: %v", common.ErrCorruptArchive, err)
	}

	var createdAt time.Time
	if raw.CreationDate != "" {
		createdAt, err = capsuleid.ParseInstant(raw.CreationDate)
		if err != nil {
			return models.Manifest{}, fmt.Errorf("%w: manifest creationDate: %v", common.ErrCorruptArchive, err)
		}
	}

	if raw.FilesCount != len(raw.FilesList) {
		return models.Manifest{}, fmt.Errorf("%w: manifest lists %d files but declares %d",
			common.ErrCorruptArchive, len(raw.FilesList), raw.FilesCount)
	}

	seen := make(map[string]struct{}, len(raw.FilesList))
	for _, f := range raw.FilesList {
		if err := ValidateName(f.Name); err != nil {
			return models.Manifest{}, fmt.Errorf("%w: manifest: %v", common.ErrCorruptArchive, err)
		}
		if _, dup := seen[f.Name]; dup {
			return models.Manifest{}, fmt.Errorf("%w: manifest lists %q twice", common.ErrCorruptArchive, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	return models.Manifest{Files: raw.FilesList, UnlockAt: unlockAt, CreatedAt: createdAt}, nil
}

func marshalUnlockHint(unlockAt time.Time) ([]byte, error) {
	return json.Marshal(unlockHintJSON{UnlockDate: capsuleid.FormatInstant(unlockAt)})
}

func unmarshalUnlockHint(b []byte) (time.Time, error) {
	var raw unlockHintJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return time.Time{}, fmt.Errorf("%w: unlock hint: %v", common.ErrCorruptArchive, err)
	}
	t, err := capsuleid.ParseInstant(raw.UnlockDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unlock hint: %v", common.ErrCorruptArchive, err)
	}
	return t, nil
}
