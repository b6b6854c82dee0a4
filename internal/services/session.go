package services

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/archive"
	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/models"
)

// State is a capsule's position in its lifecycle.
type State int

const (
	Building State = iota
	Sealed
	LockedView
	UnlockedView
	Extracted
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Sealed:
		return "sealed"
	case LockedView:
		return "locked"
	case UnlockedView:
		return "unlocked"
	case Extracted:
		return "extracted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var passphraseRe = regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, common.PassphraseLength))

// ValidatePassphrase enforces the passphrase policy: exactly twelve ASCII
// digits.
func ValidatePassphrase(p string) error {
	if !passphraseRe.MatchString(p) {
		return common.NewValidationError("passphrase", common.ErrInvalidPassphraseFormat)
	}
	return nil
}

// readFile is replaced in tests.
var readFile = os.ReadFile

// Session collects the inputs of one capsule before it is created. It is
// safe for concurrent use. Any change after the capsule was sealed starts a
// new draft.
type Session struct {
	mu         sync.Mutex
	files      []models.FileEntry
	passphrase string
	unlockAt   time.Time
	state      State
	last       *CreateResult
}

func NewSession() *Session {
	return &Session{}
}

// AddFile adds a payload under name. An empty contentType is guessed from
// the extension, then from the content.
func (s *Session) AddFile(name string, data []byte, contentType string) error {
	if err := archive.ValidateName(name); err != nil {
		return common.NewValidationError("files", err)
	}
	if contentType == "" {
		contentType = detectContentType(name, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f.Name == name {
			return common.NewValidationError("files", fmt.Errorf("%w: %q", common.ErrDuplicateFile, name))
		}
	}
	s.files = append(s.files, models.FileEntry{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Data:        data,
	})
	s.touch()
	return nil
}

// AddPath reads the file at path and adds it under its base name.
func (s *Session) AddPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("add %s: is a directory", path)
	}
	data, err := readFile(path)
	if err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	return s.AddFile(filepath.Base(path), data, "")
}

// Remove drops the named file. It reports whether the file was present.
func (s *Session) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if f.Name == name {
			s.files = append(s.files[:i], s.files[i+1:]...)
			s.touch()
			return true
		}
	}
	return false
}

// Files lists the selected files in insertion order.
func (s *Session) Files() []models.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.FileInfo, len(s.files))
	for i, f := range s.files {
		out[i] = f.Info()
	}
	return out
}

// SetPassphrase validates and stores p.
func (s *Session) SetPassphrase(p string) error {
	if err := ValidatePassphrase(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passphrase = p
	s.touch()
	return nil
}

func (s *Session) HasPassphrase() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passphrase != ""
}

func (s *Session) SetUnlockAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlockAt = t
	s.touch()
}

func (s *Session) UnlockAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlockAt
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns the result of the most recent successful Create, or nil.
func (s *Session) Last() *CreateResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reset discards every input and returns the session to Building.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.passphrase = ""
	s.unlockAt = time.Time{}
	s.state = Building
	s.last = nil
}

func (s *Session) snapshot() ([]models.FileEntry, string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]models.FileEntry, len(s.files))
	copy(files, s.files)
	return files, s.passphrase, s.unlockAt
}

func (s *Session) seal(res *CreateResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Sealed
	s.last = res
}

// touch must be called with mu held.
func (s *Session) touch() {
	s.state = Building
}

func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
