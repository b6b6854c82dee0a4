package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/archive"
	"github.com/dmitrijs2005/chronovault/internal/capsuleid"
	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/countdown"
	"github.com/dmitrijs2005/chronovault/internal/logging"
	"github.com/dmitrijs2005/chronovault/internal/models"
	"github.com/google/uuid"
)

// ArchiveCodec is the subset of *archive.Codec the service uses.
type ArchiveCodec interface {
	Build(ctx context.Context, files []models.FileEntry, manifest models.Manifest, passphrase string) ([]byte, error)
	DecryptManifest(a *archive.Archive, passphrase string) (models.Manifest, error)
	Extract(ctx context.Context, a *archive.Archive, manifest models.Manifest, passphrase string) (*models.ExtractionResult, error)
}

// Registry is the subset of *registry.Registry the service uses.
type Registry interface {
	Put(ctx context.Context, rec models.Record) (bool, error)
	Get(ctx context.Context, id string) (models.Record, bool, error)
	Clear(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Record, error)
}

type Options struct {
	// StorePassphrase keeps passphrases in registry records so capsules
	// created on this device open without asking for them again.
	StorePassphrase bool
}

// CreateResult is what a successful capsule creation hands back. Persisting
// Archive is up to the caller.
type CreateResult struct {
	ID       string
	FileName string
	Archive  []byte
	Manifest models.Manifest
	// Replaced is set when an earlier registry record had the same
	// identifier and was overwritten.
	Replaced bool
}

// OpenResult describes an access attempt.
type OpenResult struct {
	ID    string
	State models.LockState
	// StateKnown is false when neither the registry, the unlock hint nor a
	// decryptable manifest revealed the unlock instant.
	StateKnown      bool
	NeedsPassphrase bool
	RegistryMiss    bool
	// Entries lists the capsule files found in the archive structure. It is
	// filled when the manifest could not be read yet.
	Entries         []string
	Extraction      *models.ExtractionResult
}

// Lifecycle maps the result onto a lifecycle state.
func (r *OpenResult) Lifecycle() State {
	switch {
	case r.Extraction != nil:
		return Extracted
	case r.StateKnown && r.State.Locked:
		return LockedView
	case r.StateKnown:
		return UnlockedView
	default:
		return Sealed
	}
}

// Err returns ErrLocked for a capsule that is still locked and nil
// otherwise.
func (r *OpenResult) Err() error {
	if r.StateKnown && r.State.Locked {
		return fmt.Errorf("%w: %s remaining", common.ErrLocked, r.State.Remaining.Truncate(time.Second))
	}
	return nil
}

// CapsuleStatus pairs a registry record with its current lock state.
type CapsuleStatus struct {
	Record models.Record
	State  models.LockState
}

type CapsuleService interface {
	Create(ctx context.Context, session *Session) (*CreateResult, error)
	CreateCapsule(ctx context.Context, files []models.FileEntry, passphrase string, unlockAt time.Time) (*CreateResult, error)
	CheckLockState(ctx context.Context, id string) (models.LockState, error)
	OpenCapsule(ctx context.Context, data []byte, id, passphrase string) (*OpenResult, error)
	VerifyPassphrase(ctx context.Context, id, passphrase string) (bool, error)
	Forget(ctx context.Context, id string) error
	List(ctx context.Context) ([]CapsuleStatus, error)
}

type capsuleService struct {
	codec    ArchiveCodec
	registry Registry
	clock    countdown.Clock
	logger   logging.Logger
	opts     Options
}

func NewCapsuleService(codec ArchiveCodec, registry Registry, clock countdown.Clock, logger logging.Logger, opts Options) CapsuleService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &capsuleService{codec: codec, registry: registry, clock: clock, logger: logger, opts: opts}
}

func (s *capsuleService) Create(ctx context.Context, session *Session) (*CreateResult, error) {
	files, passphrase, unlockAt := session.snapshot()
	res, err := s.CreateCapsule(ctx, files, passphrase, unlockAt)
	if err != nil {
		return nil, err
	}
	session.seal(res)
	return res, nil
}

func (s *capsuleService) CreateCapsule(ctx context.Context, files []models.FileEntry, passphrase string, unlockAt time.Time) (*CreateResult, error) {
	log := s.logger.With("op_id", uuid.NewString(), "op", "create")

	now := s.clock()
	unlockAt = capsuleid.Normalize(unlockAt)
	if err := validateCreate(files, passphrase, unlockAt, now); err != nil {
		log.Debug(ctx, "create rejected", "error", err)
		return nil, err
	}

	manifest := models.Manifest{
		Files:     make([]models.FileInfo, len(files)),
		UnlockAt:  unlockAt,
		CreatedAt: capsuleid.Normalize(now),
	}
	for i, f := range files {
		info := f.Info()
		info.Size = int64(len(f.Data))
		manifest.Files[i] = info
	}

	data, err := s.codec.Build(ctx, files, manifest, passphrase)
	if err != nil {
		log.Error(ctx, "archive build failed", "error", err)
		return nil, fmt.Errorf("build archive: %w", err)
	}

	id := capsuleid.Derive(passphrase, unlockAt)
	log = log.With("capsule_id", id)

	rec := models.Record{ID: id, UnlockAt: unlockAt, Files: manifest.FileNames()}
	if s.opts.StorePassphrase {
		rec.Passphrase = passphrase
	}
	replaced, err := s.registry.Put(ctx, rec)
	if err != nil {
		log.Error(ctx, "registry update failed", "error", err)
		return nil, fmt.Errorf("register capsule: %w", err)
	}
	if replaced {
		log.Warn(ctx, "capsule identifier already registered; previous record replaced")
	}

	log.Info(ctx, "capsule created", "files", len(files), "bytes", len(data), "unlock_at", unlockAt)

	return &CreateResult{
		ID:       id,
		FileName: capsuleid.ExportFileName(id),
		Archive:  data,
		Manifest: manifest,
		Replaced: replaced,
	}, nil
}

func validateCreate(files []models.FileEntry, passphrase string, unlockAt, now time.Time) error {
	if len(files) == 0 {
		return common.NewValidationError("files", common.ErrNoFiles)
	}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := archive.ValidateName(f.Name); err != nil {
			return common.NewValidationError("files", err)
		}
		if _, dup := seen[f.Name]; dup {
			return common.NewValidationError("files", fmt.Errorf("%w: %q", common.ErrDuplicateFile, f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	if err := ValidatePassphrase(passphrase); err != nil {
		return err
	}
	if unlockAt.IsZero() || !unlockAt.After(now) {
		return common.NewValidationError("unlockAt", common.ErrUnlockNotInFuture)
	}
	return nil
}

func (s *capsuleService) CheckLockState(ctx context.Context, id string) (models.LockState, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return models.LockState{}, err
	}
	return models.EvaluateLock(s.clock(), rec.UnlockAt), nil
}

func (s *capsuleService) lookup(ctx context.Context, id string) (models.Record, error) {
	if !capsuleid.Valid(id) {
		return models.Record{}, common.NewValidationError("id", common.ErrInvalidCapsuleID)
	}
	rec, found, err := s.registry.Get(ctx, id)
	if err != nil {
		return models.Record{}, fmt.Errorf("registry lookup: %w", err)
	}
	if !found {
		return models.Record{}, fmt.Errorf("%w: %s", common.ErrRegistryMiss, id)
	}
	return rec, nil
}

func (s *capsuleService) OpenCapsule(ctx context.Context, data []byte, id, passphrase string) (*OpenResult, error) {
	log := s.logger.With("op_id", uuid.NewString(), "op", "open")
	if id != "" {
		if !capsuleid.Valid(id) {
			return nil, common.NewValidationError("id", common.ErrInvalidCapsuleID)
		}
		log = log.With("capsule_id", id)
	}
	if passphrase != "" {
		if err := ValidatePassphrase(passphrase); err != nil {
			return nil, err
		}
	}

	a, err := archive.Parse(data)
	if err != nil {
		log.Warn(ctx, "archive rejected", "error", err)
		return nil, fmt.Errorf("open archive: %w", err)
	}

	res := &OpenResult{ID: id, RegistryMiss: true}

	var rec models.Record
	if id != "" {
		var found bool
		rec, found, err = s.registry.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("registry lookup: %w", err)
		}
		res.RegistryMiss = !found
		if found && passphrase == "" && rec.HasPassphrase() {
			passphrase = rec.Passphrase
		}
	}

	hint, hasHint, err := a.UnlockHint()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	now := s.clock()
	switch {
	case !res.RegistryMiss:
		res.State, res.StateKnown = models.EvaluateLock(now, rec.UnlockAt), true
	case hasHint:
		res.State, res.StateKnown = models.EvaluateLock(now, hint), true
	}

	if passphrase == "" {
		res.NeedsPassphrase = true
		res.Entries = a.FileEntries()
		log.Debug(ctx, "passphrase required", "registry_miss", res.RegistryMiss)
		return res, nil
	}
	if res.StateKnown && res.State.Locked {
		log.Info(ctx, "capsule still locked", "remaining", res.State.Remaining)
		return res, nil
	}

	manifest, err := s.codec.DecryptManifest(a, passphrase)
	if err != nil {
		log.Warn(ctx, "manifest decryption failed", "error", err)
		return nil, fmt.Errorf("open capsule: %w", err)
	}
	if hasHint && !hint.Equal(manifest.UnlockAt) {
		log.Error(ctx, "unlock hint disagrees with manifest", "hint", hint, "manifest", manifest.UnlockAt)
		return nil, fmt.Errorf("%w: unlock hint does not match manifest", common.ErrCorruptArchive)
	}

	// The manifest is authoritative from here on.
	res.State, res.StateKnown = models.EvaluateLock(now, manifest.UnlockAt), true
	if res.State.Locked {
		log.Info(ctx, "capsule still locked", "remaining", res.State.Remaining)
		return res, nil
	}

	derived := capsuleid.Derive(passphrase, manifest.UnlockAt)
	switch {
	case id == "":
		res.ID = derived
		if _, found, err := s.registry.Get(ctx, derived); err == nil && found {
			res.RegistryMiss = false
		}
	case derived != id:
		log.Warn(ctx, "capsule identifier does not match archive contents", "derived_id", derived)
	}

	extraction, err := s.codec.Extract(ctx, a, manifest, passphrase)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	res.Extraction = extraction

	log.Info(ctx, "capsule extracted",
		"files", len(extraction.Files),
		"failures", len(extraction.Failures),
		"unexpected", len(extraction.Unexpected))
	return res, nil
}

// VerifyPassphrase checks passphrase against a registered capsule without
// touching any archive. The identifier itself is a commitment to the
// passphrase and unlock instant, so this works even when passphrases are not
// stored.
func (s *capsuleService) VerifyPassphrase(ctx context.Context, id, passphrase string) (bool, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return false, err
	}
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	ok := subtle.ConstantTimeCompare([]byte(capsuleid.Derive(passphrase, rec.UnlockAt)), []byte(id)) == 1
	if ok && rec.HasPassphrase() {
		ok = subtle.ConstantTimeCompare([]byte(passphrase), []byte(rec.Passphrase)) == 1
	}
	return ok, nil
}

func (s *capsuleService) Forget(ctx context.Context, id string) error {
	if !capsuleid.Valid(id) {
		return common.NewValidationError("id", common.ErrInvalidCapsuleID)
	}
	if err := s.registry.Clear(ctx, id); err != nil {
		return fmt.Errorf("forget %s: %w", id, err)
	}
	s.logger.Info(ctx, "capsule forgotten", "capsule_id", id)
	return nil
}

func (s *capsuleService) List(ctx context.Context) ([]CapsuleStatus, error) {
	recs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list capsules: %w", err)
	}
	now := s.clock()
	out := make([]CapsuleStatus, len(recs))
	for i, r := range recs {
		out[i] = CapsuleStatus{Record: r, State: models.EvaluateLock(now, r.UnlockAt)}
	}
	return out, nil
}

// IsRegistryMiss reports whether err means the capsule is unknown to this
// device.
func IsRegistryMiss(err error) bool {
	return errors.Is(err, common.ErrRegistryMiss)
}
